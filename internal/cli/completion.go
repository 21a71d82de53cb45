package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bash, zsh or fish.

To load completions:

Bash:

  $ source <(dirkv completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ dirkv completion bash > /etc/bash_completion.d/dirkv
  # macOS:
  $ dirkv completion bash > $(brew --prefix)/etc/bash_completion.d/dirkv

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ dirkv completion zsh > "${fpath[1]}/_dirkv"

Fish:

  $ dirkv completion fish > ~/.config/fish/completions/dirkv.fish

  # You will need to start a new shell for this setup to take effect.`,
	ValidArgs: []string{"bash", "zsh", "fish"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch shell := args[0]; shell {
	case "bash":
		return cmd.Root().GenBashCompletion(out)
	case "zsh":
		return cmd.Root().GenZshCompletion(out)
	case "fish":
		return cmd.Root().GenFishCompletion(out, true)
	default:
		return fmt.Errorf("%w: unsupported shell %q (supported: bash, zsh, fish)", kverrors.ErrInvalidConfig, shell)
	}
}
