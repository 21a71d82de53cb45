// Package cli provides the command-line interface for dirkv.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/dirkv/internal/config"
	kverrors "github.com/princespaghetti/dirkv/internal/errors"
	"github.com/princespaghetti/dirkv/internal/kvstore"
)

// Version information (will be set by build flags in production).
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var (
	configPath     string
	flagLocation   string
	flagFolder     string
	flagNoExclude  bool
	verboseLogging bool
	noColor        bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dirkv",
	Short: "Directory-backed key-value store",
	Long: `dirkv stores each key as one file in a single directory.

The store lives at <location>/<folder>. Location defaults to the user's
document directory and folder to "storageRoot". Keys may contain any
character; ; \ / : * ? " < > | & ' are replaced with _ in filenames.

Settings are read from ~/.dirkv/config.yaml, then DIRKV_* environment
variables, then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			DisableColors()
		}
	},
}

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dirkv version %s\n", Version)
		fmt.Printf("  commit: %s\n", GitCommit)
		fmt.Printf("  built:  %s\n", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.dirkv/config.yaml)")
	pf.StringVarP(&flagLocation, "location", "l", "", "Root location of the store")
	pf.StringVarP(&flagFolder, "folder", "f", "", "Subfolder under the location")
	pf.BoolVar(&flagNoExclude, "no-backup-exclusion", false, "Do not mark the store folder as excluded from backups")
	pf.BoolVarP(&verboseLogging, "verbose", "v", false, "Log resolved paths to stderr")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// Execute runs the root command and handles errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		Error("%v", err)
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return kverrors.ExitSuccess
	case errors.Is(err, kverrors.ErrInvalidConfig), errors.Is(err, kverrors.ErrInvalidKey):
		return kverrors.ExitConfigError
	case errors.Is(err, kverrors.ErrNotFound):
		return kverrors.ExitNotFound
	default:
		return kverrors.ExitGeneralError
	}
}

// newLogger returns the logger handed to the store.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verboseLogging {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadSettings resolves configuration with flags applied last.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("location") {
		settings.Store.Location = flagLocation
	}
	if flags.Changed("folder") {
		settings.Store.Folder = flagFolder
	}
	if flags.Changed("no-backup-exclusion") {
		settings.Store.IncludeInBackup = flagNoExclude
	}
	return settings, nil
}

// openStore builds the store for a command invocation.
func openStore(cmd *cobra.Command) (*kvstore.Store, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return kvstore.New(settings.Store,
		kvstore.WithPlatform(settings.Platform),
		kvstore.WithLogger(newLogger()),
	)
}
