package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/dirkv/internal/config"
)

var initSaveConfig bool

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store folder",
	Long: `Create the store's base folder now instead of on the first write.

The folder is created at <location>/<folder> and, unless
--no-backup-exclusion is given, marked as excluded from automatic backups
where the host supports it.

Use --save-config to write the effective location and folder to the
config file so later invocations use them without flags.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initSaveConfig, "save-config", false, "Write the effective settings to the config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	fmt.Printf("Creating store at %s...\n", store.BaseFolder())
	if err := store.EnsureBaseFolder(ctx); err != nil {
		return err
	}
	Success("Store folder ready")

	if initSaveConfig {
		path := configPath
		if path == "" {
			path = settings.Path
		}
		if path == "" {
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		exclude := settings.Store.ExcludeFromBackup()
		file := config.File{
			Location:          settings.Store.Location,
			Folder:            settings.Store.Folder,
			ExcludeFromBackup: &exclude,
		}
		if err := config.Save(path, file); err != nil {
			return err
		}
		Success("Settings saved to %s", path)
	}

	EmptyLine()
	Info("Next steps:")
	Info("  dirkv set <key> <value>")
	Info("  dirkv keys")
	return nil
}
