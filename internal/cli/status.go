package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/dirkv/internal/kvstore"
)

var statusJSON bool

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store status",
	Long: `Display information about the store without modifying it.

Shows:
  - Location, folder and resolved base folder
  - Whether the base folder exists yet
  - Number of keys and total value size
  - Platform identity and the path/write policies derived from it

Examples:
  dirkv status
  dirkv status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}

// StatusOutput represents the structured output of the status command.
type StatusOutput struct {
	Config     kvstore.Config `json:"config"`
	BaseFolder string         `json:"base_folder"`
	Exists     bool           `json:"exists"`
	Keys       KeysStatus     `json:"keys"`
	Platform   PlatformStatus `json:"platform"`
}

// KeysStatus summarizes the stored entries.
type KeysStatus struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
	Unreadable int   `json:"unreadable"`
}

// PlatformStatus describes the resolved platform policies.
type PlatformStatus struct {
	Family            string `json:"family"`
	Version           int    `json:"version"`
	Separator         string `json:"separator"`
	LeadingSeparator  bool   `json:"leading_separator"`
	DeleteBeforeWrite bool   `json:"delete_before_write"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	status, err := gatherStatus(ctx, store)
	if err != nil {
		return err
	}

	if statusJSON {
		return JSON(cmd.OutOrStdout(), status)
	}
	printStatusHuman(status)
	return nil
}

// gatherStatus collects status information from the store. It never
// creates the base folder.
func gatherStatus(ctx context.Context, store *kvstore.Store) (StatusOutput, error) {
	id := store.Platform()
	caps := store.Capabilities()
	status := StatusOutput{
		Config:     store.Config(),
		BaseFolder: store.BaseFolder(),
		Platform: PlatformStatus{
			Family:            string(id.Family),
			Version:           id.Version,
			Separator:         caps.Separator,
			LeadingSeparator:  caps.LeadingSeparator,
			DeleteBeforeWrite: caps.DeleteBeforeWrite,
		},
	}

	exists, err := store.Exists()
	if err != nil {
		return status, err
	}
	status.Exists = exists
	if !exists {
		return status, nil
	}

	keys, err := store.ListKeys(ctx)
	if err != nil {
		return status, err
	}
	status.Keys.Count = len(keys)
	for _, key := range keys {
		value, ok, err := store.Get(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return status, ctxErr
			}
			// Listed names that do not resolve back to a readable file
			// are reported by doctor.
			status.Keys.Unreadable++
			continue
		}
		if ok {
			status.Keys.TotalBytes += int64(len(value))
		}
	}

	return status, nil
}

// printStatusHuman prints the status in a human-readable format.
func printStatusHuman(status StatusOutput) {
	Header("Store Status")

	Field("Location", status.Config.Location)
	Field("Folder", status.Config.Folder)
	Field("Base folder", status.BaseFolder)
	Field("Exists", fmt.Sprintf("%v", status.Exists))
	Field("Backup excluded", fmt.Sprintf("%v", status.Config.ExcludeFromBackup()))
	EmptyLine()

	if !status.Exists {
		Info("The base folder is created on the first write. Run 'dirkv init' to create it now.")
		EmptyLine()
	} else {
		Subheader("Keys")
		Field("Count", fmt.Sprintf("%d", status.Keys.Count))
		Field("Total size", FormatBytes(status.Keys.TotalBytes))
		if status.Keys.Unreadable > 0 {
			Warning("%d entry name(s) cannot be read back as keys; run 'dirkv doctor'", status.Keys.Unreadable)
		}
		EmptyLine()
	}

	Subheader("Platform")
	platform := status.Platform.Family
	if status.Platform.Version != 0 {
		platform = fmt.Sprintf("%s %d", platform, status.Platform.Version)
	}
	Field("Identity", platform)
	Field("Separator", fmt.Sprintf("%q", status.Platform.Separator))
	Field("Leading root", fmt.Sprintf("%v", status.Platform.LeadingSeparator))
	Field("Delete on write", fmt.Sprintf("%v", status.Platform.DeleteBeforeWrite))
	EmptyLine()
}
