package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/princespaghetti/dirkv/internal/kvstore"
)

var (
	cleanFull  bool
	cleanForce bool
)

// cleanCmd represents the clean command.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove stale lock files or the entire store",
	Long: `Remove stale key lock files, or remove the store entirely.

By default, removes lock files that no running process holds.

Use --full to remove the base folder and every key in it (requires confirmation).
Use --full --force to skip confirmation (dangerous).

Examples:
  dirkv clean                # Remove stale lock files only
  dirkv clean --full         # Remove the entire store (with confirmation)
  dirkv clean --full --force # Remove the entire store (no confirmation)`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanFull, "full", false, "Remove the entire store")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Skip confirmation prompts")
}

func runClean(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	if cleanFull {
		return runFullCleanup(cmd, store)
	}
	return runLockCleanup(store)
}

func runLockCleanup(store *kvstore.Store) error {
	Info("Cleaning stale lock files...")

	removed, err := removeStaleLocks(store.LockDir())
	if err != nil {
		return err
	}
	for _, file := range removed {
		fmt.Printf("  Removed: %s\n", filepath.Base(file))
	}

	EmptyLine()
	if len(removed) == 0 {
		Success("No stale lock files found")
		return nil
	}
	Success("Removed %d stale lock file(s)", len(removed))
	return nil
}

// findStaleLocks returns the lock files in dir that can be acquired, i.e.
// that no process currently holds. A missing dir has no stale locks.
func findStaleLocks(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.lock"))
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, path := range matches {
		lock := flock.New(path)
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		_ = lock.Unlock()
		stale = append(stale, path)
	}
	return stale, nil
}

// removeStaleLocks removes every lock file in dir that no process holds.
// Each file is removed while its lock is held so a concurrent writer
// cannot take it in between.
func removeStaleLocks(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.lock"))
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, path := range matches {
		lock := flock.New(path)
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		rmErr := os.Remove(path)
		_ = lock.Unlock()
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			Warning("Failed to remove %s: %v", path, rmErr)
			continue
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func runFullCleanup(cmd *cobra.Command, store *kvstore.Store) error {
	basePath := store.BaseFolder()

	exists, err := store.Exists()
	if err != nil {
		return err
	}
	if !exists {
		Info("Store does not exist")
		return nil
	}

	if !cleanForce {
		Warning("This will permanently delete the entire store!")
		Field("Location", basePath)
		EmptyLine()
		Info("This will remove:")
		PrintList([]string{
			"Every stored key",
			"The base folder",
			"Key lock files",
		})
		EmptyLine()
		if !ConfirmPrompt(cmd.InOrStdin(), "Are you sure you want to continue?") {
			EmptyLine()
			Info("Aborted. Store was not removed.")
			return nil
		}
	}

	EmptyLine()
	Info("Removing store at %s...", basePath)

	if err := os.RemoveAll(basePath); err != nil {
		return fmt.Errorf("remove store: %w", err)
	}
	if err := os.RemoveAll(store.LockDir()); err != nil {
		Warning("Failed to remove lock folder: %v", err)
	}

	EmptyLine()
	Success("Store removed successfully")
	return nil
}
