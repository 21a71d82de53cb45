package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
	"github.com/princespaghetti/dirkv/internal/kvstore"
)

// opTimeout bounds a single CLI invocation, including waiting for a key lock.
const opTimeout = 30 * time.Second

var (
	setStdin   bool
	noLock     bool
	keysJSON   bool
	keysLong   bool
	getNewline bool
)

// setCmd represents the set command.
var setCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a value under a key",
	Long: `Store a value under a key, replacing any previous value.

The value is read from standard input when it is not given as an argument
or when --stdin is set. The key is locked for the duration of the write so
concurrent dirkv invocations do not interleave; use --no-lock to skip it.

Examples:
  dirkv set session '{"user":"alice"}'
  cat state.json | dirkv set persist:root --stdin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSet,
}

// getCmd represents the get command.
var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under a key",
	Long: `Print the value stored under a key exactly as stored.

Exits with status 3 when the key does not exist.

Examples:
  dirkv get session
  dirkv get persist:root --newline`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// removeCmd represents the rm command.
var removeCmd = &cobra.Command{
	Use:     "rm <key>",
	Aliases: []string{"remove", "del"},
	Short:   "Remove a key",
	Long: `Remove a key. Removing a key that does not exist succeeds.

Examples:
  dirkv rm session`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

// keysCmd represents the keys command.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List all keys",
	Long: `List every key in the store, one per line, in directory order.

Keys are shown by their on-disk names, so characters replaced during
sanitization appear as _.

Examples:
  dirkv keys
  dirkv keys --long
  dirkv keys --json`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(keysCmd)

	setCmd.Flags().BoolVar(&setStdin, "stdin", false, "Read the value from stdin")
	setCmd.Flags().BoolVar(&noLock, "no-lock", false, "Do not take the per-key lock")
	removeCmd.Flags().BoolVar(&noLock, "no-lock", false, "Do not take the per-key lock")
	getCmd.Flags().BoolVar(&getNewline, "newline", false, "Append a trailing newline")
	keysCmd.Flags().BoolVar(&keysJSON, "json", false, "Output in JSON format")
	keysCmd.Flags().BoolVar(&keysLong, "long", false, "Show value sizes in a table")
}

func runSet(cmd *cobra.Command, args []string) error {
	key := args[0]

	var value string
	switch {
	case setStdin && len(args) == 2:
		return fmt.Errorf("%w: cannot use both --stdin and a value argument", kverrors.ErrInvalidConfig)
	case len(args) == 2:
		value = args[1]
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read value from stdin: %w", err)
		}
		value = string(data)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	return withKeyLock(ctx, store, key, func() error {
		return store.Set(ctx, key, value)
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	value, ok, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", kverrors.ErrNotFound, args[0])
	}

	out := cmd.OutOrStdout()
	if _, err := io.WriteString(out, value); err != nil {
		return err
	}
	if getNewline {
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	return withKeyLock(ctx, store, args[0], func() error {
		return store.Remove(ctx, args[0])
	})
}

func runKeys(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	keys, err := store.ListKeys(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if keysJSON {
		return JSON(out, keys)
	}
	if keysLong {
		table := NewTable("KEY", "SIZE")
		for _, key := range keys {
			size := "-"
			if value, ok, err := store.Get(ctx, key); err == nil && ok {
				size = FormatBytes(int64(len(value)))
			}
			table.AddRow(key, size)
		}
		table.Print()
		return nil
	}
	for _, key := range keys {
		_, _ = fmt.Fprintln(out, key)
	}
	return nil
}

// withKeyLock runs fn while holding the lock for key, unless --no-lock.
func withKeyLock(ctx context.Context, store *kvstore.Store, key string, fn func() error) error {
	if noLock {
		return fn()
	}
	lock, err := store.LockKey(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}
