package kvstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
	"github.com/princespaghetti/dirkv/internal/platform"
)

// hostPlatform pins the store to the running OS so real-disk tests are not
// affected by platform environment overrides.
func hostPlatform() platform.Identity {
	return platform.Identity{Family: platform.ParseFamily(runtime.GOOS)}
}

func newTestStore(t *testing.T, location, folder string, opts ...Option) *Store {
	t.Helper()
	cfg := DefaultConfig(location)
	cfg.Folder = folder
	opts = append([]Option{WithPlatform(hostPlatform()), WithBackupExcluder(&recordingExcluder{})}, opts...)
	store, err := New(cfg, opts...)
	require.NoError(t, err)
	return store
}

func TestNew_RequiresLocation(t *testing.T) {
	_, err := New(Config{Folder: "kv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, kverrors.ErrInvalidConfig)
}

func TestNew_DefaultFolder(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := New(Config{Location: tmpDir}, WithPlatform(hostPlatform()))
	require.NoError(t, err)

	assert.Equal(t, DefaultFolder, store.Config().Folder)
	assert.Equal(t, filepath.Join(tmpDir, DefaultFolder), filepath.Clean(store.BaseFolder()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/data")
	assert.Equal(t, Config{Location: "/data", Folder: "storageRoot"}, cfg)
	assert.True(t, cfg.ExcludeFromBackup())
}

func TestNew_IsLazy(t *testing.T) {
	tmpDir := t.TempDir()
	rec := newRecordingFS(&OSFileSystem{})

	store := newTestStore(t, tmpDir, "kv", WithFileSystem(rec))

	assert.Empty(t, rec.Calls(), "constructing a store must not touch the filesystem")
	_, err := os.Stat(filepath.Join(tmpDir, "kv"))
	assert.True(t, os.IsNotExist(err), "base folder must not exist before first write")

	// Reads do not provision the folder either.
	_, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	exists, err := store.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	exists, err = store.Exists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSetGet_RoundTrip(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"simple", "user", `{"name":"alice"}`},
		{"empty value", "empty", ""},
		{"unicode", "ключ", "значение ✓"},
		{"multiline", "notes", "line one\nline two\r\n"},
		{"forbidden characters in key", `persist:root/v1?x=1&y='2'`, "state"},
		{"percent in key", "100%", "full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, tt.key, tt.value))

			got, ok, err := store.Get(ctx, tt.key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestGet_AbsentIsNotAnError(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")

	got, ok, err := store.Get(context.Background(), "never-set")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestSet_Overwrite(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "a much longer first value"))
	require.NoError(t, store.Set(ctx, "k", "short"))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short", got)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Remove(ctx, "k"))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(store.PathForKey("k"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_Idempotent(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	for _, key := range []string{"never-set", "a/b", "a\\b"} {
		assert.NoError(t, store.Remove(ctx, key), "key %q", key)
	}
	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Remove(ctx, "k"))
	require.NoError(t, store.Remove(ctx, "k"))
}

func TestRemove_AllKeysKeepsBaseFolder(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Remove(ctx, "a"))
	require.NoError(t, store.Remove(ctx, "b"))

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSanitizationCollision(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a/b", "x"))
	require.NoError(t, store.Set(ctx, `a\b`, "y"))

	assert.Equal(t, store.PathForKey("a/b"), store.PathForKey(`a\b`))
	for _, key := range []string{"a/b", `a\b`, "a_b"} {
		got, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "y", got, "key %q", key)
	}

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b"}, keys)
}

func TestInvalidKey(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	for _, key := range []string{"", "."} {
		err := store.Set(ctx, key, "v")
		assert.ErrorIs(t, err, kverrors.ErrInvalidKey, "Set(%q)", key)

		_, _, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, kverrors.ErrInvalidKey, "Get(%q)", key)

		err = store.Remove(ctx, key)
		assert.ErrorIs(t, err, kverrors.ErrInvalidKey, "Remove(%q)", key)
		assert.NotErrorIs(t, err, kverrors.ErrIO, "Remove(%q)", key)
	}
}

func TestListKeys_Completeness(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", "v1"))
	require.NoError(t, store.Set(ctx, "k2", "v2"))
	require.NoError(t, store.Remove(ctx, "k2"))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "k1")
	assert.NotContains(t, keys, "k2")
}

func TestListKeys_EmptyStoreCreatesFolder(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")

	keys, err := store.ListKeys(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)

	info, err := os.Stat(store.BaseFolder())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListKeys_SkipsDirectoriesAndDecodesNames(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()
	require.NoError(t, store.EnsureBaseFolder(ctx))

	base := store.BaseFolder()
	require.NoError(t, os.Mkdir(filepath.Join(base, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "hello%20world"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "50%off"), []byte("x"), 0o644))
	require.NoError(t, store.Set(ctx, "plain", "x"))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hello world", "50%off", "plain"}, keys)
}

func TestListKeys_FollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
	store := newTestStore(t, t.TempDir(), "kv")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "target", "linked value"))

	base := store.BaseFolder()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(base, "target"), filepath.Join(base, "alias")))
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing"), filepath.Join(base, "dangling")))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"target", "alias"}, keys)

	got, ok, err := store.Get(ctx, "alias")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "linked value", got)
}

func TestIndependentStores(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	first := newTestStore(t, tmpDir, "first")
	second := newTestStore(t, tmpDir, "second")

	require.NoError(t, first.Set(ctx, "shared", "from-first"))

	_, ok, err := second.Get(ctx, "shared")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := second.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSameFolderStoresShareEntries(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	writer := newTestStore(t, tmpDir, "kv")
	reader := newTestStore(t, tmpDir, "kv")

	require.NoError(t, writer.Set(ctx, "k", "v"))
	got, ok, err := reader.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestSet_DeleteBeforeWrite(t *testing.T) {
	tests := []struct {
		name       string
		id         platform.Identity
		wantRemove bool
	}{
		{"android at threshold", platform.Identity{Family: platform.Android, Version: platform.OverwriteQuirkMinVersion}, true},
		{"android above threshold", platform.Identity{Family: platform.Android, Version: 34}, true},
		{"android below threshold", platform.Identity{Family: platform.Android, Version: 28}, false},
		{"linux", platform.Identity{Family: platform.Linux, Version: 99}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecordingFS(newMemFS("/"))
			store, err := New(Config{Location: "/data", Folder: "kv"},
				WithPlatform(tt.id), WithFileSystem(rec), WithBackupExcluder(&recordingExcluder{}))
			require.NoError(t, err)
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "k", "first"))
			require.NoError(t, store.Set(ctx, "k", "second"))

			var want []string
			for i := 0; i < 2; i++ {
				want = append(want, "mkdir /data/kv")
				if tt.wantRemove {
					want = append(want, "remove /data/kv/k")
				}
				want = append(want, "write /data/kv/k")
			}
			assert.Equal(t, want, rec.Calls())

			got, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "second", got)
		})
	}
}

func TestWindowsPaths(t *testing.T) {
	rec := newRecordingFS(newMemFS(`\`))
	store, err := New(Config{Location: `C:\Users\me\Documents`, Folder: "kv"},
		WithPlatform(platform.Identity{Family: platform.Windows, Version: 10}),
		WithFileSystem(rec), WithBackupExcluder(&recordingExcluder{}))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, `C:\Users\me\Documents\kv`, store.BaseFolder())
	assert.Equal(t, `C:\Users\me\Documents\kv\persist_root`, store.PathForKey("persist:root"))

	require.NoError(t, store.Set(ctx, "persist:root", "v"))
	got, ok, err := store.Get(ctx, "persist:root")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"persist_root"}, keys)
}

func TestBackupExclusionHint(t *testing.T) {
	ctx := context.Background()

	t.Run("applied when enabled", func(t *testing.T) {
		excluder := &recordingExcluder{}
		store := newTestStore(t, t.TempDir(), "kv", WithBackupExcluder(excluder))

		require.NoError(t, store.Set(ctx, "k", "v"))
		_, err := store.ListKeys(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{store.BaseFolder(), store.BaseFolder()}, excluder.Paths())
	})

	t.Run("on by default for a bare config", func(t *testing.T) {
		excluder := &recordingExcluder{}
		store, err := New(Config{Location: t.TempDir()},
			WithPlatform(hostPlatform()), WithBackupExcluder(excluder))
		require.NoError(t, err)
		assert.True(t, store.Config().ExcludeFromBackup())

		require.NoError(t, store.Set(ctx, "k", "v"))
		assert.Equal(t, []string{store.BaseFolder()}, excluder.Paths())
	})

	t.Run("skipped when disabled", func(t *testing.T) {
		excluder := &recordingExcluder{}
		store, err := New(Config{Location: t.TempDir(), Folder: "kv", IncludeInBackup: true},
			WithPlatform(hostPlatform()), WithBackupExcluder(excluder))
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "k", "v"))
		assert.Empty(t, excluder.Paths())
	})

	t.Run("failure does not fail the write", func(t *testing.T) {
		excluder := &recordingExcluder{err: errors.New("xattr unsupported")}
		store := newTestStore(t, t.TempDir(), "kv", WithBackupExcluder(excluder))

		require.NoError(t, store.Set(ctx, "k", "v"))
		got, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v", got)
	})
}

func TestIOErrorsPropagate(t *testing.T) {
	injected := &fs.PathError{Op: "io", Path: "x", Err: fs.ErrPermission}

	tests := []struct {
		name   string
		failOp string
		run    func(ctx context.Context, s *Store) error
	}{
		{"set mkdir", "mkdir", func(ctx context.Context, s *Store) error { return s.Set(ctx, "k", "v") }},
		{"set write", "write", func(ctx context.Context, s *Store) error { return s.Set(ctx, "k", "v") }},
		{"get read", "read", func(ctx context.Context, s *Store) error { _, _, err := s.Get(ctx, "k"); return err }},
		{"remove", "remove", func(ctx context.Context, s *Store) error { return s.Remove(ctx, "k") }},
		{"list mkdir", "mkdir", func(ctx context.Context, s *Store) error { _, err := s.ListKeys(ctx); return err }},
		{"list readdir", "readdir", func(ctx context.Context, s *Store) error { _, err := s.ListKeys(ctx); return err }},
		{"exists stat", "stat", func(ctx context.Context, s *Store) error { _, err := s.Exists(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecordingFS(newMemFS("/"))
			rec.failures[tt.failOp] = injected
			store, err := New(Config{Location: "/data", Folder: "kv"},
				WithPlatform(platform.Identity{Family: platform.Linux}),
				WithFileSystem(rec), WithBackupExcluder(&recordingExcluder{}))
			require.NoError(t, err)

			err = tt.run(context.Background(), store)
			require.Error(t, err)
			assert.ErrorIs(t, err, kverrors.ErrIO)
			assert.ErrorIs(t, err, fs.ErrPermission)

			var kvErr *kverrors.KVError
			require.ErrorAs(t, err, &kvErr)
			assert.NotEmpty(t, kvErr.Path)
		})
	}
}

func TestCanceledContext(t *testing.T) {
	rec := newRecordingFS(newMemFS("/"))
	store, err := New(Config{Location: "/data"},
		WithPlatform(platform.Identity{Family: platform.Linux}), WithFileSystem(rec))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", "v"), context.Canceled)
	_, _, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Remove(ctx, "k"), context.Canceled)
	_, err = store.ListKeys(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.EnsureBaseFolder(ctx), context.Canceled)

	assert.Empty(t, rec.Calls())
}
