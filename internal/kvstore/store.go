package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
	"github.com/princespaghetti/dirkv/internal/platform"
)

// DefaultFolder is the subfolder used when Config.Folder is empty.
const DefaultFolder = "storageRoot"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Config selects where a store keeps its entries. A different
// Location/Folder pair is a different, non-overlapping store.
//
// The base folder is excluded from backups unless IncludeInBackup is set,
// so the zero value keeps the hint on.
type Config struct {
	Location        string `yaml:"location" json:"location"`
	Folder          string `yaml:"folder" json:"folder"`
	IncludeInBackup bool   `yaml:"include_in_backup" json:"include_in_backup"`
}

// ExcludeFromBackup reports whether the backup-exclusion hint is applied.
func (c Config) ExcludeFromBackup() bool {
	return !c.IncludeInBackup
}

// DefaultConfig returns a Config rooted at location with the default folder
// and backup exclusion enabled.
func DefaultConfig(location string) Config {
	return Config{
		Location: location,
		Folder:   DefaultFolder,
	}
}

// Option customizes a Store.
type Option func(*Store)

// WithFileSystem replaces the file-I/O collaborator.
func WithFileSystem(fsys FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithPlatform resolves path and write capabilities from id instead of
// the detected host.
func WithPlatform(id platform.Identity) Option {
	return func(s *Store) {
		s.platform = id
	}
}

// WithBackupExcluder replaces the backup-exclusion collaborator.
func WithBackupExcluder(b BackupExcluder) Option {
	return func(s *Store) {
		if b != nil {
			s.backup = b
		}
	}
}

// WithLogger sets the logger. Resolved paths are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is a directory-backed key-value store. It holds no state besides
// its configuration; concurrent writers of the same key are not serialized
// (see LockKey).
type Store struct {
	cfg        Config
	platform   platform.Identity
	caps       platform.Capabilities
	resolver   *Resolver
	baseFolder string

	fs     FileSystem
	backup BackupExcluder
	logger *slog.Logger
}

// New creates a Store. The base folder is not created until the first
// Set or ListKeys.
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.Location == "" {
		return nil, fmt.Errorf("%w: location is required", kverrors.ErrInvalidConfig)
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}

	s := &Store{
		cfg:      cfg,
		platform: platform.Detect(),
		fs:       &OSFileSystem{},
		backup:   defaultBackupExcluder(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.caps = s.platform.Capabilities()
	s.resolver = NewResolver(s.caps)
	s.baseFolder = s.resolver.Normalize(cfg.Location, cfg.Folder)
	s.logger.Debug("kvstore: base folder resolved", "base_folder", s.baseFolder, "platform", s.platform.String())

	return s, nil
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// BaseFolder returns the directory holding the entries.
func (s *Store) BaseFolder() string {
	return s.baseFolder
}

// Platform returns the platform identity the store resolved its
// capabilities from.
func (s *Store) Platform() platform.Identity {
	return s.platform
}

// Capabilities returns the resolved platform capabilities.
func (s *Store) Capabilities() platform.Capabilities {
	return s.caps
}

// PathForKey returns the entry path of key.
func (s *Store) PathForKey(key string) string {
	return s.resolver.PathForKey(s.baseFolder, key)
}

// entryPath resolves key and rejects keys that collapse onto the base
// folder itself.
func (s *Store) entryPath(key string) (string, error) {
	path := s.PathForKey(key)
	if path == s.baseFolder {
		return "", fmt.Errorf("%w: %q", kverrors.ErrInvalidKey, key)
	}
	return path, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}
	s.logger.Debug("kvstore: set", "key", key, "path", path)

	if err := s.ensureBaseFolder(); err != nil {
		return err
	}

	if s.caps.DeleteBeforeWrite {
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &kverrors.KVError{Op: "set", Key: key, Path: path, Err: err}
		}
	}

	if err := s.fs.WriteFile(path, []byte(value), filePerm); err != nil {
		return &kverrors.KVError{Op: "set", Key: key, Path: path, Err: err}
	}
	return nil
}

// Get returns the value stored under key. A missing key yields ok == false
// and a nil error.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	path, err := s.entryPath(key)
	if err != nil {
		return "", false, err
	}
	s.logger.Debug("kvstore: get", "key", key, "path", path)

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, &kverrors.KVError{Op: "get", Key: key, Path: path, Err: err}
	}
	return string(data), true, nil
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}
	s.logger.Debug("kvstore: remove", "key", key, "path", path)

	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &kverrors.KVError{Op: "remove", Key: key, Path: path, Err: err}
	}
	return nil
}

// ListKeys returns the names of all entries, in directory order. Names are
// percent-decoded; a name that does not decode is returned as stored.
// Symlinks count as entries when their target is a regular file.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("kvstore: list keys", "path", s.baseFolder)

	if err := s.ensureBaseFolder(); err != nil {
		return nil, err
	}

	entries, err := s.fs.ReadDir(s.baseFolder)
	if err != nil {
		return nil, &kverrors.KVError{Op: "list keys", Path: s.baseFolder, Err: err}
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !s.isEntryFile(entry) {
			continue
		}
		keys = append(keys, decodeEntryName(entry.Name()))
	}
	return keys, nil
}

func (s *Store) isEntryFile(entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := s.fs.Stat(s.resolver.Normalize(s.baseFolder, entry.Name()))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Exists reports whether the base folder has been created.
func (s *Store) Exists() (bool, error) {
	info, err := s.fs.Stat(s.baseFolder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &kverrors.KVError{Op: "stat base folder", Path: s.baseFolder, Err: err}
	}
	return info.IsDir(), nil
}

// EnsureBaseFolder creates the base folder if needed. Set and ListKeys
// call it implicitly.
func (s *Store) EnsureBaseFolder(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ensureBaseFolder()
}

// ensureBaseFolder creates the base folder and applies the backup hint.
// Hint failures are logged and otherwise ignored.
func (s *Store) ensureBaseFolder() error {
	if err := s.fs.MkdirAll(s.baseFolder, dirPerm); err != nil {
		return &kverrors.KVError{Op: "create base folder", Path: s.baseFolder, Err: err}
	}
	if s.cfg.ExcludeFromBackup() {
		if err := s.backup.ExcludeFromBackup(s.baseFolder); err != nil {
			s.logger.Warn("kvstore: backup exclusion hint failed", "path", s.baseFolder, "error", err)
		}
	}
	return nil
}

func decodeEntryName(name string) string {
	decoded, err := url.PathUnescape(name)
	if err != nil {
		return name
	}
	return decoded
}
