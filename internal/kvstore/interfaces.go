// Package kvstore provides a directory-backed key-value store where every
// key is persisted as one file under a base folder.
package kvstore

import (
	"context"
	"io/fs"
	"os"
)

// Locker provides file locking for callers that serialize writers.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// FileSystem abstracts the file-I/O primitives the store is built on.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	Stat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
}

// BackupExcluder marks a directory as excluded from the host's automatic
// backups. Hosts without such a concept implement it as a no-op.
type BackupExcluder interface {
	ExcludeFromBackup(path string) error
}

// OSFileSystem is the production implementation of FileSystem.
type OSFileSystem struct{}

// ReadFile reads the file at the given path.
func (fs *OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to the file at the given path, truncating it.
func (fs *OSFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// MkdirAll creates a directory and all parent directories.
func (fs *OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes the file or empty directory at the given path.
func (fs *OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// Stat returns file info for the given path.
func (fs *OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadDir reads the directory at the given path.
func (fs *OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}
