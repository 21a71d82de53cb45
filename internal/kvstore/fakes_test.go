package kvstore

import (
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// recordingFS wraps a FileSystem, records every call as "op path", and
// fails the ops listed in failures.
type recordingFS struct {
	FileSystem

	mu       sync.Mutex
	calls    []string
	failures map[string]error
}

func newRecordingFS(inner FileSystem) *recordingFS {
	return &recordingFS{FileSystem: inner, failures: map[string]error{}}
}

func (r *recordingFS) record(op, p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op+" "+p)
	return r.failures[op]
}

func (r *recordingFS) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingFS) ReadFile(p string) ([]byte, error) {
	if err := r.record("read", p); err != nil {
		return nil, err
	}
	return r.FileSystem.ReadFile(p)
}

func (r *recordingFS) WriteFile(p string, data []byte, perm os.FileMode) error {
	if err := r.record("write", p); err != nil {
		return err
	}
	return r.FileSystem.WriteFile(p, data, perm)
}

func (r *recordingFS) MkdirAll(p string, perm os.FileMode) error {
	if err := r.record("mkdir", p); err != nil {
		return err
	}
	return r.FileSystem.MkdirAll(p, perm)
}

func (r *recordingFS) Remove(p string) error {
	if err := r.record("remove", p); err != nil {
		return err
	}
	return r.FileSystem.Remove(p)
}

func (r *recordingFS) Stat(p string) (fs.FileInfo, error) {
	if err := r.record("stat", p); err != nil {
		return nil, err
	}
	return r.FileSystem.Stat(p)
}

func (r *recordingFS) ReadDir(p string) ([]fs.DirEntry, error) {
	if err := r.record("readdir", p); err != nil {
		return nil, err
	}
	return r.FileSystem.ReadDir(p)
}

// memFS is an in-memory FileSystem keyed by the exact path strings it is
// given, so it works for any separator convention.
type memFS struct {
	mu    sync.Mutex
	sep   string
	files map[string][]byte
	dirs  map[string]bool
}

func newMemFS(sep string) *memFS {
	return &memFS{sep: sep, files: map[string][]byte{}, dirs: map[string]bool{}}
}

func (m *memFS) ReadFile(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *memFS) WriteFile(p string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[m.parent(p)] {
		return &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	m.files[p] = append([]byte(nil), data...)
	return nil
}

func (m *memFS) MkdirAll(p string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[p] = true
	return nil
}

func (m *memFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
	}
	delete(m.files, p)
	return nil
}

func (m *memFS) Stat(p string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[p] {
		return memInfo{name: m.base(p), dir: true}, nil
	}
	if data, ok := m.files[p]; ok {
		return memInfo{name: m.base(p), size: int64(len(data))}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (m *memFS) ReadDir(p string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[p] {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}
	var entries []fs.DirEntry
	for name, data := range m.files {
		if m.parent(name) == p {
			entries = append(entries, fs.FileInfoToDirEntry(memInfo{name: m.base(name), size: int64(len(data))}))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *memFS) parent(p string) string {
	if i := strings.LastIndex(p, m.sep); i >= 0 {
		return p[:i]
	}
	return ""
}

func (m *memFS) base(p string) string {
	return p[strings.LastIndex(p, m.sep)+1:]
}

type memInfo struct {
	name string
	size int64
	dir  bool
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() any           { return nil }
func (i memInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

// recordingExcluder records the folders it was asked to exclude.
type recordingExcluder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (e *recordingExcluder) ExcludeFromBackup(p string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = append(e.paths, p)
	return e.err
}

func (e *recordingExcluder) Paths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.paths...)
}
