package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// MaxWorkspaceBytes bounds the total size of all files held in a Workspace.
const MaxWorkspaceBytes = 16 << 20

// ReportName is the build report written next to the VM files.
const ReportName = "jackc-report.toml"

// validFilename accepts class files (Name.jack, Name.vm, Name.xml) and the
// build report.
var validFilename = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*\.(jack|vm|xml)|jackc-report\.toml)$`)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrQuotaExceeded   = errors.New("workspace quota exceeded")
)

// Workspace is an in-memory set of sources and build outputs. It is safe
// for concurrent use by the build workers.
type Workspace struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirty map[string]bool
	used  int
}

func NewWorkspace() *Workspace {
	return &Workspace{
		files: make(map[string][]byte),
		dirty: make(map[string]bool),
	}
}

// ValidName reports whether name may be stored in a Workspace.
func ValidName(name string) bool {
	return validFilename.MatchString(name)
}

// Write stores a copy of data under name, replacing any earlier content.
func (w *Workspace) Write(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !ValidName(name) {
		return ErrInvalidFilename
	}

	oldSize := len(w.files[name])
	if w.used-oldSize+len(data) > MaxWorkspaceBytes {
		return ErrQuotaExceeded
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	w.files[name] = buf
	w.dirty[name] = true
	w.used += len(data) - oldSize
	return nil
}

// Read returns a copy of the content stored under name.
func (w *Workspace) Read(name string) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !ValidName(name) {
		return nil, ErrInvalidFilename
	}
	data, ok := w.files[name]
	if !ok {
		return nil, ErrFileNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes name. The removal is applied to disk by the next PersistTo.
func (w *Workspace) Delete(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !ValidName(name) {
		return ErrInvalidFilename
	}
	data, ok := w.files[name]
	if !ok {
		return ErrFileNotFound
	}
	w.used -= len(data)
	delete(w.files, name)
	w.dirty[name] = true
	return nil
}

// List returns all names in sorted order.
func (w *Workspace) List() []string {
	return w.Glob("")
}

// Glob returns the sorted names ending in ext, e.g. ".jack".
func (w *Workspace) Glob(ext string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.files))
	for name := range w.files {
		if strings.HasSuffix(name, ext) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Dirty returns the sorted names changed since the last PersistTo.
func (w *Workspace) Dirty() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.dirty))
	for name := range w.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Used returns the number of bytes held.
func (w *Workspace) Used() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.used
}

// load adds a host file without marking it dirty.
func (w *Workspace) load(name, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	oldSize := len(w.files[name])
	if w.used-oldSize+len(raw) > MaxWorkspaceBytes {
		return ErrQuotaExceeded
	}
	w.files[name] = raw
	w.used += len(raw) - oldSize
	return nil
}

// LoadFile adds one host file under its base name.
func (w *Workspace) LoadFile(path string) error {
	name := filepath.Base(path)
	if !ValidName(name) {
		return ErrInvalidFilename
	}
	return w.load(name, path)
}

// LoadFrom adds every file of dir with a valid name. Other entries are
// skipped. A missing directory is not an error.
func (w *Workspace) LoadFrom(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !ValidName(entry.Name()) {
			continue
		}
		if err := w.load(entry.Name(), filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// PersistTo writes dirty files to dir and removes deleted ones. dir is
// created if needed. It returns the first I/O error; files that failed stay
// dirty.
func (w *Workspace) PersistTo(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Snapshot under the lock, then do I/O without it.
	w.mu.Lock()
	snapshot := make(map[string][]byte)
	var deleted []string
	for name := range w.dirty {
		if data, ok := w.files[name]; ok {
			buf := make([]byte, len(data))
			copy(buf, data)
			snapshot[name] = buf
		} else {
			deleted = append(deleted, name)
		}
		delete(w.dirty, name)
	}
	w.mu.Unlock()

	var firstErr error
	fail := func(name string, err error) {
		w.mu.Lock()
		w.dirty[name] = true
		w.mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, name := range deleted {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			fail(name, err)
		}
	}
	for name, data := range snapshot {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			fail(name, err)
		}
	}
	return firstErr
}
