// Package fileio implements the file I/O actor (component C6): the
// sole owner of writable file handles, staging downloads into
// .syncspirit-tmp companions and renaming them atomically into place on
// finish_file.
//
// Each in-flight download lazily opens and reuses a single *os.File;
// a write error is returned to the caller and the temp file is left on
// disk. Per-file state lives in a
// capacity-bounded cache (hashicorp/golang-lru/v2) so a bounded number
// of concurrent downloads hold open handles at once.
package fileio

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
)

// TempSuffix is appended to a file's final name while it is being
// downloaded.
const TempSuffix = ".syncspirit-tmp"

// TempName returns the staging path for final.
func TempName(final string) string {
	return final + TempSuffix
}

// Masker receives a self-write notification so the watcher can suppress
// the filesystem event this process's own write is about to cause.
// Implemented by the updates mediator (component C9).
type Masker interface {
	Push(path string, deadline int64)
}

type handle struct {
	mu sync.Mutex
	f  *os.File
}

// Actor owns the rw-cache of open writable file handles, keyed by
// temporary path.
type Actor struct {
	masker Masker
	cache  *lru.Cache[string, *handle]
}

// New creates an Actor whose rw-cache holds up to capacity open
// handles; eviction closes the least-recently-used one. capacity is
// typically 5-32, per the component's stated range.
func New(capacity int, masker Masker) *Actor {
	if capacity < 1 {
		capacity = 16
	}
	cache, _ := lru.NewWithEvict(capacity, func(_ string, h *handle) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.f != nil {
			_ = h.f.Close()
			h.f = nil
		}
	})
	return &Actor{masker: masker, cache: cache}
}

// OpenWrite returns the writable handle for tempPath, opening (and
// creating its parent directory if absent) on first use and reusing it
// on every subsequent call, in the spirit of sharedPullerState.tempFile.
func (a *Actor) OpenWrite(tempPath string) (*handle, error) {
	if h, ok := a.cache.Get(tempPath); ok {
		return h, nil
	}
	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return nil, coreerr.New(coreerr.KindOpenFailed, "fileio.open_write", err)
	}
	f, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, coreerr.New(coreerr.KindOpenFailed, "fileio.open_write", err)
	}
	h := &handle{f: f}
	a.cache.Add(tempPath, h)
	return h, nil
}

// OpenRead opens path for reading without entering the write cache —
// reads of already-synced files never need reuse or eviction.
func (a *Actor) OpenRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, coreerr.New(coreerr.KindOpenFailed, "fileio.open_read", err)
	}
	return f, nil
}

// WriteAt writes bytes to tempPath at offset, masking the resulting
// self-write through the updates mediator with the given mask
// deadline (unix nanoseconds).
func (a *Actor) WriteAt(tempPath string, offset int64, data []byte, maskDeadline int64) error {
	h, err := a.OpenWrite(tempPath)
	if err != nil {
		return err
	}
	h.mu.Lock()
	_, err = h.f.WriteAt(data, offset)
	h.mu.Unlock()
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.write_at", err)
	}
	if a.masker != nil {
		a.masker.Push(tempPath, maskDeadline)
	}
	return nil
}

// Flush fsyncs tempPath's open handle, if any.
func (a *Actor) Flush(tempPath string) error {
	h, ok := a.cache.Get(tempPath)
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	if err := h.f.Sync(); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.flush", err)
	}
	return nil
}

// Truncate resizes tempPath's open handle to size.
func (a *Actor) Truncate(tempPath string, size int64) error {
	h, err := a.OpenWrite(tempPath)
	if err != nil {
		return err
	}
	h.mu.Lock()
	err = h.f.Truncate(size)
	h.mu.Unlock()
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.truncate", err)
	}
	return nil
}

// Close closes and evicts tempPath's cached handle, if present.
func (a *Actor) Close(tempPath string) error {
	h, ok := a.cache.Get(tempPath)
	if !ok {
		return nil
	}
	a.cache.Remove(tempPath)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.close", err)
	}
	return nil
}

// RenameAtomic closes tempPath's handle (if cached) and renames it over
// final. This is the only moment a temp file becomes visible under its
// real name — the finish_file discipline described in §4.6.
func (a *Actor) RenameAtomic(tempPath, final string, maskDeadline int64) error {
	if err := a.Close(tempPath); err != nil {
		return err
	}
	if err := os.Rename(tempPath, final); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.rename_atomic", err)
	}
	if a.masker != nil {
		a.masker.Push(final, maskDeadline)
	}
	return nil
}

// Delete closes any cached handle for path and removes it from disk.
func (a *Actor) Delete(path string, maskDeadline int64) error {
	_ = a.Close(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.delete", err)
	}
	if a.masker != nil {
		a.masker.Push(path, maskDeadline)
	}
	return nil
}

// CreateDir creates path (and any missing parents) with the given mode.
func (a *Actor) CreateDir(path string, perm os.FileMode, maskDeadline int64) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.create_dir", err)
	}
	if a.masker != nil {
		a.masker.Push(path, maskDeadline)
	}
	return nil
}

// CreateSymlink creates a symlink at path pointing to target.
func (a *Actor) CreateSymlink(path, target string, maskDeadline int64) error {
	_ = os.Remove(path)
	if err := os.Symlink(target, path); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.create_symlink", err)
	}
	if a.masker != nil {
		a.masker.Push(path, maskDeadline)
	}
	return nil
}

// SetPermissions chmods path.
func (a *Actor) SetPermissions(path string, perm os.FileMode, maskDeadline int64) error {
	if err := os.Chmod(path, perm); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.set_permissions", err)
	}
	if a.masker != nil {
		a.masker.Push(path, maskDeadline)
	}
	return nil
}

// SetMtime sets path's modification time (access time is left
// untouched by passing the same value twice).
func (a *Actor) SetMtime(path string, mtime, maskDeadline int64) error {
	t := unixToTime(mtime)
	if err := os.Chtimes(path, t, t); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.set_mtime", err)
	}
	if a.masker != nil {
		a.masker.Push(path, maskDeadline)
	}
	return nil
}

// CopyRange copies n bytes from src at srcOffset into tempPath at
// dstOffset, for cloning blocks already present on disk instead of
// re-requesting them. Nothing in this module calls it.
func (a *Actor) CopyRange(src string, srcOffset int64, tempPath string, dstOffset int64, n int64, maskDeadline int64) error {
	in, err := a.OpenRead(src)
	if err != nil {
		return err
	}
	defer in.Close()

	h, err := a.OpenWrite(tempPath)
	if err != nil {
		return err
	}

	buf := make([]byte, n)
	if _, err := in.ReadAt(buf, srcOffset); err != nil && err != io.EOF {
		return coreerr.New(coreerr.KindReadFailed, "fileio.copy_range", err)
	}

	h.mu.Lock()
	_, err = h.f.WriteAt(buf, dstOffset)
	h.mu.Unlock()
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "fileio.copy_range", err)
	}
	if a.masker != nil {
		a.masker.Push(tempPath, maskDeadline)
	}
	return nil
}
