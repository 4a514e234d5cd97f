// Package scanner implements the scan task actor (component C4): a
// depth-first, deterministic walk of a folder's root path that compares
// what it finds against the expected FileInfo set and emits a lazy
// sequence of scan results for the coordinator to translate into
// diffs.
//
// The walk is a depth-first filepath walk with NFC name normalization
// and blockwise SHA-256 hashing, emitting seven scan-result kinds and
// recognizing .syncspirit-tmp incomplete-download companions.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/basiliscos/syncspirit-go/internal/fileio"
	"github.com/basiliscos/syncspirit-go/internal/hasher"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Task is one scan of a single folder.
type Task struct {
	Root      string
	BlockSize int
	Expected  map[string]*model.FileInfo // relative path -> prior record

	Hasher               *hasher.Pool
	RequestedHashesLimit int
}

// Scan walks Root depth-first in Unicode-normalized lexicographic order
// and yields one Result per entry, plus removed entries for anything in
// Expected that the walk never visited, plus a trailing scan_errors
// result if any directory failed to read.
func (t *Task) Scan(ctx context.Context) ([]Result, error) {
	limit := newHashLimiter(t.RequestedHashesLimit)
	visited := make(map[string]bool, len(t.Expected))
	var results []Result
	var dirErrs []error

	var walk func(relDir string) error
	walk = func(relDir string) error {
		absDir := filepath.Join(t.Root, relDir)
		entries, err := os.ReadDir(absDir)
		if err != nil {
			dirErrs = append(dirErrs, err)
			return nil
		}
		sortEntriesNFC(entries)

		for _, entry := range entries {
			rel := entry.Name()
			if relDir != "" {
				rel = filepath.Join(relDir, entry.Name())
			}

			if entry.Type()&os.ModeSymlink != 0 {
				res := t.scanSymlink(rel)
				visited[rel] = true
				results = append(results, res)
				continue
			}

			if entry.IsDir() {
				res := t.scanDir(rel)
				visited[rel] = true
				results = append(results, res)
				if err := walk(rel); err != nil {
					return err
				}
				continue
			}

			if strings.HasSuffix(rel, fileio.TempSuffix) {
				final := strings.TrimSuffix(rel, fileio.TempSuffix)
				res := t.scanTemp(ctx, limit, rel, final)
				visited[final] = true
				results = append(results, res)
				continue
			}

			visited[rel] = true
			res := t.scanFile(ctx, limit, rel)
			results = append(results, res)
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}

	for name, fi := range t.Expected {
		if visited[name] || fi.Deleted {
			continue
		}
		results = append(results, Result{Kind: KindRemoved, Name: name, Expected: fi})
	}

	if len(dirErrs) > 0 {
		results = append(results, Result{Kind: KindScanErrors, Errs: dirErrs})
	}
	return results, nil
}

func sortEntriesNFC(entries []os.DirEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return norm.NFC.String(entries[i].Name()) < norm.NFC.String(entries[j].Name())
	})
}

func (t *Task) scanSymlink(rel string) Result {
	abs := filepath.Join(t.Root, rel)
	target, err := os.Readlink(abs)
	if err != nil {
		return Result{Kind: KindFileError, Name: rel, Err: err}
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return Result{Kind: KindFileError, Name: rel, Err: err}
	}

	prior, known := t.Expected[rel]
	if known && !prior.Deleted && prior.IsSymlink() && prior.SymlinkTarget == target {
		return Result{Kind: KindUnchangedMeta, Name: rel, Type: protocol.FileInfoTypeSymlink, SymlinkTarget: target, ModifiedS: info.ModTime().Unix()}
	}
	kind := KindUnknownFile
	if known {
		kind = KindChangedMeta
	}
	return Result{Kind: kind, Name: rel, Type: protocol.FileInfoTypeSymlink, SymlinkTarget: target, ModifiedS: info.ModTime().Unix(), Expected: prior}
}

func (t *Task) scanDir(rel string) Result {
	abs := filepath.Join(t.Root, rel)
	info, err := os.Lstat(abs)
	if err != nil {
		return Result{Kind: KindFileError, Name: rel, Err: err}
	}
	perm := uint32(info.Mode().Perm())

	prior, known := t.Expected[rel]
	if known && !prior.Deleted && prior.IsDirectory() && prior.Permissions == perm {
		return Result{Kind: KindUnchangedMeta, Name: rel, Type: protocol.FileInfoTypeDirectory, Permissions: perm}
	}
	kind := KindUnknownFile
	if known {
		kind = KindChangedMeta
	}
	return Result{Kind: kind, Name: rel, Type: protocol.FileInfoTypeDirectory, Permissions: perm, Expected: prior}
}

func (t *Task) scanFile(ctx context.Context, limit *hashLimiter, rel string) Result {
	abs := filepath.Join(t.Root, rel)
	info, err := os.Lstat(abs)
	if err != nil {
		return Result{Kind: KindFileError, Name: rel, Err: err}
	}
	if !info.Mode().IsRegular() {
		return Result{Kind: KindFileError, Name: rel, Err: errUnsupportedMode(abs, info.Mode())}
	}

	size := info.Size()
	mtime := info.ModTime().Unix()
	perm := uint32(info.Mode().Perm())

	prior, known := t.Expected[rel]
	if known && !prior.Deleted && !prior.IsDirectory() && !prior.IsSymlink() &&
		prior.Size == size && prior.ModifiedS == mtime && prior.Permissions == perm {
		return Result{Kind: KindUnchangedMeta, Name: rel, Type: protocol.FileInfoTypeFile, Size: size, ModifiedS: mtime, Permissions: perm}
	}

	priorBlockSize := t.BlockSize
	if known {
		priorBlockSize = prior.BlockSize
	}
	blockSize := hasher.BlockSize(size, priorBlockSize)
	blocks, err := hashBlocks(ctx, t.Hasher, limit, abs, size, blockSize)
	if err != nil {
		return Result{Kind: KindFileError, Name: rel, Err: err}
	}

	kind := KindUnknownFile
	if known {
		kind = KindChangedMeta
	}
	return Result{
		Kind: kind, Name: rel, Type: protocol.FileInfoTypeFile,
		Size: size, ModifiedS: mtime, Permissions: perm, Blocks: blocks, Expected: prior,
	}
}

// scanTemp handles a discovered "<final>.syncspirit-tmp" companion: if
// final is a regular file currently being synced (known, not deleted)
// and the temp file's size matches the expected size, it is a resumable
// incomplete download; otherwise it is stale and must be discarded.
func (t *Task) scanTemp(ctx context.Context, limit *hashLimiter, tempRel, finalRel string) Result {
	abs := filepath.Join(t.Root, tempRel)
	info, err := os.Lstat(abs)
	if err != nil {
		return Result{Kind: KindFileError, Name: finalRel, Err: err}
	}

	prior, known := t.Expected[finalRel]
	if !known || prior.Deleted || prior.IsDirectory() || prior.IsSymlink() || info.Size() != prior.Size {
		return Result{Kind: KindIncompleteRemoved, Name: finalRel, Expected: prior}
	}

	blocks, err := hashBlocks(ctx, t.Hasher, limit, abs, info.Size(), prior.BlockSize)
	if err != nil {
		return Result{Kind: KindFileError, Name: finalRel, Err: err}
	}
	return Result{
		Kind: KindIncomplete, Name: finalRel, Type: protocol.FileInfoTypeFile,
		Size: info.Size(), ModifiedS: info.ModTime().Unix(), Blocks: blocks, Expected: prior,
	}
}

func errUnsupportedMode(path string, mode fs.FileMode) error {
	return &unsupportedModeError{path: path, mode: mode}
}

type unsupportedModeError struct {
	path string
	mode fs.FileMode
}

func (e *unsupportedModeError) Error() string {
	return "scanner: " + e.path + ": unsupported file mode " + e.mode.String()
}
