package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basiliscos/syncspirit-go/internal/fileio"
	"github.com/basiliscos/syncspirit-go/internal/hasher"
	"github.com/basiliscos/syncspirit-go/internal/model"
)

func newTask(t *testing.T, root string, expected map[string]*model.FileInfo) *Task {
	pool := hasher.New(2)
	t.Cleanup(pool.Close)
	return &Task{
		Root:                 root,
		BlockSize:            128 * 1024,
		Expected:             expected,
		Hasher:               pool,
		RequestedHashesLimit: 4,
	}
}

func byName(results []Result) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		if r.Name != "" {
			m[r.Name] = r
		}
	}
	return m
}

func TestScanUnknownFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	task := newTask(t, dir, nil)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	require.Contains(t, got, "a.txt")
	assert.Equal(t, KindUnknownFile, got["a.txt"].Kind)
	assert.Len(t, got["a.txt"].Blocks, 1)
}

func TestScanUnchangedMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	info, err := os.Lstat(path)
	require.NoError(t, err)

	expected := map[string]*model.FileInfo{
		"a.txt": {Name: "a.txt", Size: 5, ModifiedS: info.ModTime().Unix(), Permissions: uint32(info.Mode().Perm())},
	}
	task := newTask(t, dir, expected)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	assert.Equal(t, KindUnchangedMeta, got["a.txt"].Kind)
}

func TestScanChangedMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	expected := map[string]*model.FileInfo{
		"a.txt": {Name: "a.txt", Size: 5, ModifiedS: 1, Permissions: 0o644},
	}
	task := newTask(t, dir, expected)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	assert.Equal(t, KindChangedMeta, got["a.txt"].Kind)
	assert.NotEmpty(t, got["a.txt"].Blocks)
}

func TestScanRemoved(t *testing.T) {
	dir := t.TempDir()
	expected := map[string]*model.FileInfo{
		"gone.txt": {Name: "gone.txt", Size: 1},
	}
	task := newTask(t, dir, expected)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	require.Contains(t, got, "gone.txt")
	assert.Equal(t, KindRemoved, got["gone.txt"].Kind)
}

func TestScanIncompleteResumesWhenSizeMatches(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "a.txt"+fileio.TempSuffix)
	require.NoError(t, os.WriteFile(tmp, []byte("hello"), 0o644))

	expected := map[string]*model.FileInfo{
		"a.txt": {Name: "a.txt", Size: 5, BlockSize: 128 * 1024},
	}
	task := newTask(t, dir, expected)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	assert.Equal(t, KindIncomplete, got["a.txt"].Kind)
}

func TestScanIncompleteRemovedWhenSizeMismatches(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "a.txt"+fileio.TempSuffix)
	require.NoError(t, os.WriteFile(tmp, []byte("hello"), 0o644))

	expected := map[string]*model.FileInfo{
		"a.txt": {Name: "a.txt", Size: 999},
	}
	task := newTask(t, dir, expected)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	assert.Equal(t, KindIncompleteRemoved, got["a.txt"].Kind)
}

func TestScanDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.txt", "a.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	task := newTask(t, dir, nil)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	var names []string
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644))

	task := newTask(t, dir, nil)
	results, err := task.Scan(context.Background())
	require.NoError(t, err)

	got := byName(results)
	require.Contains(t, got, "sub")
	assert.Equal(t, KindUnknownFile, got["sub"].Kind)
	require.Contains(t, got, filepath.Join("sub", "f.txt"))
}
