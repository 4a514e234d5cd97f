package fileio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMasker struct {
	pushed []string
}

func (m *fakeMasker) Push(path string, _ int64) {
	m.pushed = append(m.pushed, path)
}

func TestWriteAtCreatesAndReuses(t *testing.T) {
	dir := t.TempDir()
	masker := &fakeMasker{}
	a := New(4, masker)

	tmp := filepath.Join(dir, "foo.bin"+TempSuffix)
	require.NoError(t, a.WriteAt(tmp, 0, []byte("hello"), 0))
	require.NoError(t, a.WriteAt(tmp, 5, []byte(" world"), 0))
	require.NoError(t, a.Flush(tmp))

	data, err := os.ReadFile(tmp)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Len(t, masker.pushed, 2)
}

func TestRenameAtomicMovesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	a := New(4, nil)

	final := filepath.Join(dir, "target.bin")
	tmp := TempName(final)
	require.NoError(t, a.WriteAt(tmp, 0, []byte("data"), 0))
	require.NoError(t, a.RenameAtomic(tmp, final, 0))

	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestTruncate(t *testing.T) {
	dir := t.TempDir()
	a := New(4, nil)
	tmp := filepath.Join(dir, "x"+TempSuffix)

	require.NoError(t, a.WriteAt(tmp, 0, []byte("0123456789"), 0))
	require.NoError(t, a.Truncate(tmp, 4))
	require.NoError(t, a.Close(tmp))

	data, err := os.ReadFile(tmp)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))
}

func TestDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	a := New(4, nil)
	tmp := filepath.Join(dir, "y"+TempSuffix)

	require.NoError(t, a.WriteAt(tmp, 0, []byte("x"), 0))
	require.NoError(t, a.Delete(tmp, 0))

	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestCacheEvictionClosesHandle(t *testing.T) {
	dir := t.TempDir()
	a := New(1, nil)

	a1 := filepath.Join(dir, "a"+TempSuffix)
	a2 := filepath.Join(dir, "b"+TempSuffix)

	require.NoError(t, a.WriteAt(a1, 0, []byte("a"), 0))
	require.NoError(t, a.WriteAt(a2, 0, []byte("b"), 0))

	// a1's handle should have been evicted and closed; a fresh OpenWrite
	// on the same path must succeed rather than reuse a closed *os.File.
	require.NoError(t, a.WriteAt(a1, 1, []byte("!"), 0))
	data, err := os.ReadFile(a1)
	require.NoError(t, err)
	assert.Equal(t, "a!", string(data))
}

func TestCreateSymlink(t *testing.T) {
	dir := t.TempDir()
	a := New(4, nil)

	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	link := filepath.Join(dir, "link.txt")
	require.NoError(t, a.CreateSymlink(link, target, 0))

	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}
