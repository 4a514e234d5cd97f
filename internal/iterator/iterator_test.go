package iterator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

func newTestCluster(t *testing.T) (*model.Cluster, protocol.DeviceID, protocol.DeviceID) {
	local := protocol.DeviceID{0x01}
	peer := protocol.DeviceID{0x02}
	c := model.NewCluster(local)
	c.PutDevice(&model.Device{ID: peer})
	return c, local, peer
}

func addFolder(t *testing.T, c *model.Cluster, peer protocol.DeviceID, order model.PullOrder) uuid.UUID {
	key := uuid.New()
	f := model.NewFolder(key, "f1")
	f.PullOrder = order
	f.SharedWith[peer] = struct{}{}
	c.PutFolder(f)

	fi := model.NewFolderInfo(uuid.New(), key, peer)
	c.PutFolderInfo(fi)
	return key
}

func putFile(c *model.Cluster, fi *model.FolderInfo, f *model.FileInfo) {
	c.PutFile(fi, f)
}

func TestIteratorAlphabeticOrder(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "b.txt", Sequence: 1})
	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 2})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, fk, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, key, fk)
	assert.Equal(t, "a.txt", f.Name)
	it.Settle(key, f.Name)

	f, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "b.txt", f.Name)
}

func TestIteratorDirectoriesFirst(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 1})
	putFile(c, fi, &model.FileInfo{Name: "zdir", Sequence: 2, Type: protocol.FileInfoTypeDirectory})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "zdir", f.Name)
}

func TestIteratorDeletedLast(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 1, Deleted: true})
	putFile(c, fi, &model.FileInfo{Name: "z.txt", Sequence: 2})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "z.txt", f.Name)
}

func TestIteratorSkipsLockedFiles(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 1, Locked: true})
	putFile(c, fi, &model.FileInfo{Name: "b.txt", Sequence: 2})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "b.txt", f.Name)
}

func TestIteratorSettledFileNotReturnedAgain(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 1})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, _, ok := it.Next()
	require.True(t, ok)
	it.Settle(key, f.Name)

	_, _, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorPreservesSettledAcrossPullOrderChange(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 1})
	putFile(c, fi, &model.FileInfo{Name: "b.txt", Sequence: 2})
	putFile(c, fi, &model.FileInfo{Name: "c.txt", Sequence: 3})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "a.txt", f.Name)
	it.Settle(key, f.Name)

	f, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "b.txt", f.Name)
	it.Settle(key, f.Name)

	// Folder's pull order changes mid-scan (e.g. config reload); the
	// peer re-announces the same files. a.txt and b.txt were already
	// settled and must not resurface.
	f2, ok := c.Folder(key)
	require.True(t, ok)
	f2.PullOrder = model.PullOrderLargest
	it.OnUpsertFolder(key)

	f, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "c.txt", f.Name, "only the not-yet-consumed file should remain")

	_, _, ok = it.Next()
	assert.False(t, ok, "settled files must not resurface after a pull-order change")
}

func TestIteratorDropsSettledNameNoLongerPresent(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi, _ := c.FolderInfo(key, peer)

	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 1})
	putFile(c, fi, &model.FileInfo{Name: "b.txt", Sequence: 2})

	it := New(c, peer)
	it.OnUpsertFolder(key)

	f, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "a.txt", f.Name)
	it.Settle(key, f.Name)

	// a.txt is deleted from the peer's index entirely (not just marked
	// deleted); a later re-add must be treated as a fresh file.
	c.RemoveFile(fi, "a.txt")
	it.OnUpsertFolder(key)
	putFile(c, fi, &model.FileInfo{Name: "a.txt", Sequence: 3})
	it.OnUpsertFolder(key)

	f, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "a.txt", f.Name, "a name dropped from the frontier and re-added is no longer settled")
}

func TestIteratorRoundRobinsAcrossFolders(t *testing.T) {
	c, _, peer := newTestCluster(t)
	key1 := addFolder(t, c, peer, model.PullOrderAlphabetic)
	fi1, _ := c.FolderInfo(key1, peer)
	putFile(c, fi1, &model.FileInfo{Name: "one.txt", Sequence: 1})

	key2 := uuid.New()
	f2 := model.NewFolder(key2, "f2")
	f2.SharedWith[peer] = struct{}{}
	c.PutFolder(f2)
	fi2 := model.NewFolderInfo(uuid.New(), key2, peer)
	c.PutFolderInfo(fi2)
	putFile(c, fi2, &model.FileInfo{Name: "two.txt", Sequence: 1})

	it := New(c, peer)
	it.OnUpsertFolder(key1)
	it.OnUpsertFolder(key2)

	seenFolders := map[uuid.UUID]bool{}
	f, fk, ok := it.Next()
	require.True(t, ok)
	seenFolders[fk] = true
	it.Settle(fk, f.Name)

	_, fk2, ok := it.Next()
	require.True(t, ok)
	seenFolders[fk2] = true

	assert.Len(t, seenFolders, 2, "round robin should visit both folders")
}
