package diff

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

func newTestCluster() (*model.Cluster, protocol.DeviceID, protocol.DeviceID) {
	local := protocol.DeviceID{0x01}
	peer := protocol.DeviceID{0x02}
	c := model.NewCluster(local)
	c.PutDevice(&model.Device{ID: peer})
	return c, local, peer
}

func TestChainAppendsToEndOfSiblingChain(t *testing.T) {
	c, local, peer := newTestCluster()

	d1 := &UpdatePeer{Device: local, Name: "a"}
	d2 := &UpdatePeer{Device: peer, Name: "b"}
	d3 := &UpdatePeer{Device: peer, Name: "c"}

	head := Chain(Diff(d1), d2, d3)
	assert.Same(t, Diff(d1), head)
	assert.Same(t, Diff(d2), d1.Sibling())
	assert.Same(t, Diff(d3), d2.Sibling())
	assert.Nil(t, d3.Sibling())

	require.NoError(t, Apply(head, c, BaseController{}))
	dev, ok := c.Device(peer)
	require.True(t, ok)
	assert.Equal(t, "c", dev.Name, "later sibling's update should win")
}

func TestAppendChildAddsToExistingChildChain(t *testing.T) {
	folderKey := uuid.New()
	parent := &UpsertFolder{Folder: model.NewFolder(folderKey, "f1")}
	child1 := &UpsertFolderInfo{}
	child2 := &ShareFolder{FolderKey: folderKey}

	AppendChild(parent, child1)
	AppendChild(parent, child2)

	assert.Same(t, Diff(child1), parent.Child())
	assert.Same(t, Diff(child2), child1.Sibling())
}

func TestWithChildReplacesChildChain(t *testing.T) {
	folderKey := uuid.New()
	parent := &RemoveFolder{FolderKey: folderKey}
	first := &RemoveFolderInfos{FolderKey: folderKey}
	second := &RemoveFolderInfos{FolderKey: folderKey}

	WithChild(parent, first)
	assert.Same(t, Diff(first), parent.Child())

	WithChild(parent, second)
	assert.Same(t, Diff(second), parent.Child(), "WithChild must replace, not append")
}

func TestApplyRunsChildrenBeforeNextSibling(t *testing.T) {
	c, local, _ := newTestCluster()
	folderKey := uuid.New()

	c.PutDevice(&model.Device{ID: local})

	var order []Kind
	f := model.NewFolder(folderKey, "f1")
	fi := model.NewFolderInfo(uuid.New(), folderKey, local)

	head := Diff(&UpsertFolder{Folder: f})
	head = AppendChild(head, &UpsertFolderInfo{FolderInfo: fi})
	head = Chain(head, &UpdatePeer{Device: local, Name: "local"})

	require.NoError(t, Apply(head, c, orderRecorder{order: &order}))

	_, ok := c.Folder(folderKey)
	assert.True(t, ok)
	_, ok = c.FolderInfo(folderKey, local)
	assert.True(t, ok, "child UpsertFolderInfo must have applied before the sibling chain continued")
	assert.Equal(t, []Kind{KindUpsertFolder, KindUpsertFolderInfo, KindUpdatePeer}, order)
}

// orderRecorder records the Kind of each diff it visits, in visit order.
type orderRecorder struct {
	BaseController
	order *[]Kind
}

func (r orderRecorder) VisitUpsertFolder(d *UpsertFolder, c *model.Cluster) error {
	*r.order = append(*r.order, d.Kind())
	return d.applyImpl(c)
}

func (r orderRecorder) VisitUpsertFolderInfo(d *UpsertFolderInfo, c *model.Cluster) error {
	*r.order = append(*r.order, d.Kind())
	return d.applyImpl(c)
}

func (r orderRecorder) VisitUpdatePeer(d *UpdatePeer, c *model.Cluster) error {
	*r.order = append(*r.order, d.Kind())
	return d.applyImpl(c)
}

func TestUpsertFolderInfoRequiresFolderAndDevice(t *testing.T) {
	c, local, _ := newTestCluster()

	fi := model.NewFolderInfo(uuid.New(), uuid.New(), local)
	err := Apply(&UpsertFolderInfo{FolderInfo: fi}, c, BaseController{})
	assert.True(t, coreerr.Has(err, coreerr.KindMissingParent), "missing folder should be rejected")
	assert.True(t, c.Tainted())
}

func TestShareFolderRequiresDeviceToExist(t *testing.T) {
	c, _, _ := newTestCluster()
	folderKey := uuid.New()
	c.PutFolder(model.NewFolder(folderKey, "f1"))

	unknown := protocol.DeviceID{0xEE}
	err := Apply(&ShareFolder{FolderKey: folderKey, Device: unknown}, c, BaseController{})
	assert.True(t, coreerr.Has(err, coreerr.KindMissingParent))
}

func TestRemoveFolderCascadesRemoveFolderInfosAsChild(t *testing.T) {
	c, local, peer := newTestCluster()
	folderKey := uuid.New()
	c.PutFolder(model.NewFolder(folderKey, "f1"))
	c.PutFolderInfo(model.NewFolderInfo(uuid.New(), folderKey, local))
	c.PutFolderInfo(model.NewFolderInfo(uuid.New(), folderKey, peer))

	d := &RemoveFolder{FolderKey: folderKey}
	require.NoError(t, Apply(d, c, BaseController{}))

	require.NotNil(t, d.Child(), "RemoveFolder must synthesize a RemoveFolderInfos child")
	_, isRemoveInfos := d.Child().(*RemoveFolderInfos)
	assert.True(t, isRemoveInfos)

	_, ok := c.FolderInfo(folderKey, local)
	assert.False(t, ok)
	_, ok = c.FolderInfo(folderKey, peer)
	assert.False(t, ok)
}

func TestLocalUpdateOrphansBlocksAsChildRemoveBlocks(t *testing.T) {
	c, local, _ := newTestCluster()
	folderKey := uuid.New()
	c.PutFolder(model.NewFolder(folderKey, "f1"))
	fi := model.NewFolderInfo(uuid.New(), folderKey, local)
	c.PutFolderInfo(fi)

	oldHash := bytes.Repeat([]byte{0xAA}, 32)
	c.PutFile(fi, &model.FileInfo{Name: "a.txt", Sequence: 1, Blocks: []protocol.BlockInfo{{Hash: oldHash, Size: 4}}})

	newHash := bytes.Repeat([]byte{0xBB}, 32)
	d := &LocalUpdate{FolderKey: folderKey, File: &model.FileInfo{Name: "a.txt", Sequence: 2, Blocks: []protocol.BlockInfo{{Hash: newHash, Size: 4}}}}
	require.NoError(t, Apply(d, c, BaseController{}))

	require.NotNil(t, d.Child())
	rb, ok := d.Child().(*RemoveBlocks)
	require.True(t, ok)
	assert.Equal(t, [][]byte{oldHash}, rb.Hashes)

	_, ok = c.Block(oldHash)
	assert.False(t, ok)
}

func TestLocalUpdateRequiresFolderAndLocalFolderInfo(t *testing.T) {
	c, _, _ := newTestCluster()
	err := Apply(&LocalUpdate{FolderKey: uuid.New(), File: &model.FileInfo{Name: "a"}}, c, BaseController{})
	assert.True(t, coreerr.Has(err, coreerr.KindMissingParent))
}
