package netctrl

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

type fakeConn struct {
	hellos         []protocol.HelloMessage
	clusterConfigs []protocol.ClusterConfigMessage
	indexes        []protocol.IndexMessage
	indexUpdates   []protocol.IndexUpdateMessage
	requests       []protocol.RequestMessage
	responses      []protocol.ResponseMessage
	closes         []protocol.CloseMessage
	closed         bool
}

func (c *fakeConn) SendHello(m protocol.HelloMessage) error {
	c.hellos = append(c.hellos, m)
	return nil
}
func (c *fakeConn) SendClusterConfig(m protocol.ClusterConfigMessage) error {
	c.clusterConfigs = append(c.clusterConfigs, m)
	return nil
}
func (c *fakeConn) SendIndex(m protocol.IndexMessage) error {
	c.indexes = append(c.indexes, m)
	return nil
}
func (c *fakeConn) SendIndexUpdate(m protocol.IndexUpdateMessage) error {
	c.indexUpdates = append(c.indexUpdates, m)
	return nil
}
func (c *fakeConn) SendRequest(m protocol.RequestMessage) error {
	c.requests = append(c.requests, m)
	return nil
}
func (c *fakeConn) SendResponse(m protocol.ResponseMessage) error {
	c.responses = append(c.responses, m)
	return nil
}
func (c *fakeConn) SendClose(m protocol.CloseMessage) error {
	c.closes = append(c.closes, m)
	return nil
}
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakePersister struct {
	applied []diff.Diff
}

func (p *fakePersister) Persist(ctx context.Context, d diff.Diff, c *model.Cluster) error {
	if err := diff.Apply(d, c, diff.BaseController{}); err != nil {
		return err
	}
	p.applied = append(p.applied, d)
	return nil
}

type fakeFileWriter struct {
	writes  map[string][]byte
	renamed map[string]string
}

func newFakeFileWriter() *fakeFileWriter {
	return &fakeFileWriter{writes: make(map[string][]byte), renamed: make(map[string]string)}
}

func (f *fakeFileWriter) WriteAt(tempPath string, offset int64, data []byte, _ int64) error {
	buf := f.writes[tempPath]
	if need := int(offset) + len(data); need > len(buf) {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	f.writes[tempPath] = buf
	return nil
}

func (f *fakeFileWriter) RenameAtomic(tempPath, final string, _ int64) error {
	f.renamed[tempPath] = final
	return nil
}

type fakeHasher struct{ mismatch bool }

func (h *fakeHasher) Validate(ctx context.Context, data, expected []byte) (bool, error) {
	return !h.mismatch, nil
}

func newTestCluster() (*model.Cluster, protocol.DeviceID, protocol.DeviceID, uuid.UUID) {
	local := protocol.DeviceID{0x01}
	peer := protocol.DeviceID{0x02}
	c := model.NewCluster(local)
	c.PutDevice(&model.Device{ID: peer})

	key := uuid.New()
	folder := model.NewFolder(key, "docs")
	folder.Path = "/tmp/docs"
	folder.SharedWith[peer] = struct{}{}
	c.PutFolder(folder)

	localFI := model.NewFolderInfo(uuid.New(), key, local)
	c.PutFolderInfo(localFI)
	peerFI := model.NewFolderInfo(uuid.New(), key, peer)
	c.PutFolderInfo(peerFI)

	return c, local, peer, key
}

func newTestController(c *model.Cluster, peer protocol.DeviceID, conn *fakeConn, p *fakePersister, fw *fakeFileWriter, h *fakeHasher) *PeerController {
	return New(peer, c, conn, p, fw, h, "/tmp/docs", 16)
}

func TestStartSendsHello(t *testing.T) {
	c, _, peer, _ := newTestCluster()
	conn := &fakeConn{}
	pc := newTestController(c, peer, conn, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})

	require.NoError(t, pc.Start())
	assert.Len(t, conn.hellos, 1)
	assert.Equal(t, StateDisconnected, pc.State())
}

func TestOnHelloAdvancesState(t *testing.T) {
	c, _, peer, _ := newTestCluster()
	pc := newTestController(c, peer, &fakeConn{}, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})

	require.NoError(t, pc.OnHello(protocol.HelloMessage{}))
	assert.Equal(t, StateHelloExchanged, pc.State())
}

func TestOnIndexInstallsRemoteFiles(t *testing.T) {
	c, _, peer, key := newTestCluster()
	pc := newTestController(c, peer, &fakeConn{}, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})

	require.NoError(t, pc.OnIndex(context.Background(), protocol.IndexMessage{
		Folder: "docs",
		Files: []protocol.FileInfo{
			{Name: "a.txt", Size: 4, Blocks: []protocol.BlockInfo{{Offset: 0, Size: 4, Hash: []byte{1}}}},
		},
	}))
	assert.Equal(t, StateIndexExchanged, pc.State())

	fi, ok := c.FolderInfo(key, peer)
	require.True(t, ok)
	f, ok := fi.FileByName("a.txt")
	require.True(t, ok)
	assert.EqualValues(t, 4, f.Size)
}

func TestOnIndexUpdateUnknownFolderIsIgnored(t *testing.T) {
	c, _, peer, _ := newTestCluster()
	pc := newTestController(c, peer, &fakeConn{}, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})

	err := pc.OnIndexUpdate(context.Background(), protocol.IndexUpdateMessage{
		Folder: "nonexistent",
		Files:  []protocol.FileInfo{{Name: "a.txt"}},
	})
	assert.NoError(t, err)
}

// TestOnIndexDrivesResolveIterateAdvancePull proves the full learn ->
// resolve -> iterate -> advance -> pull chain runs on its own once an
// Index message arrives, with no test code calling OnAdvance directly.
func TestOnIndexDrivesResolveIterateAdvancePull(t *testing.T) {
	c, local, peer, key := newTestCluster()
	conn := &fakeConn{}
	fw := newFakeFileWriter()
	persister := &fakePersister{}
	pc := newTestController(c, peer, conn, persister, fw, &fakeHasher{})

	require.NoError(t, pc.OnIndex(context.Background(), protocol.IndexMessage{
		Folder: "docs",
		Files: []protocol.FileInfo{
			{Name: "a.txt", Size: 4, Blocks: []protocol.BlockInfo{{Offset: 0, Size: 4, Hash: []byte{9}}}},
		},
	}))

	// A block request must already have been sent, without any direct
	// call to OnAdvance: the index-apply path resolved the new remote
	// file for a remote copy and claimed it itself.
	require.Len(t, conn.requests, 1)

	fi, ok := c.FolderInfo(key, peer)
	require.True(t, ok)
	remote, ok := fi.FileByName("a.txt")
	require.True(t, ok)
	assert.True(t, remote.Locked, "resolver's remote-copy verdict must lock the claimed file")

	require.NoError(t, pc.OnResponse(context.Background(), protocol.ResponseMessage{ID: conn.requests[0].ID, Data: []byte("abcd")}))

	localFI, ok := c.FolderInfo(key, local)
	require.True(t, ok)
	f, ok := localFI.FileByName("a.txt")
	require.True(t, ok)
	assert.True(t, f.Local)
}

func TestPullRequestsAllBlocksThenFinishesFile(t *testing.T) {
	c, local, peer, key := newTestCluster()
	conn := &fakeConn{}
	fw := newFakeFileWriter()
	persister := &fakePersister{}
	pc := newTestController(c, peer, conn, persister, fw, &fakeHasher{})

	peerFI, _ := c.FolderInfo(key, peer)
	remote := &model.FileInfo{
		Name: "a.txt",
		Size: 8,
		Blocks: []protocol.BlockInfo{
			{Offset: 0, Size: 4, Hash: []byte{1}},
			{Offset: 4, Size: 4, Hash: []byte{2}},
		},
	}
	c.PutFile(peerFI, remote)

	ctx := context.Background()
	require.NoError(t, pc.OnAdvance(ctx, &diff.Advance{
		FolderKey: key, Device: peer, Name: "a.txt", Verdict: diff.ActionRemoteCopy,
	}))
	require.Len(t, conn.requests, 2)

	require.NoError(t, pc.OnResponse(ctx, protocol.ResponseMessage{ID: conn.requests[0].ID, Data: []byte("abcd")}))
	require.NoError(t, pc.OnResponse(ctx, protocol.ResponseMessage{ID: conn.requests[1].ID, Data: []byte("efgh")}))

	localFI, ok := c.FolderInfo(key, local)
	require.True(t, ok)
	f, ok := localFI.FileByName("a.txt")
	require.True(t, ok)
	assert.True(t, f.Local)
	assert.False(t, f.Locked)
	assert.Equal(t, "/tmp/docs/a.txt", fw.renamed[tempPathFor(fw, "/tmp/docs/a.txt")])
}

// tempPathFor finds the temp path fakeFileWriter recorded a rename from,
// since the controller derives it internally via fileio.TempName.
func tempPathFor(fw *fakeFileWriter, final string) string {
	for tmp, f := range fw.renamed {
		if f == final {
			return tmp
		}
	}
	return ""
}

// TestPullHandlesOutOfOrderResponses mirrors block responses arriving
// in the order [1, 0]: block 1's bytes must still land at block 1's
// offset and block 0's at block 0's, since responses are matched to
// requests by correlation ID rather than by arrival position.
func TestPullHandlesOutOfOrderResponses(t *testing.T) {
	c, local, peer, key := newTestCluster()
	conn := &fakeConn{}
	fw := newFakeFileWriter()
	persister := &fakePersister{}
	pc := newTestController(c, peer, conn, persister, fw, &fakeHasher{})

	peerFI, _ := c.FolderInfo(key, peer)
	remote := &model.FileInfo{
		Name: "a.txt",
		Size: 8,
		Blocks: []protocol.BlockInfo{
			{Offset: 0, Size: 4, Hash: []byte{1}},
			{Offset: 4, Size: 4, Hash: []byte{2}},
		},
	}
	c.PutFile(peerFI, remote)

	ctx := context.Background()
	require.NoError(t, pc.OnAdvance(ctx, &diff.Advance{
		FolderKey: key, Device: peer, Name: "a.txt", Verdict: diff.ActionRemoteCopy,
	}))
	require.Len(t, conn.requests, 2)

	// Respond to block 1 before block 0.
	require.NoError(t, pc.OnResponse(ctx, protocol.ResponseMessage{ID: conn.requests[1].ID, Data: []byte("efgh")}))
	require.NoError(t, pc.OnResponse(ctx, protocol.ResponseMessage{ID: conn.requests[0].ID, Data: []byte("abcd")}))

	localFI, ok := c.FolderInfo(key, local)
	require.True(t, ok)
	f, ok := localFI.FileByName("a.txt")
	require.True(t, ok)
	assert.True(t, f.Local)

	tmp := tempPathFor(fw, "/tmp/docs/a.txt")
	require.NotEmpty(t, tmp)
	assert.Equal(t, "abcdefgh", string(fw.writes[tmp]), "out-of-order responses must still land at their own block's offset")
}

func TestOnResponseDigestMismatchShutsDown(t *testing.T) {
	c, _, peer, key := newTestCluster()
	conn := &fakeConn{}
	pc := newTestController(c, peer, conn, &fakePersister{}, newFakeFileWriter(), &fakeHasher{mismatch: true})

	peerFI, _ := c.FolderInfo(key, peer)
	c.PutFile(peerFI, &model.FileInfo{
		Name:   "a.txt",
		Blocks: []protocol.BlockInfo{{Offset: 0, Size: 4, Hash: []byte{1}}},
	})

	ctx := context.Background()
	require.NoError(t, pc.OnAdvance(ctx, &diff.Advance{
		FolderKey: key, Device: peer, Name: "a.txt", Verdict: diff.ActionRemoteCopy,
	}))
	require.NoError(t, pc.OnResponse(ctx, protocol.ResponseMessage{ID: conn.requests[0].ID, Data: []byte("data")}))

	assert.True(t, conn.closed)
	assert.Len(t, conn.closes, 1)
	assert.Equal(t, StateClosing, pc.State())
}

func TestOnResponseWithNoOutstandingRequestShutsDown(t *testing.T) {
	c, _, peer, _ := newTestCluster()
	conn := &fakeConn{}
	pc := newTestController(c, peer, conn, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})

	require.NoError(t, pc.OnResponse(context.Background(), protocol.ResponseMessage{Data: []byte("x")}))

	assert.True(t, conn.closed)
	assert.Len(t, conn.closes, 1)
}

func TestOnLocalUpdatePushesIndexUpdateWhenSharedAndStreaming(t *testing.T) {
	c, local, peer, key := newTestCluster()
	conn := &fakeConn{}
	pc := newTestController(c, peer, conn, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})
	pc.setState(StateIndexExchanged)

	localFI, _ := c.FolderInfo(key, local)
	f := &model.FileInfo{Name: "new.txt", Size: 1}
	c.PutFile(localFI, f)

	require.NoError(t, pc.OnLocalUpdate(context.Background(), &diff.LocalUpdate{FolderKey: key, File: f}))

	require.Len(t, conn.indexUpdates, 1)
	assert.Equal(t, "docs", conn.indexUpdates[0].Folder)
	require.Len(t, conn.indexUpdates[0].Files, 1)
	assert.Equal(t, "new.txt", conn.indexUpdates[0].Files[0].Name)
}

func TestOnLocalUpdateSkippedBeforeIndexExchanged(t *testing.T) {
	c, local, peer, key := newTestCluster()
	conn := &fakeConn{}
	pc := newTestController(c, peer, conn, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})

	localFI, _ := c.FolderInfo(key, local)
	f := &model.FileInfo{Name: "new.txt", Size: 1}
	c.PutFile(localFI, f)

	require.NoError(t, pc.OnLocalUpdate(context.Background(), &diff.LocalUpdate{FolderKey: key, File: f}))
	assert.Empty(t, conn.indexUpdates)
}

func TestOnLocalUpdateSkippedWhenNotShared(t *testing.T) {
	c, local, _, key := newTestCluster()
	other := protocol.DeviceID{0x03}
	c.PutDevice(&model.Device{ID: other})
	conn := &fakeConn{}
	pc := newTestController(c, other, conn, &fakePersister{}, newFakeFileWriter(), &fakeHasher{})
	pc.setState(StateIndexExchanged)

	localFI, _ := c.FolderInfo(key, local)
	f := &model.FileInfo{Name: "new.txt", Size: 1}
	c.PutFile(localFI, f)

	require.NoError(t, pc.OnLocalUpdate(context.Background(), &diff.LocalUpdate{FolderKey: key, File: f}))
	assert.Empty(t, conn.indexUpdates)
}
