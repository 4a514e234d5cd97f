package netctrl

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/fileio"
	"github.com/basiliscos/syncspirit-go/internal/metrics"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// pullState tracks one file this controller is currently downloading
// from its peer.
type pullState struct {
	folderKey uuid.UUID
	name      string
	tempPath  string
	finalPath string
	blocks    []protocol.BlockInfo
	next      int
	remaining int
	file      *model.FileInfo
}

// outstandingRequest records the block a sent Request is waiting on,
// keyed by the request's correlation ID so a response can be matched to
// its request regardless of arrival order.
type outstandingRequest struct {
	key          pullKey
	blockIndex   int
	offset       int64
	expectedHash []byte
}

const maskWindow = 2 * time.Second

func maskDeadline() int64 { return time.Now().Add(maskWindow).UnixNano() }

// OnAdvance reacts to an applied Advance diff: if it claims a file in a
// folder shared with this peer for remote copy, the controller begins
// pulling its blocks.
func (pc *PeerController) OnAdvance(ctx context.Context, d *diff.Advance) error {
	if d.Verdict != diff.ActionRemoteCopy || d.Device != pc.device {
		return nil
	}

	fi, ok := pc.cluster.FolderInfo(d.FolderKey, pc.device)
	if !ok {
		return nil
	}
	remote, ok := fi.FileByName(d.Name)
	if !ok {
		return nil
	}
	folder, ok := pc.cluster.Folder(d.FolderKey)
	if !ok {
		return nil
	}

	finalPath := filepath.Join(folder.Path, d.Name)
	ps := &pullState{
		folderKey: d.FolderKey,
		name:      d.Name,
		tempPath:  fileio.TempName(finalPath),
		finalPath: finalPath,
		blocks:    remote.Blocks,
		remaining: len(remote.Blocks),
		file: &model.FileInfo{
			Name:          remote.Name,
			Type:          remote.Type,
			Size:          remote.Size,
			BlockSize:     remote.BlockSize,
			ModifiedS:     remote.ModifiedS,
			Permissions:   remote.Permissions,
			SymlinkTarget: remote.SymlinkTarget,
			Version:       remote.Version,
			ModifiedBy:    remote.ModifiedBy,
			Blocks:        remote.Blocks,
			Available:     make([]bool, len(remote.Blocks)),
		},
	}

	pc.mu.Lock()
	pc.files[pullKey{FolderKey: ps.folderKey, Name: ps.name}] = ps
	pc.mu.Unlock()

	if len(ps.blocks) == 0 {
		return pc.finishFile(ctx, ps)
	}

	return pc.pump(folder.ID)
}

// pump issues as many outstanding block requests as the pipelining
// window currently allows, across every file this controller is
// pulling.
func (pc *PeerController) pump(folderID string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for _, ps := range pc.files {
		for ps.next < len(ps.blocks) && pc.window.TryAcquire() {
			b := ps.blocks[ps.next]
			pc.nextReqID++
			id := pc.nextReqID
			req := protocol.RequestMessage{
				ID:     id,
				Folder: folderID,
				Name:   ps.name,
				Offset: b.Offset,
				Size:   int(b.Size),
				Hash:   b.Hash,
			}
			pc.outstanding[id] = outstandingRequest{
				key:          pullKey{FolderKey: ps.folderKey, Name: ps.name},
				blockIndex:   ps.next,
				offset:       b.Offset,
				expectedHash: b.Hash,
			}
			ps.next++
			if err := pc.conn.SendRequest(req); err != nil {
				return err
			}
		}
	}
	metrics.SetNetctrlInFlight(pc.device.String(), pc.window.InFlight())
	return nil
}

// OnResponse handles one block response, matched to its request by
// correlation ID so responses may arrive in any order relative to their
// requests. A digest mismatch or an error response code shuts the peer
// connection down with a protocol error.
func (pc *PeerController) OnResponse(ctx context.Context, resp protocol.ResponseMessage) error {
	pc.mu.Lock()
	req, ok := pc.outstanding[resp.ID]
	if !ok {
		pc.mu.Unlock()
		return pc.shutdown("unexpected response with no matching outstanding request")
	}
	delete(pc.outstanding, resp.ID)
	pc.window.Release()
	ps := pc.files[req.key]
	pc.mu.Unlock()

	if resp.Code != protocol.CodeNoError {
		return pc.shutdown("peer returned an error response")
	}
	if ps == nil {
		return nil // file was cancelled/removed mid-flight
	}

	ok, err := pc.hasher.Validate(ctx, resp.Data, req.expectedHash)
	if err != nil {
		return err
	}
	if !ok {
		metrics.IncNetctrlBlock(pc.device.String(), "digest_mismatch")
		return pc.shutdown("block digest mismatch")
	}
	metrics.IncNetctrlBlock(pc.device.String(), "ok")

	if err := pc.fileio.WriteAt(ps.tempPath, req.offset, resp.Data, maskDeadline()); err != nil {
		return err
	}
	ps.file.Available[req.blockIndex] = true
	ps.remaining--

	if ps.remaining > 0 {
		return nil
	}
	return pc.finishFile(ctx, ps)
}

func (pc *PeerController) finishFile(ctx context.Context, ps *pullState) error {
	if err := pc.fileio.RenameAtomic(ps.tempPath, ps.finalPath, maskDeadline()); err != nil {
		return err
	}
	d := &diff.FinishFile{FolderKey: ps.folderKey, File: ps.file}
	if err := pc.persister.Persist(ctx, d, pc.cluster); err != nil {
		return err
	}

	pc.mu.Lock()
	delete(pc.files, pullKey{FolderKey: ps.folderKey, Name: ps.name})
	pc.mu.Unlock()
	return nil
}
