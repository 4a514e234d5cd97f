package netctrl

import (
	"context"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
	"github.com/basiliscos/syncspirit-go/internal/resolver"
)

// OnClusterConfig folds an inbound ClusterConfig into a cluster_update
// diff and applies it, then advances the state machine.
func (pc *PeerController) OnClusterConfig(ctx context.Context, msg protocol.ClusterConfigMessage) error {
	d := &diff.ClusterUpdate{Device: pc.device, Message: msg}
	if err := pc.persister.Persist(ctx, d, pc.cluster); err != nil {
		return err
	}
	pc.setState(StateClusterSent)
	return nil
}

// OnIndex folds a full index snapshot into an update_folder diff batch:
// one diff.RemoteUpdate per file, chained as siblings. Files are
// upserted by name; files this peer reported earlier but left out of
// this index stay in place.
func (pc *PeerController) OnIndex(ctx context.Context, msg protocol.IndexMessage) error {
	return pc.applyIndex(ctx, msg.Folder, msg.Files)
}

// OnIndexUpdate folds an incremental index delta the same way OnIndex
// does; the wire distinction between a full Index and an IndexUpdate
// exists only so a fresh connection can request a full resync, not in
// how the core applies the result.
func (pc *PeerController) OnIndexUpdate(ctx context.Context, msg protocol.IndexUpdateMessage) error {
	return pc.applyIndex(ctx, msg.Folder, msg.Files)
}

func (pc *PeerController) applyIndex(ctx context.Context, folderID string, files []protocol.FileInfo) error {
	err := pc.applyIndexFiles(ctx, folderID, files)
	pc.setState(StateIndexExchanged)
	return err
}

func (pc *PeerController) applyIndexFiles(ctx context.Context, folderID string, files []protocol.FileInfo) error {
	f, ok := pc.cluster.FolderByID(folderID)
	if !ok {
		return nil // folder not known locally; the index is ignored
	}
	if len(files) == 0 {
		return nil
	}

	var head diff.Diff
	for _, wf := range files {
		d := &diff.RemoteUpdate{
			FolderKey: f.Key,
			Device:    pc.device,
			File:      toModelFile(wf),
		}
		if head == nil {
			head = d
		} else {
			diff.Chain(head, d)
		}
	}
	if err := pc.persister.Persist(ctx, head, pc.cluster); err != nil {
		return err
	}
	return pc.resolveAndAdvance(ctx, f.Key)
}

// resolveAndAdvance refreshes this peer's iterator frontier for
// folderKey from the just-merged FolderInfo, then drains every
// candidate the frontier now holds across every folder shared with
// this peer: each file is run through the resolver's decision table,
// the verdict is persisted as an Advance diff (locking the file and
// letting storage/other peers observe it), the name is settled so it
// is not offered again while it stays in the peer's index, and OnAdvance is
// invoked so a remote-copy verdict immediately starts pulling blocks.
func (pc *PeerController) resolveAndAdvance(ctx context.Context, folderKey uuid.UUID) error {
	pc.iter.OnUpsertFolder(folderKey)

	local, _ := pc.cluster.FolderInfo(folderKey, pc.cluster.LocalDevice())

	for {
		rf, fk, ok := pc.iter.Next()
		if !ok {
			break
		}
		folder, ok := pc.cluster.Folder(fk)
		if !ok {
			pc.iter.Settle(fk, rf.Name)
			continue
		}

		var localFile *model.FileInfo
		if local != nil {
			localFile, _ = local.FileByName(rf.Name)
		}

		verdict := resolver.Resolve(resolver.Input{
			Remote:       fromModelFile(rf),
			Local:        localFile,
			IgnoreDelete: folder.IgnoreDelete,
		})

		adv := &diff.Advance{FolderKey: fk, Device: pc.device, Name: rf.Name, Verdict: verdict}
		if err := pc.persister.Persist(ctx, adv, pc.cluster); err != nil {
			return err
		}
		pc.iter.Settle(fk, rf.Name)

		if err := pc.OnAdvance(ctx, adv); err != nil {
			return err
		}
	}
	return nil
}

func toModelFile(wf protocol.FileInfo) *model.FileInfo {
	return &model.FileInfo{
		Name:          wf.Name,
		Type:          wf.Type,
		Size:          wf.Size,
		BlockSize:     wf.BlockSize,
		ModifiedS:     wf.ModifiedS,
		Permissions:   wf.Permissions,
		SymlinkTarget: wf.SymlinkTarget,
		Deleted:       wf.Deleted,
		Invalid:       wf.Invalid,
		Sequence:      wf.Sequence,
		Version:       wf.Version,
		ModifiedBy:    wf.ModifiedBy,
		Blocks:        wf.Blocks,
		Available:     make([]bool, len(wf.Blocks)),
	}
}

func fromModelFile(f *model.FileInfo) protocol.FileInfo {
	return protocol.FileInfo{
		Name:          f.Name,
		Type:          f.Type,
		Size:          f.Size,
		BlockSize:     f.BlockSize,
		ModifiedS:     f.ModifiedS,
		Permissions:   f.Permissions,
		SymlinkTarget: f.SymlinkTarget,
		Deleted:       f.Deleted,
		Invalid:       f.Invalid,
		Sequence:      f.Sequence,
		Version:       f.Version,
		ModifiedBy:    f.ModifiedBy,
		Blocks:        f.Blocks,
	}
}
