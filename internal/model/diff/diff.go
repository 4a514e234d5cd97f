// Package diff implements the cluster's mutation pipeline (component
// C2): a closed tagged union of diffs, the only legitimate way to change
// an internal/model.Cluster. Every diff carries two composition slots —
// sibling (applied after, at the same level) and child (applied as part
// of this diff's own apply, depth-first, in insertion order) — and apply
// order is strict: self, then children, then siblings.
//
// The apply-controller is a visitor: one method per diff variant. The
// default controller (BaseController) just calls the diff's own
// applyImpl; tests and the persistence layer (component C3) install
// their own Controller to intercept individual variants, e.g. to persist
// load state between children during cold start.
package diff

import (
	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/model"
)

// Kind identifies a diff variant for logging, persistence tagging, and
// controller dispatch.
type Kind int

const (
	KindUpsertFolder Kind = iota
	KindUpsertFolderInfo
	KindRemoveFolder
	KindRemoveFolderInfos
	KindUnshareFolder
	KindShareFolder
	KindRemovePeer
	KindUpdatePeer
	KindUpdateContact
	KindUpdateState

	KindAddPendingDevice
	KindRemovePendingDevice
	KindAddIgnoredDevice
	KindRemoveIgnoredDevice
	KindPendingConnected
	KindIgnoredConnected
	KindUnknownConnected

	KindClusterUpdate
	KindUpdateFolder
	KindRemoteUpdate
	KindRemovePendingFolders
	KindAddPendingFolders

	KindLocalUpdate
	KindScanStart
	KindScanFinish
	KindScanRequest
	KindSuspend
	KindMarkReachable
	KindFileAvailability
	KindBlocksAvailability
	KindSynchronizationStart
	KindSynchronizationFinish

	KindAddBlocks
	KindRemoveBlocks
	KindAppendBlock
	KindCloneBlock
	KindBlockAck
	KindBlockTransaction

	KindAdvance
	KindFinishFile

	KindAggregate
	KindLoad
	KindInterrupt
)

//go:generate stringer -type=Kind

// Diff is one node in a diff's sibling/child chain.
type Diff interface {
	Kind() Kind
	// applyImpl performs this diff's own mutation of the cluster. It
	// never recurses into children or siblings — that's Apply's job.
	applyImpl(c *model.Cluster) error

	Sibling() Diff
	Child() Diff
}

// Base is embedded by every concrete diff to provide the sibling/child
// bookkeeping, so each variant only has to implement Kind and applyImpl.
type Base struct {
	sibling Diff
	child   Diff
}

func (b *Base) Sibling() Diff { return b.sibling }
func (b *Base) Child() Diff   { return b.child }

func (b *Base) SetSibling(d Diff) { b.sibling = d }
func (b *Base) SetChild(d Diff)   { b.child = d }

type linker interface {
	SetSibling(Diff)
	SetChild(Diff)
}

// Chain appends tail to the end of head's sibling chain and returns head,
// so callers can build a linear batch: Chain(d1, d2, d3).
func Chain(head Diff, rest ...Diff) Diff {
	cur := head
	for cur.Sibling() != nil {
		cur = cur.Sibling()
	}
	for _, d := range rest {
		if l, ok := cur.(linker); ok {
			l.SetSibling(d)
		}
		cur = d
	}
	return head
}

// WithChild attaches child as parent's child chain and returns parent, so
// callers can write WithChild(RemoveFolder{...}, RemoveFolderInfos{...}).
func WithChild(parent Diff, child Diff) Diff {
	if l, ok := parent.(linker); ok {
		l.SetChild(child)
	}
	return parent
}

// AppendChild adds child to parent's existing child chain instead of
// replacing it, for applyImpl methods that emit more than one child
// diff (e.g. one per removed FolderInfo in a loop).
func AppendChild(parent Diff, child Diff) Diff {
	if l, ok := parent.(linker); ok {
		if existing := parent.Child(); existing != nil {
			Chain(existing, child)
		} else {
			l.SetChild(child)
		}
	}
	return parent
}

// Controller is the apply-visitor: one operator per diff variant. The
// default operators (BaseController) all delegate to the diff's own
// applyImpl; a custom controller overrides individual methods, e.g. to
// pause between children during a cold-start load (component C3).
type Controller interface {
	VisitUpsertFolder(d *UpsertFolder, c *model.Cluster) error
	VisitUpsertFolderInfo(d *UpsertFolderInfo, c *model.Cluster) error
	VisitRemoveFolder(d *RemoveFolder, c *model.Cluster) error
	VisitRemoveFolderInfos(d *RemoveFolderInfos, c *model.Cluster) error
	VisitUnshareFolder(d *UnshareFolder, c *model.Cluster) error
	VisitShareFolder(d *ShareFolder, c *model.Cluster) error
	VisitRemovePeer(d *RemovePeer, c *model.Cluster) error
	VisitUpdatePeer(d *UpdatePeer, c *model.Cluster) error
	VisitUpdateContact(d *UpdateContact, c *model.Cluster) error
	VisitUpdateState(d *UpdateState, c *model.Cluster) error

	VisitAddPendingDevice(d *AddPendingDevice, c *model.Cluster) error
	VisitRemovePendingDevice(d *RemovePendingDevice, c *model.Cluster) error
	VisitAddIgnoredDevice(d *AddIgnoredDevice, c *model.Cluster) error
	VisitRemoveIgnoredDevice(d *RemoveIgnoredDevice, c *model.Cluster) error
	VisitPendingConnected(d *PendingConnected, c *model.Cluster) error
	VisitIgnoredConnected(d *IgnoredConnected, c *model.Cluster) error
	VisitUnknownConnected(d *UnknownConnected, c *model.Cluster) error

	VisitClusterUpdate(d *ClusterUpdate, c *model.Cluster) error
	VisitUpdateFolder(d *UpdateFolder, c *model.Cluster) error
	VisitRemoteUpdate(d *RemoteUpdate, c *model.Cluster) error
	VisitRemovePendingFolders(d *RemovePendingFolders, c *model.Cluster) error
	VisitAddPendingFolders(d *AddPendingFolders, c *model.Cluster) error

	VisitLocalUpdate(d *LocalUpdate, c *model.Cluster) error
	VisitScanStart(d *ScanStart, c *model.Cluster) error
	VisitScanFinish(d *ScanFinish, c *model.Cluster) error
	VisitScanRequest(d *ScanRequest, c *model.Cluster) error
	VisitSuspend(d *Suspend, c *model.Cluster) error
	VisitMarkReachable(d *MarkReachable, c *model.Cluster) error
	VisitFileAvailability(d *FileAvailability, c *model.Cluster) error
	VisitBlocksAvailability(d *BlocksAvailability, c *model.Cluster) error
	VisitSynchronizationStart(d *SynchronizationStart, c *model.Cluster) error
	VisitSynchronizationFinish(d *SynchronizationFinish, c *model.Cluster) error

	VisitAddBlocks(d *AddBlocks, c *model.Cluster) error
	VisitRemoveBlocks(d *RemoveBlocks, c *model.Cluster) error
	VisitAppendBlock(d *AppendBlock, c *model.Cluster) error
	VisitCloneBlock(d *CloneBlock, c *model.Cluster) error
	VisitBlockAck(d *BlockAck, c *model.Cluster) error
	VisitBlockTransaction(d *BlockTransaction, c *model.Cluster) error

	VisitAdvance(d *Advance, c *model.Cluster) error
	VisitFinishFile(d *FinishFile, c *model.Cluster) error

	VisitAggregate(d *Aggregate, c *model.Cluster) error
	VisitLoad(d *Load, c *model.Cluster) error
	VisitInterrupt(d *Interrupt, c *model.Cluster) error
}

// dispatch calls the Controller method matching d's concrete type. It is
// the single switch statement standing in for open-ended dynamic
// dispatch, per design note "closed tagged union with a visitor
// interface — avoids class hierarchies".
func dispatch(d Diff, c *model.Cluster, ctrl Controller) error {
	switch v := d.(type) {
	case *UpsertFolder:
		return ctrl.VisitUpsertFolder(v, c)
	case *UpsertFolderInfo:
		return ctrl.VisitUpsertFolderInfo(v, c)
	case *RemoveFolder:
		return ctrl.VisitRemoveFolder(v, c)
	case *RemoveFolderInfos:
		return ctrl.VisitRemoveFolderInfos(v, c)
	case *UnshareFolder:
		return ctrl.VisitUnshareFolder(v, c)
	case *ShareFolder:
		return ctrl.VisitShareFolder(v, c)
	case *RemovePeer:
		return ctrl.VisitRemovePeer(v, c)
	case *UpdatePeer:
		return ctrl.VisitUpdatePeer(v, c)
	case *UpdateContact:
		return ctrl.VisitUpdateContact(v, c)
	case *UpdateState:
		return ctrl.VisitUpdateState(v, c)

	case *AddPendingDevice:
		return ctrl.VisitAddPendingDevice(v, c)
	case *RemovePendingDevice:
		return ctrl.VisitRemovePendingDevice(v, c)
	case *AddIgnoredDevice:
		return ctrl.VisitAddIgnoredDevice(v, c)
	case *RemoveIgnoredDevice:
		return ctrl.VisitRemoveIgnoredDevice(v, c)
	case *PendingConnected:
		return ctrl.VisitPendingConnected(v, c)
	case *IgnoredConnected:
		return ctrl.VisitIgnoredConnected(v, c)
	case *UnknownConnected:
		return ctrl.VisitUnknownConnected(v, c)

	case *ClusterUpdate:
		return ctrl.VisitClusterUpdate(v, c)
	case *UpdateFolder:
		return ctrl.VisitUpdateFolder(v, c)
	case *RemoteUpdate:
		return ctrl.VisitRemoteUpdate(v, c)
	case *RemovePendingFolders:
		return ctrl.VisitRemovePendingFolders(v, c)
	case *AddPendingFolders:
		return ctrl.VisitAddPendingFolders(v, c)

	case *LocalUpdate:
		return ctrl.VisitLocalUpdate(v, c)
	case *ScanStart:
		return ctrl.VisitScanStart(v, c)
	case *ScanFinish:
		return ctrl.VisitScanFinish(v, c)
	case *ScanRequest:
		return ctrl.VisitScanRequest(v, c)
	case *Suspend:
		return ctrl.VisitSuspend(v, c)
	case *MarkReachable:
		return ctrl.VisitMarkReachable(v, c)
	case *FileAvailability:
		return ctrl.VisitFileAvailability(v, c)
	case *BlocksAvailability:
		return ctrl.VisitBlocksAvailability(v, c)
	case *SynchronizationStart:
		return ctrl.VisitSynchronizationStart(v, c)
	case *SynchronizationFinish:
		return ctrl.VisitSynchronizationFinish(v, c)

	case *AddBlocks:
		return ctrl.VisitAddBlocks(v, c)
	case *RemoveBlocks:
		return ctrl.VisitRemoveBlocks(v, c)
	case *AppendBlock:
		return ctrl.VisitAppendBlock(v, c)
	case *CloneBlock:
		return ctrl.VisitCloneBlock(v, c)
	case *BlockAck:
		return ctrl.VisitBlockAck(v, c)
	case *BlockTransaction:
		return ctrl.VisitBlockTransaction(v, c)

	case *Advance:
		return ctrl.VisitAdvance(v, c)
	case *FinishFile:
		return ctrl.VisitFinishFile(v, c)

	case *Aggregate:
		return ctrl.VisitAggregate(v, c)
	case *Load:
		return ctrl.VisitLoad(v, c)
	case *Interrupt:
		return ctrl.VisitInterrupt(v, c)

	default:
		return coreerr.New(coreerr.KindUnexpectedBlocks, "diff.dispatch", nil)
	}
}

// BaseController is the default apply-controller: every operator just
// runs the diff's own applyImpl.
type BaseController struct{}

func (BaseController) VisitUpsertFolder(d *UpsertFolder, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitUpsertFolderInfo(d *UpsertFolderInfo, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitRemoveFolder(d *RemoveFolder, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitRemoveFolderInfos(d *RemoveFolderInfos, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitUnshareFolder(d *UnshareFolder, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitShareFolder(d *ShareFolder, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitRemovePeer(d *RemovePeer, c *model.Cluster) error   { return d.applyImpl(c) }
func (BaseController) VisitUpdatePeer(d *UpdatePeer, c *model.Cluster) error   { return d.applyImpl(c) }
func (BaseController) VisitUpdateContact(d *UpdateContact, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitUpdateState(d *UpdateState, c *model.Cluster) error { return d.applyImpl(c) }

func (BaseController) VisitAddPendingDevice(d *AddPendingDevice, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitRemovePendingDevice(d *RemovePendingDevice, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitAddIgnoredDevice(d *AddIgnoredDevice, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitRemoveIgnoredDevice(d *RemoveIgnoredDevice, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitPendingConnected(d *PendingConnected, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitIgnoredConnected(d *IgnoredConnected, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitUnknownConnected(d *UnknownConnected, c *model.Cluster) error {
	return d.applyImpl(c)
}

func (BaseController) VisitClusterUpdate(d *ClusterUpdate, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitUpdateFolder(d *UpdateFolder, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitRemoteUpdate(d *RemoteUpdate, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitRemovePendingFolders(d *RemovePendingFolders, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitAddPendingFolders(d *AddPendingFolders, c *model.Cluster) error {
	return d.applyImpl(c)
}

func (BaseController) VisitLocalUpdate(d *LocalUpdate, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitScanStart(d *ScanStart, c *model.Cluster) error     { return d.applyImpl(c) }
func (BaseController) VisitScanFinish(d *ScanFinish, c *model.Cluster) error   { return d.applyImpl(c) }
func (BaseController) VisitScanRequest(d *ScanRequest, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitSuspend(d *Suspend, c *model.Cluster) error         { return d.applyImpl(c) }
func (BaseController) VisitMarkReachable(d *MarkReachable, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitFileAvailability(d *FileAvailability, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitBlocksAvailability(d *BlocksAvailability, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitSynchronizationStart(d *SynchronizationStart, c *model.Cluster) error {
	return d.applyImpl(c)
}
func (BaseController) VisitSynchronizationFinish(d *SynchronizationFinish, c *model.Cluster) error {
	return d.applyImpl(c)
}

func (BaseController) VisitAddBlocks(d *AddBlocks, c *model.Cluster) error       { return d.applyImpl(c) }
func (BaseController) VisitRemoveBlocks(d *RemoveBlocks, c *model.Cluster) error { return d.applyImpl(c) }
func (BaseController) VisitAppendBlock(d *AppendBlock, c *model.Cluster) error   { return d.applyImpl(c) }
func (BaseController) VisitCloneBlock(d *CloneBlock, c *model.Cluster) error     { return d.applyImpl(c) }
func (BaseController) VisitBlockAck(d *BlockAck, c *model.Cluster) error         { return d.applyImpl(c) }
func (BaseController) VisitBlockTransaction(d *BlockTransaction, c *model.Cluster) error {
	return d.applyImpl(c)
}

func (BaseController) VisitAdvance(d *Advance, c *model.Cluster) error       { return d.applyImpl(c) }
func (BaseController) VisitFinishFile(d *FinishFile, c *model.Cluster) error { return d.applyImpl(c) }

func (BaseController) VisitAggregate(d *Aggregate, c *model.Cluster) error   { return d.applyImpl(c) }
func (BaseController) VisitLoad(d *Load, c *model.Cluster) error             { return d.applyImpl(c) }
func (BaseController) VisitInterrupt(d *Interrupt, c *model.Cluster) error   { return d.applyImpl(c) }

// Apply walks d's sibling chain; for each node it runs the controller,
// then recurses depth-first into that node's own child chain, then moves
// to the next sibling. On error the cluster is tainted and the whole
// batch aborts (§4.2 failure semantics: a failed diff aborts the entire
// batch, non-local by design).
func Apply(d Diff, c *model.Cluster, ctrl Controller) error {
	for cur := d; cur != nil; cur = cur.Sibling() {
		if err := dispatch(cur, c, ctrl); err != nil {
			c.Taint()
			return err
		}
		if child := cur.Child(); child != nil {
			if err := Apply(child, c, ctrl); err != nil {
				return err
			}
		}
	}
	return nil
}
