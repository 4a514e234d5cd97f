package diff

import (
	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// AddBlocks registers content-addressed blocks with no file reference
// yet, e.g. once the hasher finishes a new local file but before
// LocalUpdate links its FileInfo.Blocks in.
type AddBlocks struct {
	Base
	Blocks []protocol.BlockInfo
}

func (d *AddBlocks) Kind() Kind { return KindAddBlocks }

func (d *AddBlocks) applyImpl(c *model.Cluster) error {
	for _, b := range d.Blocks {
		c.AddBlock(b.Hash, b.Size, b.Weak)
	}
	return nil
}

// RemoveBlocks is a notification-only diff: by the time it is emitted
// (always as a child of whichever PutFile/RemoveFile caused a block's
// reference count to hit zero) the cluster has already dropped the
// block. It exists so storage/fileio observers sitting on the diff
// stream know to delete the corresponding on-disk chunk.
type RemoveBlocks struct {
	Base
	Hashes [][]byte
}

func (d *RemoveBlocks) Kind() Kind { return KindRemoveBlocks }

func (d *RemoveBlocks) applyImpl(c *model.Cluster) error {
	return nil
}

// AppendBlock marks one block of an in-flight download as verified and
// available on disk, the per-block unit of SynchronizationStart/Finish.
type AppendBlock struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	Name      string
	Index     int
}

func (d *AppendBlock) Kind() Kind { return KindAppendBlock }

func (d *AppendBlock) applyImpl(c *model.Cluster) error {
	return (&FileAvailability{
		FolderKey: d.FolderKey,
		Device:    d.Device,
		Name:      d.Name,
		Index:     d.Index,
		Available: true,
	}).applyImpl(c)
}

// CloneBlock marks a block available without a transfer, for bytes that
// already exist locally under another name (same strong+weak hash pair)
// and can be reused in place. Neither the resolver nor netctrl emits it.
type CloneBlock struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	Name      string
	Index     int
	Hash      []byte
}

func (d *CloneBlock) Kind() Kind { return KindCloneBlock }

func (d *CloneBlock) applyImpl(c *model.Cluster) error {
	if _, ok := c.Block(d.Hash); !ok {
		return coreerrMissingLocalFolderInfo()
	}
	return (&FileAvailability{
		FolderKey: d.FolderKey,
		Device:    d.Device,
		Name:      d.Name,
		Index:     d.Index,
		Available: true,
	}).applyImpl(c)
}

// BlockAck is a pure flow-control signal acknowledging receipt of a
// requested block; it carries no cluster mutation. netctrl keeps its
// request pipeline accounting in its own window and does not emit it.
type BlockAck struct {
	Base
	Device protocol.DeviceID
	Name   string
	Index  int
}

func (d *BlockAck) Kind() Kind { return KindBlockAck }

func (d *BlockAck) applyImpl(c *model.Cluster) error {
	return nil
}

// BlockTransaction batches a run of AppendBlock/CloneBlock diffs as the
// diff's children; it performs no mutation of its own. netctrl does not
// build it when handling a Response message.
type BlockTransaction struct {
	Base
}

func (d *BlockTransaction) Kind() Kind { return KindBlockTransaction }

func (d *BlockTransaction) applyImpl(c *model.Cluster) error {
	return nil
}
