package diff

import (
	"time"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// LocalUpdate installs a freshly scanned or freshly synced file into the
// local device's own FolderInfo, maintaining block reference counts. The
// caller (scanner or the advance pipeline) is responsible for minting the
// sequence number via the cluster's sequencer before building File.
type LocalUpdate struct {
	Base
	FolderKey uuid.UUID
	File      *model.FileInfo
}

func (d *LocalUpdate) Kind() Kind { return KindLocalUpdate }

func (d *LocalUpdate) applyImpl(c *model.Cluster) error {
	if _, err := c.RequireFolder(d.FolderKey); err != nil {
		return err
	}
	fi, ok := c.FolderInfo(d.FolderKey, c.LocalDevice())
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	if orphaned := c.PutFile(fi, d.File); len(orphaned) > 0 {
		WithChild(d, &RemoveBlocks{Hashes: orphaned})
	}
	return nil
}

// ScanStart records the timestamp a folder scan began.
type ScanStart struct {
	Base
	FolderKey uuid.UUID
	At        time.Time
}

func (d *ScanStart) Kind() Kind { return KindScanStart }

func (d *ScanStart) applyImpl(c *model.Cluster) error {
	f, err := c.RequireFolder(d.FolderKey)
	if err != nil {
		return err
	}
	f.ScanStart = d.At
	return nil
}

// ScanFinish records the timestamp a folder scan completed.
type ScanFinish struct {
	Base
	FolderKey uuid.UUID
	At        time.Time
}

func (d *ScanFinish) Kind() Kind { return KindScanFinish }

func (d *ScanFinish) applyImpl(c *model.Cluster) error {
	f, err := c.RequireFolder(d.FolderKey)
	if err != nil {
		return err
	}
	f.ScanFinish = d.At
	return nil
}

// ScanRequest is a pure signal diff: it carries no cluster mutation, only
// a request that the scanner actor rescan a folder out of its normal
// schedule (e.g. on a watcher-coalesced change). It exists as a diff so
// it can ride the same sibling/child chain and ordering guarantees as
// everything else flowing out of the coordinator.
type ScanRequest struct {
	Base
	FolderKey uuid.UUID
}

func (d *ScanRequest) Kind() Kind { return KindScanRequest }

func (d *ScanRequest) applyImpl(c *model.Cluster) error {
	if _, err := c.RequireFolder(d.FolderKey); err != nil {
		return err
	}
	return nil
}

// Suspend marks a folder unusable with an operator- or fault-visible
// reason (e.g. path missing, permission denied, disk full). An empty
// reason clears suspension.
type Suspend struct {
	Base
	FolderKey uuid.UUID
	Reason    string
}

func (d *Suspend) Kind() Kind { return KindSuspend }

func (d *Suspend) applyImpl(c *model.Cluster) error {
	f, err := c.RequireFolder(d.FolderKey)
	if err != nil {
		return err
	}
	f.SuspendReason = d.Reason
	return nil
}

// MarkReachable flips a device's connection state to online and records
// the endpoint it was reached at.
type MarkReachable struct {
	Base
	Device   protocol.DeviceID
	Endpoint string
}

func (d *MarkReachable) Kind() Kind { return KindMarkReachable }

func (d *MarkReachable) applyImpl(c *model.Cluster) error {
	dev, err := c.RequireDevice(d.Device)
	if err != nil {
		return err
	}
	dev.State = model.StateOnline
	if d.Endpoint != "" {
		dev.Endpoints = append([]string{d.Endpoint}, dev.Endpoints...)
	}
	return nil
}

// FileAvailability flips a single block's on-disk-matches-hash bit
// (invariant 7) as the file-io actor verifies or invalidates it.
type FileAvailability struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	Name      string
	Index     int
	Available bool
}

func (d *FileAvailability) Kind() Kind { return KindFileAvailability }

func (d *FileAvailability) applyImpl(c *model.Cluster) error {
	fi, ok := c.FolderInfo(d.FolderKey, d.Device)
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	f, ok := fi.FileByName(d.Name)
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	if d.Index < 0 || d.Index >= len(f.Available) {
		return coreerrUnexpectedBlocks()
	}
	f.Available[d.Index] = d.Available
	return nil
}

// BlocksAvailability batches FileAvailability updates for every block of
// a file, e.g. once a full redundancy check completes.
type BlocksAvailability struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	Name      string
	Available []bool
}

func (d *BlocksAvailability) Kind() Kind { return KindBlocksAvailability }

func (d *BlocksAvailability) applyImpl(c *model.Cluster) error {
	fi, ok := c.FolderInfo(d.FolderKey, d.Device)
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	f, ok := fi.FileByName(d.Name)
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	if len(d.Available) != len(f.Blocks) {
		return coreerrSizeMismatch()
	}
	f.Available = d.Available
	return nil
}

// SynchronizationStart is a lifecycle signal marking that a file has
// begun pulling from the network; it carries no cluster mutation beyond
// what FileAvailability/BlockTransaction diffs already express, and
// exists for metrics/logging observers sitting on the diff stream.
type SynchronizationStart struct {
	Base
	FolderKey uuid.UUID
	Name      string
}

func (d *SynchronizationStart) Kind() Kind { return KindSynchronizationStart }

func (d *SynchronizationStart) applyImpl(c *model.Cluster) error {
	_, err := c.RequireFolder(d.FolderKey)
	return err
}

// SynchronizationFinish is the matching lifecycle signal for
// SynchronizationStart, emitted once FinishFile has been applied.
type SynchronizationFinish struct {
	Base
	FolderKey uuid.UUID
	Name      string
}

func (d *SynchronizationFinish) Kind() Kind { return KindSynchronizationFinish }

func (d *SynchronizationFinish) applyImpl(c *model.Cluster) error {
	_, err := c.RequireFolder(d.FolderKey)
	return err
}
