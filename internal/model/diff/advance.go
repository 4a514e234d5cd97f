package diff

import (
	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Action is the resolver's verdict for one file (§4.7's decision table).
type Action int

const (
	ActionIgnore Action = iota
	ActionRemoteCopy
	ActionResolveRemoteWin
	ActionResolveLocalWin
)

func (a Action) String() string {
	switch a {
	case ActionRemoteCopy:
		return "remote_copy"
	case ActionResolveRemoteWin:
		return "resolve_remote_win"
	case ActionResolveLocalWin:
		return "resolve_local_win"
	default:
		return "ignore"
	}
}

// Advance claims a file for in-flight synchronization per the
// resolver's verdict, locking it so the iterator's frontier cursor skips
// it until FinishFile releases the lock; a download that fails leaves
// the file locked. ActionIgnore
// performs no lock and exists so the resolver's decision is still
// observable on the diff stream.
type Advance struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	Name      string
	Verdict   Action
}

func (d *Advance) Kind() Kind { return KindAdvance }

func (d *Advance) applyImpl(c *model.Cluster) error {
	if d.Verdict == ActionIgnore {
		return nil
	}
	fi, ok := c.FolderInfo(d.FolderKey, d.Device)
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	f, ok := fi.FileByName(d.Name)
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	f.Locked = true
	WithChild(d, &SynchronizationStart{FolderKey: d.FolderKey, Name: d.Name})
	return nil
}

// FinishFile installs the synchronized FileInfo into the local device's
// FolderInfo, releases its lock, and emits a SynchronizationFinish
// signal child.
type FinishFile struct {
	Base
	FolderKey uuid.UUID
	File      *model.FileInfo
}

func (d *FinishFile) Kind() Kind { return KindFinishFile }

func (d *FinishFile) applyImpl(c *model.Cluster) error {
	if _, err := c.RequireFolder(d.FolderKey); err != nil {
		return err
	}
	fi, ok := c.FolderInfo(d.FolderKey, c.LocalDevice())
	if !ok {
		return coreerrMissingLocalFolderInfo()
	}
	d.File.Locked = false
	d.File.Local = true
	for _, other := range c.FolderInfosFor(d.FolderKey) {
		if f, ok := other.FileByName(d.File.Name); ok {
			f.Locked = false
		}
	}
	if orphaned := c.PutFile(fi, d.File); len(orphaned) > 0 {
		AppendChild(d, &RemoveBlocks{Hashes: orphaned})
	}
	AppendChild(d, &SynchronizationFinish{FolderKey: d.FolderKey, Name: d.File.Name})
	return nil
}
