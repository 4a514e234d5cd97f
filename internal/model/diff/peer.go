package diff

import (
	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// ClusterUpdate applies one peer's ClusterConfigMessage: for every folder
// the peer shares that we also share with them, it folds in the peer's
// index id and max sequence (as an UpdateFolder child); for every folder
// the peer offers that we do not yet share, it records a PendingFolder
// (as an AddPendingFolders child).
type ClusterUpdate struct {
	Base
	Device  protocol.DeviceID
	Message protocol.ClusterConfigMessage
}

func (d *ClusterUpdate) Kind() Kind { return KindClusterUpdate }

func (d *ClusterUpdate) applyImpl(c *model.Cluster) error {
	var newPending []*model.PendingFolder
	for _, wireFolder := range d.Message.Folders {
		f, known := c.FolderByID(wireFolder.ID)
		var theirEntry *protocol.FolderDevice
		for i := range wireFolder.Devices {
			if wireFolder.Devices[i].ID == d.Device {
				theirEntry = &wireFolder.Devices[i]
				break
			}
		}
		if theirEntry == nil {
			continue
		}
		if known && f.IsSharedWith(d.Device) {
			AppendChild(d, &UpdateFolder{
				FolderKey:   f.Key,
				Device:      d.Device,
				IndexID:     theirEntry.IndexID,
				MaxSequence: theirEntry.MaxSequence,
			})
			continue
		}
		newPending = append(newPending, &model.PendingFolder{
			FolderID:    wireFolder.ID,
			Label:       wireFolder.Label,
			Device:      d.Device,
			IndexID:     theirEntry.IndexID,
			MaxSequence: theirEntry.MaxSequence,
		})
	}
	if len(newPending) > 0 {
		AppendChild(d, &AddPendingFolders{Folders: newPending})
	}
	return nil
}

// UpdateFolder refreshes a FolderInfo's index id and/or max sequence,
// e.g. after receiving a peer's ClusterConfig or Index message. It
// creates the FolderInfo on first contact.
type UpdateFolder struct {
	Base
	FolderKey   uuid.UUID
	Device      protocol.DeviceID
	IndexID     protocol.IndexID
	MaxSequence int64
}

func (d *UpdateFolder) Kind() Kind { return KindUpdateFolder }

func (d *UpdateFolder) applyImpl(c *model.Cluster) error {
	key := d.FolderKey
	if _, err := c.RequireFolder(key); err != nil {
		return err
	}
	fi, ok := c.FolderInfo(key, d.Device)
	if !ok {
		fi = model.NewFolderInfo(key, key, d.Device)
		fi.IndexID = d.IndexID
	}
	if d.IndexID != 0 {
		fi.IndexID = d.IndexID
	}
	if d.MaxSequence > fi.MaxSequence {
		fi.MaxSequence = d.MaxSequence
	}
	c.PutFolderInfo(fi)
	return nil
}

// RemoteUpdate installs one file entry received from a peer's Index or
// IndexUpdate message into that peer's FolderInfo, maintaining block
// reference counts exactly like LocalUpdate does for the local device.
// netctrl builds one of these per file in the wire message and chains
// them as siblings under a single ClusterUpdate-style batch.
type RemoteUpdate struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	File      *model.FileInfo
}

func (d *RemoteUpdate) Kind() Kind { return KindRemoteUpdate }

func (d *RemoteUpdate) applyImpl(c *model.Cluster) error {
	if _, err := c.RequireFolder(d.FolderKey); err != nil {
		return err
	}
	fi, ok := c.FolderInfo(d.FolderKey, d.Device)
	if !ok {
		fi = model.NewFolderInfo(d.FolderKey, d.FolderKey, d.Device)
		c.PutFolderInfo(fi)
	}
	if orphaned := c.PutFile(fi, d.File); len(orphaned) > 0 {
		WithChild(d, &RemoveBlocks{Hashes: orphaned})
	}
	return nil
}

// RemovePendingFolders drops a batch of folders a peer previously
// offered, e.g. once the operator accepts or explicitly rejects them.
type RemovePendingFolders struct {
	Base
	Keys []uuid.UUID
}

func (d *RemovePendingFolders) Kind() Kind { return KindRemovePendingFolders }

func (d *RemovePendingFolders) applyImpl(c *model.Cluster) error {
	for _, k := range d.Keys {
		c.RemovePendingFolder(k)
	}
	return nil
}

// AddPendingFolders records folders offered by a peer that the operator
// has not yet decided about.
type AddPendingFolders struct {
	Base
	Folders []*model.PendingFolder
}

func (d *AddPendingFolders) Kind() Kind { return KindAddPendingFolders }

func (d *AddPendingFolders) applyImpl(c *model.Cluster) error {
	for _, f := range d.Folders {
		c.PutPendingFolder(f)
	}
	return nil
}
