package diff

import (
	"time"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// UpsertFolder creates or replaces a Folder record.
type UpsertFolder struct {
	Base
	Folder *model.Folder
}

func (d *UpsertFolder) Kind() Kind { return KindUpsertFolder }

func (d *UpsertFolder) applyImpl(c *model.Cluster) error {
	if d.Folder == nil {
		return coreerr.New(coreerr.KindMissingParent, "diff.upsert_folder", nil)
	}
	c.PutFolder(d.Folder)
	return nil
}

// UpsertFolderInfo creates or replaces the per-(folder,device) record.
// Invariant 1 requires the folder and device to already exist.
type UpsertFolderInfo struct {
	Base
	FolderInfo *model.FolderInfo
}

func (d *UpsertFolderInfo) Kind() Kind { return KindUpsertFolderInfo }

func (d *UpsertFolderInfo) applyImpl(c *model.Cluster) error {
	if _, err := c.RequireFolder(d.FolderInfo.FolderKey); err != nil {
		return err
	}
	if _, err := c.RequireDevice(d.FolderInfo.Device); err != nil {
		return err
	}
	c.PutFolderInfo(d.FolderInfo)
	return nil
}

// RemoveFolder deletes a folder and, as children, every FolderInfo that
// referenced it (spec example of a cascading child diff).
type RemoveFolder struct {
	Base
	FolderKey uuid.UUID
}

func (d *RemoveFolder) Kind() Kind { return KindRemoveFolder }

func (d *RemoveFolder) applyImpl(c *model.Cluster) error {
	var devices []protocol.DeviceID
	for _, fi := range c.FolderInfosFor(d.FolderKey) {
		devices = append(devices, fi.Device)
	}
	removed := c.RemoveFolder(d.FolderKey)
	if len(removed) > 0 {
		WithChild(d, &RemoveFolderInfos{FolderKey: d.FolderKey, Keys: removed, Devices: devices})
	}
	return nil
}

// RemoveFolderInfos removes a batch of FolderInfo records, used as the
// child of RemoveFolder and RemovePeer.
type RemoveFolderInfos struct {
	Base
	FolderKey uuid.UUID
	Keys      []uuid.UUID
	Devices   []protocol.DeviceID
}

func (d *RemoveFolderInfos) Kind() Kind { return KindRemoveFolderInfos }

func (d *RemoveFolderInfos) applyImpl(c *model.Cluster) error {
	for _, dev := range d.Devices {
		c.RemoveFolderInfo(d.FolderKey, dev)
	}
	return nil
}

// UnshareFolder removes a device from a folder's SharedWith set.
type UnshareFolder struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
}

func (d *UnshareFolder) Kind() Kind { return KindUnshareFolder }

func (d *UnshareFolder) applyImpl(c *model.Cluster) error {
	f, err := c.RequireFolder(d.FolderKey)
	if err != nil {
		return err
	}
	delete(f.SharedWith, d.Device)
	WithChild(d, &RemoveFolderInfos{FolderKey: d.FolderKey, Devices: []protocol.DeviceID{d.Device}})
	return nil
}

// ShareFolder adds a device to a folder's SharedWith set.
type ShareFolder struct {
	Base
	FolderKey uuid.UUID
	Device    protocol.DeviceID
}

func (d *ShareFolder) Kind() Kind { return KindShareFolder }

func (d *ShareFolder) applyImpl(c *model.Cluster) error {
	f, err := c.RequireFolder(d.FolderKey)
	if err != nil {
		return err
	}
	if _, err := c.RequireDevice(d.Device); err != nil {
		return err
	}
	f.SharedWith[d.Device] = struct{}{}
	return nil
}

// RemovePeer removes a device from the cluster entirely, cascading into
// removal of every FolderInfo it owned.
type RemovePeer struct {
	Base
	Device protocol.DeviceID
}

func (d *RemovePeer) Kind() Kind { return KindRemovePeer }

func (d *RemovePeer) applyImpl(c *model.Cluster) error {
	var toRemove []uuid.UUID
	for _, f := range c.Folders() {
		if f.IsSharedWith(d.Device) {
			toRemove = append(toRemove, f.Key)
			delete(f.SharedWith, d.Device)
		}
	}
	c.RemoveDevice(d.Device)
	for _, fk := range toRemove {
		AppendChild(d, &RemoveFolderInfos{FolderKey: fk, Devices: []protocol.DeviceID{d.Device}})
	}
	return nil
}

// UpdatePeer upserts a Device: it creates the record on first contact
// and updates mutable attributes (name, compression policy, flags) on
// subsequent diffs, without touching folder shares.
type UpdatePeer struct {
	Base
	Device protocol.DeviceID
	Name   string

	Compression              *bool
	AutoAccept                *bool
	Introducer                *bool
	SkipIntroductionRemovals *bool
}

func (d *UpdatePeer) Kind() Kind { return KindUpdatePeer }

func (d *UpdatePeer) applyImpl(c *model.Cluster) error {
	dev, ok := c.Device(d.Device)
	if !ok {
		dev = &model.Device{ID: d.Device, State: model.StateOffline}
	}
	if d.Name != "" {
		dev.Name = d.Name
	}
	if d.Compression != nil {
		dev.Compression = *d.Compression
	}
	if d.AutoAccept != nil {
		dev.AutoAccept = *d.AutoAccept
	}
	if d.Introducer != nil {
		dev.Introducer = *d.Introducer
	}
	if d.SkipIntroductionRemovals != nil {
		dev.SkipIntroductionRemovals = *d.SkipIntroductionRemovals
	}
	c.PutDevice(dev)
	return nil
}

// UpdateContact refreshes a device's last-seen endpoint/time.
type UpdateContact struct {
	Base
	Device    protocol.DeviceID
	Endpoint  string
	LastSeen  int64 // unix seconds
}

func (d *UpdateContact) Kind() Kind { return KindUpdateContact }

func (d *UpdateContact) applyImpl(c *model.Cluster) error {
	dev, err := c.RequireDevice(d.Device)
	if err != nil {
		return err
	}
	if d.Endpoint != "" {
		dev.Endpoints = append([]string{d.Endpoint}, dev.Endpoints...)
	}
	if d.LastSeen != 0 {
		dev.LastSeen = time.Unix(d.LastSeen, 0)
	}
	return nil
}

// UpdateState transitions a device's connection state.
type UpdateState struct {
	Base
	Device protocol.DeviceID
	State  model.ConnectionState
}

func (d *UpdateState) Kind() Kind { return KindUpdateState }

func (d *UpdateState) applyImpl(c *model.Cluster) error {
	dev, err := c.RequireDevice(d.Device)
	if err != nil {
		return err
	}
	dev.State = d.State
	return nil
}
