package storage

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, coreerr.New(coreerr.KindWriteFailed, "storage.encode", err)
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return coreerr.New(coreerr.KindReadFailed, "storage.decode", err)
	}
	return nil
}

// deviceRecord is the on-disk shape of a model.Device.
type deviceRecord struct {
	ID                       protocol.DeviceID
	Name                     string
	CertName                 string
	Compression              bool
	AutoAccept               bool
	Introducer               bool
	SkipIntroductionRemovals bool
	LastSeen                 time.Time
	KnownAddresses           []string
}

func toDeviceRecord(d *model.Device) deviceRecord {
	return deviceRecord{
		ID: d.ID, Name: d.Name, CertName: d.CertName,
		Compression: d.Compression, AutoAccept: d.AutoAccept,
		Introducer: d.Introducer, SkipIntroductionRemovals: d.SkipIntroductionRemovals,
		LastSeen: d.LastSeen, KnownAddresses: d.KnownAddresses,
	}
}

func (r deviceRecord) toModel() *model.Device {
	return &model.Device{
		ID: r.ID, Name: r.Name, CertName: r.CertName,
		Compression: r.Compression, AutoAccept: r.AutoAccept,
		Introducer: r.Introducer, SkipIntroductionRemovals: r.SkipIntroductionRemovals,
		LastSeen: r.LastSeen, KnownAddresses: r.KnownAddresses,
		State: model.StateOffline,
	}
}

// folderRecord is the on-disk shape of a model.Folder.
type folderRecord struct {
	Key                uuid.UUID
	ID                 string
	Label              string
	Path               string
	Type               model.FolderType
	RescanInterval     time.Duration
	PullOrder          model.PullOrder
	Watched            bool
	IgnorePermissions  bool
	ReadOnly           bool
	IgnoreDelete       bool
	DisableTempIndices bool
	Paused             bool
	SuspendReason      string
	SharedWith         []protocol.DeviceID
}

func toFolderRecord(f *model.Folder) folderRecord {
	shared := make([]protocol.DeviceID, 0, len(f.SharedWith))
	for id := range f.SharedWith {
		shared = append(shared, id)
	}
	return folderRecord{
		Key: f.Key, ID: f.ID, Label: f.Label, Path: f.Path, Type: f.Type,
		RescanInterval: f.RescanInterval, PullOrder: f.PullOrder,
		Watched: f.Watched, IgnorePermissions: f.IgnorePermissions,
		ReadOnly: f.ReadOnly, IgnoreDelete: f.IgnoreDelete,
		DisableTempIndices: f.DisableTempIndices, Paused: f.Paused,
		SuspendReason: f.SuspendReason, SharedWith: shared,
	}
}

func (r folderRecord) toModel() *model.Folder {
	f := model.NewFolder(r.Key, r.ID)
	f.Label, f.Path, f.Type = r.Label, r.Path, r.Type
	f.RescanInterval, f.PullOrder = r.RescanInterval, r.PullOrder
	f.Watched, f.IgnorePermissions = r.Watched, r.IgnorePermissions
	f.ReadOnly, f.IgnoreDelete = r.ReadOnly, r.IgnoreDelete
	f.DisableTempIndices, f.Paused = r.DisableTempIndices, r.Paused
	f.SuspendReason = r.SuspendReason
	for _, id := range r.SharedWith {
		f.SharedWith[id] = struct{}{}
	}
	return f
}

// folderInfoRecord is the on-disk shape of a model.FolderInfo, minus its
// files, which are stored as individual fileInfoRecord rows so a single
// file update does not rewrite the whole index.
type folderInfoRecord struct {
	Key         uuid.UUID
	FolderKey   uuid.UUID
	Device      protocol.DeviceID
	IndexID     protocol.IndexID
	MaxSequence int64
}

func toFolderInfoRecord(fi *model.FolderInfo) folderInfoRecord {
	return folderInfoRecord{
		Key: fi.Key, FolderKey: fi.FolderKey, Device: fi.Device,
		IndexID: fi.IndexID, MaxSequence: fi.MaxSequence,
	}
}

func (r folderInfoRecord) toModel() *model.FolderInfo {
	fi := model.NewFolderInfo(r.Key, r.FolderKey, r.Device)
	fi.IndexID, fi.MaxSequence = r.IndexID, r.MaxSequence
	return fi
}

// fileInfoRecord is the on-disk shape of a model.FileInfo.
type fileInfoRecord struct {
	Name          string
	Type          protocol.FileInfoType
	Size          int64
	BlockSize     int
	ModifiedS     int64
	Permissions   uint32
	SymlinkTarget string
	Deleted       bool
	Invalid       bool
	Sequence      int64
	Version       protocol.Vector
	ModifiedBy    uint64
	Blocks        []protocol.BlockInfo
	Available     []bool
	Local         bool
}

func toFileInfoRecord(f *model.FileInfo) fileInfoRecord {
	return fileInfoRecord{
		Name: f.Name, Type: f.Type, Size: f.Size, BlockSize: f.BlockSize,
		ModifiedS: f.ModifiedS, Permissions: f.Permissions,
		SymlinkTarget: f.SymlinkTarget, Deleted: f.Deleted, Invalid: f.Invalid,
		Sequence: f.Sequence, Version: f.Version, ModifiedBy: f.ModifiedBy,
		Blocks: f.Blocks, Available: f.Available, Local: f.Local,
	}
}

func (r fileInfoRecord) toModel() *model.FileInfo {
	return &model.FileInfo{
		Name: r.Name, Type: r.Type, Size: r.Size, BlockSize: r.BlockSize,
		ModifiedS: r.ModifiedS, Permissions: r.Permissions,
		SymlinkTarget: r.SymlinkTarget, Deleted: r.Deleted, Invalid: r.Invalid,
		Sequence: r.Sequence, Version: r.Version, ModifiedBy: r.ModifiedBy,
		Blocks: r.Blocks, Available: r.Available, Local: r.Local,
	}
}

// blockInfoRecord is the on-disk shape of a model.Block. Reference
// counts are never persisted directly — they are reconstructed from the
// fileInfoRecord rows during cold load, per invariant 2.
type blockInfoRecord struct {
	Hash []byte
	Size uint32
	Weak uint32
}

func toBlockInfoRecord(b *model.Block) blockInfoRecord {
	return blockInfoRecord{Hash: b.Hash, Size: b.Size, Weak: b.Weak}
}

func (r blockInfoRecord) toModel() *model.Block {
	return model.NewBlock(r.Hash, r.Size, r.Weak)
}

type pendingDeviceRecord struct {
	ID       protocol.DeviceID
	Name     string
	Address  string
	LastSeen time.Time
}

func toPendingDeviceRecord(d *model.PendingDevice) pendingDeviceRecord {
	return pendingDeviceRecord{ID: d.ID, Name: d.Name, Address: d.Address, LastSeen: d.LastSeen}
}

func (r pendingDeviceRecord) toModel() *model.PendingDevice {
	return &model.PendingDevice{ID: r.ID, Name: r.Name, Address: r.Address, LastSeen: r.LastSeen}
}

type ignoredDeviceRecord struct {
	ID       protocol.DeviceID
	Name     string
	Address  string
	LastSeen time.Time
}

func toIgnoredDeviceRecord(d *model.IgnoredDevice) ignoredDeviceRecord {
	return ignoredDeviceRecord{ID: d.ID, Name: d.Name, Address: d.Address, LastSeen: d.LastSeen}
}

func (r ignoredDeviceRecord) toModel() *model.IgnoredDevice {
	return &model.IgnoredDevice{ID: r.ID, Name: r.Name, Address: r.Address, LastSeen: r.LastSeen}
}

type pendingFolderRecord struct {
	Key         uuid.UUID
	FolderID    string
	Label       string
	Device      protocol.DeviceID
	IndexID     protocol.IndexID
	MaxSequence int64
}

func toPendingFolderRecord(f *model.PendingFolder) pendingFolderRecord {
	return pendingFolderRecord{
		Key: f.Key, FolderID: f.FolderID, Label: f.Label,
		Device: f.Device, IndexID: f.IndexID, MaxSequence: f.MaxSequence,
	}
}

func (r pendingFolderRecord) toModel() *model.PendingFolder {
	return &model.PendingFolder{
		Key: r.Key, FolderID: r.FolderID, Label: r.Label,
		Device: r.Device, IndexID: r.IndexID, MaxSequence: r.MaxSequence,
	}
}
