// Package model implements the in-memory cluster model (component C1):
// the typed graph of devices, folders, folder-infos, file-infos and
// blocks, plus pending/ignored devices and pending folders, together with
// the lookup indices the rest of the core reads. It is mutated only
// through the diff pipeline in model/diff.
//
// Entities use stable keys rather than pointers so the graph can hold the
// cycles the data model describes (Folder ↔ FolderInfo ↔ FileInfo ↔
// Block) without reference-counting headaches — design note "cyclic
// graphs: arena + stable 128-bit keys". Folder/FolderInfo/FileInfo/
// PendingFolder keys are google/uuid values minted by sequencer.Sequencer;
// Device/PendingDevice/IgnoredDevice keys are protocol.DeviceID (already
// a stable 256-bit identity); Block keys are the block's own strong hash.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// ConnectionState is the Device's observed reachability.
type ConnectionState int

const (
	StateOffline ConnectionState = iota
	StateConnecting
	StateConnected
	StateOnline
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOnline:
		return "online"
	default:
		return "offline"
	}
}

// Device is a peer identity known to this cluster.
type Device struct {
	ID                       protocol.DeviceID
	Name                     string
	CertName                 string
	Compression              bool
	AutoAccept               bool
	Introducer               bool
	SkipIntroductionRemovals bool
	LastSeen                 time.Time
	State                    ConnectionState
	Endpoints                []string
	KnownAddresses           []string
}

// Short returns the 64-bit short ID used inside version vectors.
func (d *Device) Short() uint64 { return d.ID.Short() }

// PullOrder controls the order the file iterator walks a folder's frontier.
type PullOrder int

const (
	PullOrderRandom PullOrder = iota
	PullOrderAlphabetic
	PullOrderSmallest
	PullOrderLargest
	PullOrderOldest
	PullOrderNewest
)

// FolderType controls which direction content flows for a shared folder.
type FolderType int

const (
	FolderSendReceive FolderType = iota
	FolderSendOnly
	FolderReceiveOnly
)

// Folder is a user-chosen, shared directory tree.
type Folder struct {
	Key                 uuid.UUID
	ID                  string // opaque user-chosen folder id
	Label               string
	Path                string
	Type                FolderType
	RescanInterval      time.Duration
	PullOrder           PullOrder
	Watched             bool
	IgnorePermissions   bool
	ReadOnly            bool
	IgnoreDelete        bool
	DisableTempIndices  bool
	Paused              bool
	ScanStart           time.Time
	ScanFinish          time.Time
	SuspendReason       string
	SharedWith          map[protocol.DeviceID]struct{}
}

func NewFolder(key uuid.UUID, id string) *Folder {
	return &Folder{Key: key, ID: id, SharedWith: make(map[protocol.DeviceID]struct{})}
}

func (f *Folder) IsSharedWith(d protocol.DeviceID) bool {
	_, ok := f.SharedWith[d]
	return ok
}

func (f *Folder) Suspended() bool { return f.SuspendReason != "" }

// FolderInfo is the per-(folder, device) record: an index id (nonzero
// once the peer has acknowledged the share), the highest sequence
// observed from that device for that folder, and that device's files.
type FolderInfo struct {
	Key         uuid.UUID
	FolderKey   uuid.UUID
	Device      protocol.DeviceID
	IndexID     protocol.IndexID
	MaxSequence int64

	filesByName     map[string]*FileInfo
	filesBySequence map[int64]*FileInfo
}

func NewFolderInfo(key, folderKey uuid.UUID, device protocol.DeviceID) *FolderInfo {
	return &FolderInfo{
		Key:             key,
		FolderKey:       folderKey,
		Device:          device,
		filesByName:     make(map[string]*FileInfo),
		filesBySequence: make(map[int64]*FileInfo),
	}
}

func (fi *FolderInfo) FileByName(name string) (*FileInfo, bool) {
	f, ok := fi.filesByName[name]
	return f, ok
}

func (fi *FolderInfo) Files() map[string]*FileInfo { return fi.filesByName }

func (fi *FolderInfo) FileCount() int { return len(fi.filesByName) }

// put inserts or replaces a file, keeping the sequence index and
// max_sequence invariant (invariant 3) in lock-step. Not exported: only
// diff apply implementations in package diff, which live in this module's
// dependency closure, are allowed to mutate the graph.
func (fi *FolderInfo) put(f *FileInfo) {
	if old, ok := fi.filesByName[f.Name]; ok {
		delete(fi.filesBySequence, old.Sequence)
	}
	fi.filesByName[f.Name] = f
	fi.filesBySequence[f.Sequence] = f
	if f.Sequence > fi.MaxSequence {
		fi.MaxSequence = f.Sequence
	}
}

func (fi *FolderInfo) remove(name string) {
	if old, ok := fi.filesByName[name]; ok {
		delete(fi.filesBySequence, old.Sequence)
		delete(fi.filesByName, name)
	}
}

// FilesBySequence returns files in ascending sequence order.
func (fi *FolderInfo) FilesBySequence() []*FileInfo {
	out := make([]*FileInfo, 0, len(fi.filesBySequence))
	for _, f := range fi.filesByName {
		out = append(out, f)
	}
	insertionSortBySequence(out)
	return out
}

func insertionSortBySequence(fs []*FileInfo) {
	for i := 1; i < len(fs); i++ {
		for j := i; j > 0 && fs[j-1].Sequence > fs[j].Sequence; j-- {
			fs[j-1], fs[j] = fs[j], fs[j-1]
		}
	}
}

// FileInfo is one file/directory/symlink entry within a FolderInfo.
type FileInfo struct {
	Name        string
	Type        protocol.FileInfoType
	Size        int64
	BlockSize   int
	ModifiedS   int64
	Permissions uint32
	SymlinkTarget string
	Deleted     bool
	Invalid     bool
	Sequence    int64
	Version     protocol.Vector
	ModifiedBy  uint64
	Blocks      []protocol.BlockInfo
	// Available marks, per block index, whether the bytes on disk match
	// the block's strong hash (invariant 7).
	Available []bool
	Locked    bool
	Local     bool
	// Source records the FolderInfo this file is being built from, when
	// building a local file from a peer's file.
	Source *FolderInfo
}

func (f *FileInfo) IsDeleted() bool   { return f.Deleted }
func (f *FileInfo) IsInvalid() bool   { return f.Invalid }
func (f *FileInfo) IsDirectory() bool { return f.Type == protocol.FileInfoTypeDirectory }
func (f *FileInfo) IsSymlink() bool   { return f.Type == protocol.FileInfoTypeSymlink }

func (f *FileInfo) IsFullyAvailable() bool {
	for _, ok := range f.Available {
		if !ok {
			return false
		}
	}
	return true
}

// Block is a content-addressed, deduplicated chunk.
type Block struct {
	Hash []byte // 32-byte strong hash, also the map key (as [32]byte)
	Size uint32
	Weak uint32
	refs map[blockRef]struct{}
}

type blockRef struct {
	FolderKey uuid.UUID
	Device    protocol.DeviceID
	Name      string
	Index     int
}

func NewBlock(hash []byte, size uint32, weak uint32) *Block {
	return &Block{Hash: hash, Size: size, Weak: weak, refs: make(map[blockRef]struct{})}
}

func (b *Block) RefCount() int { return len(b.refs) }

func (b *Block) addRef(r blockRef)    { b.refs[r] = struct{}{} }
func (b *Block) removeRef(r blockRef) { delete(b.refs, r) }

// HashKey converts a variable-length strong hash into the fixed-size map
// key blocks are stored under.
func HashKey(hash []byte) (key [32]byte) {
	copy(key[:], hash)
	return key
}

// PendingDevice is a contact attempt seen but not yet admitted.
type PendingDevice struct {
	ID          protocol.DeviceID
	Name        string
	Address     string
	LastSeen    time.Time
}

// IgnoredDevice is a contact attempt explicitly refused.
type IgnoredDevice struct {
	ID       protocol.DeviceID
	Name     string
	Address  string
	LastSeen time.Time
}

// PendingFolder is a folder a peer offered that the operator has not
// accepted yet.
type PendingFolder struct {
	Key         uuid.UUID
	FolderID    string
	Label       string
	Device      protocol.DeviceID
	IndexID     protocol.IndexID
	MaxSequence int64
}
