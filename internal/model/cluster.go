package model

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Cluster is the coordinator's authoritative, read-mostly graph. It is
// read-only to the outside world: every mutation flows through an
// applied diff. Foreign-thread readers must go through the exported
// lookup methods, which take the model's RWMutex so concurrent reads
// always see a consistent snapshot.
type Cluster struct {
	mu sync.RWMutex

	localDevice protocol.DeviceID

	devices       map[protocol.DeviceID]*Device
	devicesByUint map[uint64]*Device

	folders     map[uuid.UUID]*Folder
	folderByID  map[string]*Folder
	folderInfos map[folderDeviceKey]*FolderInfo

	blocks map[[32]byte]*Block

	pendingDevices map[protocol.DeviceID]*PendingDevice
	ignoredDevices map[protocol.DeviceID]*IgnoredDevice
	pendingFolders map[uuid.UUID]*PendingFolder

	tainted atomic.Bool
}

type folderDeviceKey struct {
	Folder uuid.UUID
	Device protocol.DeviceID
}

// NewCluster constructs an empty cluster rooted at the given local device.
func NewCluster(local protocol.DeviceID) *Cluster {
	c := &Cluster{
		localDevice:    local,
		devices:        make(map[protocol.DeviceID]*Device),
		devicesByUint:  make(map[uint64]*Device),
		folders:        make(map[uuid.UUID]*Folder),
		folderByID:     make(map[string]*Folder),
		folderInfos:    make(map[folderDeviceKey]*FolderInfo),
		blocks:         make(map[[32]byte]*Block),
		pendingDevices: make(map[protocol.DeviceID]*PendingDevice),
		ignoredDevices: make(map[protocol.DeviceID]*IgnoredDevice),
		pendingFolders: make(map[uuid.UUID]*PendingFolder),
	}
	return c
}

func (c *Cluster) LocalDevice() protocol.DeviceID { return c.localDevice }

// Tainted reports whether a prior diff apply failed. A tainted cluster
// must not be persisted (§4.1).
func (c *Cluster) Tainted() bool { return c.tainted.Load() }

// Taint marks the cluster tainted; called by the apply controller on error.
func (c *Cluster) Taint() { c.tainted.Store(true) }

// Untaint clears the tainted flag. Called only once the operator has
// acknowledged the failed batch (§7); nothing else may clear it.
func (c *Cluster) Untaint() { c.tainted.Store(false) }

// --- read-only lookups -----------------------------------------------

func (c *Cluster) Device(id protocol.DeviceID) (*Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	return d, ok
}

func (c *Cluster) DeviceByShort(short uint64) (*Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devicesByUint[short]
	return d, ok
}

func (c *Cluster) Devices() []*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	return out
}

func (c *Cluster) Folder(key uuid.UUID) (*Folder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.folders[key]
	return f, ok
}

func (c *Cluster) FolderByID(id string) (*Folder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.folderByID[id]
	return f, ok
}

func (c *Cluster) Folders() []*Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Folder, 0, len(c.folders))
	for _, f := range c.folders {
		out = append(out, f)
	}
	return out
}

func (c *Cluster) FolderInfo(folderKey uuid.UUID, device protocol.DeviceID) (*FolderInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fi, ok := c.folderInfos[folderDeviceKey{folderKey, device}]
	return fi, ok
}

func (c *Cluster) FolderInfosFor(folderKey uuid.UUID) []*FolderInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*FolderInfo
	for k, fi := range c.folderInfos {
		if k.Folder == folderKey {
			out = append(out, fi)
		}
	}
	return out
}

func (c *Cluster) Block(hash []byte) (*Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[HashKey(hash)]
	return b, ok
}

func (c *Cluster) BlockCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

func (c *Cluster) PendingDevice(id protocol.DeviceID) (*PendingDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.pendingDevices[id]
	return d, ok
}

func (c *Cluster) IgnoredDevice(id protocol.DeviceID) (*IgnoredDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.ignoredDevices[id]
	return d, ok
}

func (c *Cluster) PendingFolder(key uuid.UUID) (*PendingFolder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.pendingFolders[key]
	return f, ok
}

func (c *Cluster) PendingFolders() []*PendingFolder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*PendingFolder, 0, len(c.pendingFolders))
	for _, f := range c.pendingFolders {
		out = append(out, f)
	}
	return out
}

// --- mutation surface ---------------------------------------------------
//
// Everything below is exported so package model/diff (which depends on
// this package) can apply diffs, but by convention is only ever called
// from a diff's applyImpl — "the only legitimate way to change the
// cluster is through an applied diff" is a documentation/design
// invariant, not a compiler-enforced one.

func (c *Cluster) PutDevice(d *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices[d.ID] = d
	c.devicesByUint[d.Short()] = d
}

func (c *Cluster) RemoveDevice(id protocol.DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.devices[id]; ok {
		delete(c.devicesByUint, d.Short())
	}
	delete(c.devices, id)
}

func (c *Cluster) PutFolder(f *Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders[f.Key] = f
	c.folderByID[f.ID] = f
}

// RemoveFolder removes a folder and every FolderInfo that references it,
// per invariant 1 (FolderInfo.folder must belong to Folders). Returns the
// removed FolderInfo keys so the caller (remove_folder's apply) can emit
// the matching remove_folder_infos child diff.
func (c *Cluster) RemoveFolder(key uuid.UUID) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.folders[key]; ok {
		delete(c.folderByID, f.ID)
	}
	delete(c.folders, key)

	var removed []uuid.UUID
	for k, fi := range c.folderInfos {
		if k.Folder == key {
			removed = append(removed, fi.Key)
			delete(c.folderInfos, k)
		}
	}
	return removed
}

func (c *Cluster) PutFolderInfo(fi *FolderInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folderInfos[folderDeviceKey{fi.FolderKey, fi.Device}] = fi
}

func (c *Cluster) RemoveFolderInfo(folderKey uuid.UUID, device protocol.DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.folderInfos, folderDeviceKey{folderKey, device})
}

// PutFile installs f into fi, maintaining the sequence index, and
// registers/deregisters block references so invariant 2 (blocks present
// iff refcount > 0) holds. It reports blocks whose reference count just
// dropped to zero so the caller can emit a remove_blocks child diff.
func (c *Cluster) PutFile(fi *FolderInfo, f *FileInfo) (orphaned [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := fi.filesByName[f.Name]; ok {
		orphaned = c.dropBlockRefsLocked(fi, old)
	}
	fi.put(f)
	c.addBlockRefsLocked(fi, f)
	return orphaned
}

// RemoveFile drops f from fi and returns any blocks that lost their last
// reference as a result.
func (c *Cluster) RemoveFile(fi *FolderInfo, name string) (orphaned [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := fi.filesByName[name]; ok {
		orphaned = c.dropBlockRefsLocked(fi, old)
	}
	fi.remove(name)
	return orphaned
}

func (c *Cluster) addBlockRefsLocked(fi *FolderInfo, f *FileInfo) {
	for i, b := range f.Blocks {
		key := HashKey(b.Hash)
		blk, ok := c.blocks[key]
		if !ok {
			blk = NewBlock(b.Hash, b.Size, b.Weak)
			c.blocks[key] = blk
		}
		blk.addRef(blockRef{FolderKey: fi.FolderKey, Device: fi.Device, Name: f.Name, Index: i})
	}
}

func (c *Cluster) dropBlockRefsLocked(fi *FolderInfo, f *FileInfo) (orphaned [][]byte) {
	for i, b := range f.Blocks {
		key := HashKey(b.Hash)
		blk, ok := c.blocks[key]
		if !ok {
			continue
		}
		blk.removeRef(blockRef{FolderKey: fi.FolderKey, Device: fi.Device, Name: f.Name, Index: i})
		if blk.RefCount() == 0 {
			delete(c.blocks, key)
			orphaned = append(orphaned, b.Hash)
		}
	}
	return orphaned
}

// AddBlock registers a content-addressed block with no file reference
// yet (used while a download is in flight, before finish_file links it).
func (c *Cluster) AddBlock(hash []byte, size, weak uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := HashKey(hash)
	if _, ok := c.blocks[key]; !ok {
		c.blocks[key] = NewBlock(hash, size, weak)
	}
}

func (c *Cluster) PutPendingDevice(d *PendingDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDevices[d.ID] = d
}

func (c *Cluster) RemovePendingDevice(id protocol.DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingDevices, id)
}

func (c *Cluster) PutIgnoredDevice(d *IgnoredDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignoredDevices[d.ID] = d
}

func (c *Cluster) RemoveIgnoredDevice(id protocol.DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ignoredDevices, id)
}

func (c *Cluster) PutPendingFolder(f *PendingFolder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingFolders[f.Key] = f
}

func (c *Cluster) RemovePendingFolder(key uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingFolders, key)
}

// RequireFolder looks up a folder or returns a typed error, the idiom
// every diff apply uses for its "missing parent" checks (§4.2 failure
// semantics).
func (c *Cluster) RequireFolder(key uuid.UUID) (*Folder, error) {
	f, ok := c.Folder(key)
	if !ok {
		return nil, coreerr.New(coreerr.KindMissingParent, "cluster.require_folder", nil)
	}
	return f, nil
}

func (c *Cluster) RequireDevice(id protocol.DeviceID) (*Device, error) {
	d, ok := c.Device(id)
	if !ok {
		return nil, coreerr.New(coreerr.KindMissingParent, "cluster.require_device", nil)
	}
	return d, nil
}
