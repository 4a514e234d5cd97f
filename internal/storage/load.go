package storage

import (
	"github.com/basiliscos/syncspirit-go/internal/logutil"
	"github.com/basiliscos/syncspirit-go/internal/metrics"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

var loadLog = logutil.For("storage.load")

// Load performs the cold-load path (§4.3): it reads the device, folder,
// folder_info (with each one's file_infos), pending-device,
// ignored-device and pending-folder prefixes, one query after another,
// and reconstructs them into an in-memory cluster rooted at local. The
// queries do not share one read transaction. Block records are not
// read: the block set is rebuilt from the loaded files' block lists. Rather than synthesizing diffs for structures (devices,
// folders) that have no prior state to diff against, it builds the
// graph directly through the Cluster's own mutation surface — the same
// calls a diff's applyImpl would make — which reproduces the cluster
// exactly without inventing a diff variant purely for bootstrapping.
//
// Dangling referents (a folder share or folder_info naming an unknown
// device, a folder_info naming an unknown folder, a pending folder
// naming an unknown device) are dropped with a warning rather than
// failing the load, per the corruption-handling policy.
func (s *Store) Load(local protocol.DeviceID) (*model.Cluster, error) {
	defer metrics.ObserveStorageOp("load")()
	c := model.NewCluster(local)

	if err := s.loadDevices(c); err != nil {
		return nil, err
	}
	if err := s.loadFolders(c); err != nil {
		return nil, err
	}
	if err := s.loadFolderInfos(c); err != nil {
		return nil, err
	}
	if err := s.loadPendingDevices(c); err != nil {
		return nil, err
	}
	if err := s.loadIgnoredDevices(c); err != nil {
		return nil, err
	}
	if err := s.loadPendingFolders(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) loadDevices(c *model.Cluster) error {
	seq, errFn := s.PrefixKV(prefixOnly(PrefixDevice))
	for kv := range seq {
		var rec deviceRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		c.PutDevice(rec.toModel())
	}
	return errFn()
}

func (s *Store) loadFolders(c *model.Cluster) error {
	seq, errFn := s.PrefixKV(prefixOnly(PrefixFolder))
	for kv := range seq {
		var rec folderRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		f := rec.toModel()
		for dev := range f.SharedWith {
			if _, ok := c.Device(dev); !ok {
				loadLog.Warn("dropping dangling folder share: unknown device", "folder", f.ID, "device", dev)
				delete(f.SharedWith, dev)
			}
		}
		c.PutFolder(f)
	}
	return errFn()
}

func (s *Store) loadFolderInfos(c *model.Cluster) error {
	// The folder_info rows are read to the end before any file query
	// runs: the store has a single connection, so a query nested inside
	// an open result set would wait for that connection forever.
	seq, errFn := s.PrefixKV(prefixOnly(PrefixFolderInfo))
	var recs []folderInfoRecord
	for kv := range seq {
		var rec folderInfoRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if err := errFn(); err != nil {
		return err
	}
	for _, rec := range recs {
		if _, ok := c.Folder(rec.FolderKey); !ok {
			loadLog.Warn("dropping dangling folder_info: unknown folder", "folder_key", rec.FolderKey)
			continue
		}
		if rec.Device != c.LocalDevice() {
			if _, ok := c.Device(rec.Device); !ok {
				loadLog.Warn("dropping dangling folder_info: unknown device", "device", rec.Device)
				continue
			}
		}
		fi := rec.toModel()
		if err := s.loadFiles(c, fi); err != nil {
			return err
		}
		c.PutFolderInfo(fi)
	}
	return nil
}

func (s *Store) loadFiles(c *model.Cluster, fi *model.FolderInfo) error {
	seq, errFn := s.PrefixKV(fileInfoPrefix(fi.FolderKey, fi.Device))
	for kv := range seq {
		var rec fileInfoRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		// PutFile registers block references and creates any block record
		// that load hasn't seen yet (blocks are stored for cross-checking
		// but refcounts are always rebuilt from file contents).
		c.PutFile(fi, rec.toModel())
	}
	return errFn()
}

func (s *Store) loadPendingDevices(c *model.Cluster) error {
	seq, errFn := s.PrefixKV(prefixOnly(PrefixPendingDevice))
	for kv := range seq {
		var rec pendingDeviceRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		c.PutPendingDevice(rec.toModel())
	}
	return errFn()
}

func (s *Store) loadIgnoredDevices(c *model.Cluster) error {
	seq, errFn := s.PrefixKV(prefixOnly(PrefixIgnoredDevice))
	for kv := range seq {
		var rec ignoredDeviceRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		c.PutIgnoredDevice(rec.toModel())
	}
	return errFn()
}

func (s *Store) loadPendingFolders(c *model.Cluster) error {
	seq, errFn := s.PrefixKV(prefixOnly(PrefixPendingFolder))
	for kv := range seq {
		var rec pendingFolderRecord
		if err := gobDecode(kv.Value, &rec); err != nil {
			return err
		}
		if _, ok := c.Device(rec.Device); !ok {
			loadLog.Warn("dropping dangling pending_folder: unknown device", "device", rec.Device)
			continue
		}
		c.PutPendingFolder(rec.toModel())
	}
	return errFn()
}
