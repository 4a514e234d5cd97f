package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/metrics"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Controller is the write-path apply-controller (§4.3): it wraps the
// default controller so every diff still mutates the in-memory cluster
// exactly as it would standalone, and additionally records the minimal
// put/delete set implied by that diff into the transaction it was
// constructed with. Variants with no persisted representation (transient
// connection/progress signals that live outside the device/folder/
// folder_info/file_info/block_info/pending_*/ignored_* key layout) fall
// through to the embedded default and persist nothing.
type Controller struct {
	diff.BaseController
	store *Store
	tx    *Tx
}

// Persist runs d (and its full sibling/child chain) against c, writing
// every structural change to one RW transaction that commits iff the
// whole diff batch applies cleanly — the "one RW transaction per diff,
// batching by diff boundary is mandatory" rule.
//
// A cluster left tainted by a prior failed apply refuses every further
// mutation until the operator acknowledges it (model.Cluster.Untaint);
// Persist is the sole write path every mutating caller goes through, so
// the check belongs here rather than duplicated at each call site.
func (s *Store) Persist(ctx context.Context, d diff.Diff, c *model.Cluster) error {
	if c.Tainted() {
		return coreerr.New(coreerr.KindTainted, "storage.persist", nil)
	}
	defer metrics.ObserveStorageOp("persist")()
	return s.WithTx(ctx, func(tx *Tx) error {
		ctrl := &Controller{store: s, tx: tx}
		return diff.Apply(d, c, ctrl)
	})
}

func (p *Controller) VisitUpdatePeer(d *diff.UpdatePeer, c *model.Cluster) error {
	if err := p.BaseController.VisitUpdatePeer(d, c); err != nil {
		return err
	}
	dev, ok := c.Device(d.Device)
	if !ok {
		return nil
	}
	data, err := gobEncode(toDeviceRecord(dev))
	if err != nil {
		return err
	}
	return p.tx.Put(deviceKey(dev.ID), data)
}

func (p *Controller) VisitRemovePeer(d *diff.RemovePeer, c *model.Cluster) error {
	if err := p.BaseController.VisitRemovePeer(d, c); err != nil {
		return err
	}
	return p.tx.Delete(deviceKey(d.Device))
}

func (p *Controller) VisitUpsertFolder(d *diff.UpsertFolder, c *model.Cluster) error {
	if err := p.BaseController.VisitUpsertFolder(d, c); err != nil {
		return err
	}
	data, err := gobEncode(toFolderRecord(d.Folder))
	if err != nil {
		return err
	}
	return p.tx.Put(folderKey(d.Folder.Key), data)
}

func (p *Controller) VisitRemoveFolder(d *diff.RemoveFolder, c *model.Cluster) error {
	if err := p.BaseController.VisitRemoveFolder(d, c); err != nil {
		return err
	}
	return p.tx.Delete(folderKey(d.FolderKey))
}

func (p *Controller) VisitShareFolder(d *diff.ShareFolder, c *model.Cluster) error {
	if err := p.BaseController.VisitShareFolder(d, c); err != nil {
		return err
	}
	return p.rewriteFolder(c, d.FolderKey)
}

func (p *Controller) VisitUnshareFolder(d *diff.UnshareFolder, c *model.Cluster) error {
	if err := p.BaseController.VisitUnshareFolder(d, c); err != nil {
		return err
	}
	return p.rewriteFolder(c, d.FolderKey)
}

func (p *Controller) rewriteFolder(c *model.Cluster, key uuid.UUID) error {
	f, ok := c.Folder(key)
	if !ok {
		return nil
	}
	data, err := gobEncode(toFolderRecord(f))
	if err != nil {
		return err
	}
	return p.tx.Put(folderKey(f.Key), data)
}

func (p *Controller) VisitUpsertFolderInfo(d *diff.UpsertFolderInfo, c *model.Cluster) error {
	if err := p.BaseController.VisitUpsertFolderInfo(d, c); err != nil {
		return err
	}
	return p.putFolderInfo(d.FolderInfo)
}

func (p *Controller) VisitUpdateFolder(d *diff.UpdateFolder, c *model.Cluster) error {
	if err := p.BaseController.VisitUpdateFolder(d, c); err != nil {
		return err
	}
	fi, ok := c.FolderInfo(d.FolderKey, d.Device)
	if !ok {
		return nil
	}
	return p.putFolderInfo(fi)
}

func (p *Controller) putFolderInfo(fi *model.FolderInfo) error {
	data, err := gobEncode(toFolderInfoRecord(fi))
	if err != nil {
		return err
	}
	return p.tx.Put(folderInfoKey(fi.FolderKey, fi.Device), data)
}

func (p *Controller) VisitRemoveFolderInfos(d *diff.RemoveFolderInfos, c *model.Cluster) error {
	if err := p.BaseController.VisitRemoveFolderInfos(d, c); err != nil {
		return err
	}
	for _, dev := range d.Devices {
		if err := p.tx.Delete(folderInfoKey(d.FolderKey, dev)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Controller) VisitLocalUpdate(d *diff.LocalUpdate, c *model.Cluster) error {
	if err := p.BaseController.VisitLocalUpdate(d, c); err != nil {
		return err
	}
	return p.putFile(d.FolderKey, c.LocalDevice(), d.File)
}

func (p *Controller) VisitFinishFile(d *diff.FinishFile, c *model.Cluster) error {
	if err := p.BaseController.VisitFinishFile(d, c); err != nil {
		return err
	}
	return p.putFile(d.FolderKey, c.LocalDevice(), d.File)
}

func (p *Controller) VisitRemoteUpdate(d *diff.RemoteUpdate, c *model.Cluster) error {
	if err := p.BaseController.VisitRemoteUpdate(d, c); err != nil {
		return err
	}
	if fi, ok := c.FolderInfo(d.FolderKey, d.Device); ok {
		if err := p.putFolderInfo(fi); err != nil {
			return err
		}
	}
	return p.putFile(d.FolderKey, d.Device, d.File)
}

func (p *Controller) putFile(folderKeyV uuid.UUID, device protocol.DeviceID, f *model.FileInfo) error {
	data, err := gobEncode(toFileInfoRecord(f))
	if err != nil {
		return err
	}
	return p.tx.Put(fileInfoKey(folderKeyV, device, f.Name), data)
}

func (p *Controller) VisitAddBlocks(d *diff.AddBlocks, c *model.Cluster) error {
	if err := p.BaseController.VisitAddBlocks(d, c); err != nil {
		return err
	}
	for _, b := range d.Blocks {
		blk, ok := c.Block(b.Hash)
		if !ok {
			continue
		}
		data, err := gobEncode(toBlockInfoRecord(blk))
		if err != nil {
			return err
		}
		if err := p.tx.Put(blockInfoKey(blk.Hash), data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Controller) VisitRemoveBlocks(d *diff.RemoveBlocks, c *model.Cluster) error {
	if err := p.BaseController.VisitRemoveBlocks(d, c); err != nil {
		return err
	}
	for _, h := range d.Hashes {
		if err := p.tx.Delete(blockInfoKey(h)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Controller) VisitAddPendingDevice(d *diff.AddPendingDevice, c *model.Cluster) error {
	if err := p.BaseController.VisitAddPendingDevice(d, c); err != nil {
		return err
	}
	data, err := gobEncode(toPendingDeviceRecord(d.Device))
	if err != nil {
		return err
	}
	return p.tx.Put(pendingDeviceKey(d.Device.ID), data)
}

func (p *Controller) VisitRemovePendingDevice(d *diff.RemovePendingDevice, c *model.Cluster) error {
	if err := p.BaseController.VisitRemovePendingDevice(d, c); err != nil {
		return err
	}
	return p.tx.Delete(pendingDeviceKey(d.ID))
}

func (p *Controller) VisitAddIgnoredDevice(d *diff.AddIgnoredDevice, c *model.Cluster) error {
	if err := p.BaseController.VisitAddIgnoredDevice(d, c); err != nil {
		return err
	}
	data, err := gobEncode(toIgnoredDeviceRecord(d.Device))
	if err != nil {
		return err
	}
	return p.tx.Put(ignoredDeviceKey(d.Device.ID), data)
}

func (p *Controller) VisitRemoveIgnoredDevice(d *diff.RemoveIgnoredDevice, c *model.Cluster) error {
	if err := p.BaseController.VisitRemoveIgnoredDevice(d, c); err != nil {
		return err
	}
	return p.tx.Delete(ignoredDeviceKey(d.ID))
}

func (p *Controller) VisitAddPendingFolders(d *diff.AddPendingFolders, c *model.Cluster) error {
	if err := p.BaseController.VisitAddPendingFolders(d, c); err != nil {
		return err
	}
	for _, f := range d.Folders {
		data, err := gobEncode(toPendingFolderRecord(f))
		if err != nil {
			return err
		}
		if err := p.tx.Put(pendingFolderKey(f.Key), data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Controller) VisitRemovePendingFolders(d *diff.RemovePendingFolders, c *model.Cluster) error {
	if err := p.BaseController.VisitRemovePendingFolders(d, c); err != nil {
		return err
	}
	for _, k := range d.Keys {
		if err := p.tx.Delete(pendingFolderKey(k)); err != nil {
			return err
		}
	}
	return nil
}
