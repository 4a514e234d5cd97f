// Package coordinator implements the process-level coordinator the CLI
// surface talks to: it owns the in-memory cluster and the durable store
// together, and is the single place folder add/remove/share/unshare,
// scan, dump and db import/export are turned into diffs and persisted.
// Full BEP session orchestration lives in internal/netctrl instead.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/hasher"
	"github.com/basiliscos/syncspirit-go/internal/logutil"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
	"github.com/basiliscos/syncspirit-go/internal/scanner"
	"github.com/basiliscos/syncspirit-go/internal/sequencer"
	"github.com/basiliscos/syncspirit-go/internal/storage"
)

var log = logutil.For("coordinator")

// Coordinator is the facade through which the CLI surface mutates the
// cluster. It holds no lock of its own: every mutation goes through
// storage.Store.Persist, which applies the diff and writes its write
// transaction under the store's update lock.
type Coordinator struct {
	cluster *model.Cluster
	store   *storage.Store
	seq     *sequencer.Sequencer
	hashes  *hasher.Pool
}

func New(cluster *model.Cluster, store *storage.Store, seq *sequencer.Sequencer, hashes *hasher.Pool) *Coordinator {
	return &Coordinator{cluster: cluster, store: store, seq: seq, hashes: hashes}
}

// EnsureLocalDevice registers this process's own device identity in the
// cluster on first boot. A freshly Load-ed cluster has no Device record
// for its own localDevice ID (only devices explicitly shared with are
// stored), so every daemon start-up must call this once before the
// folder/scan surface is usable.
func (co *Coordinator) EnsureLocalDevice(ctx context.Context, name string) error {
	return co.EnsureDevice(ctx, co.cluster.LocalDevice(), name)
}

// EnsureDevice registers id in the cluster if it isn't already known,
// used at start-up to seed devices named in configuration before any
// folder is shared with them.
func (co *Coordinator) EnsureDevice(ctx context.Context, id protocol.DeviceID, name string) error {
	if _, ok := co.cluster.Device(id); ok {
		return nil
	}
	d := &diff.UpdatePeer{Device: id, Name: name}
	return co.store.Persist(ctx, d, co.cluster)
}

// ReconcileFolder ensures a folder named in configuration exists in the
// cluster, creating it (and sharing it with deviceIDs) if this is the
// first time the daemon has seen it.
func (co *Coordinator) ReconcileFolder(ctx context.Context, id, label, path string, readOnly bool, deviceIDs []string) error {
	if _, ok := co.cluster.FolderByID(id); ok {
		return nil
	}
	return co.AddFolder(ctx, id, label, path, readOnly, deviceIDs)
}

// AddFolder creates a folder (and its local FolderInfo) and shares it
// with the given devices, all in one diff batch.
func (co *Coordinator) AddFolder(ctx context.Context, id, label, path string, readOnly bool, deviceIDs []string) error {
	if id == "" || path == "" {
		return coreerr.New(coreerr.KindMalformedURL, "coordinator.add_folder", fmt.Errorf("id and path are required"))
	}
	if _, ok := co.cluster.FolderByID(id); ok {
		return coreerr.New(coreerr.KindFolderNotExist, "coordinator.add_folder", fmt.Errorf("folder %q already exists", id))
	}

	f := model.NewFolder(co.seq.NextUUID(), id)
	f.Label = label
	f.Path = path
	f.ReadOnly = readOnly

	var head diff.Diff = &diff.UpsertFolder{Folder: f}

	fi := model.NewFolderInfo(co.seq.NextUUID(), f.Key, co.cluster.LocalDevice())
	diff.AppendChild(head, &diff.UpsertFolderInfo{FolderInfo: fi})

	for _, raw := range deviceIDs {
		devID, err := protocol.DeviceIDFromString(raw)
		if err != nil {
			return coreerr.New(coreerr.KindMalformedURL, "coordinator.add_folder", err)
		}
		if _, ok := co.cluster.Device(devID); !ok {
			return coreerr.New(coreerr.KindMissingParent, "coordinator.add_folder", fmt.Errorf("unknown device %s", raw))
		}
		diff.AppendChild(head, &diff.ShareFolder{FolderKey: f.Key, Device: devID})
	}

	return co.store.Persist(ctx, head, co.cluster)
}

// RemoveFolder deletes a folder by its user-chosen ID, cascading to its
// FolderInfo records via diff.RemoveFolder's own child diff.
func (co *Coordinator) RemoveFolder(ctx context.Context, id string) error {
	f, ok := co.cluster.FolderByID(id)
	if !ok {
		return coreerr.New(coreerr.KindFolderNotExist, "coordinator.remove_folder", nil)
	}
	return co.store.Persist(ctx, &diff.RemoveFolder{FolderKey: f.Key}, co.cluster)
}

// ShareFolder shares an existing folder with a peer device.
func (co *Coordinator) ShareFolder(ctx context.Context, id, deviceID string) error {
	f, devID, err := co.resolveFolderDevice(id, deviceID)
	if err != nil {
		return err
	}
	return co.store.Persist(ctx, &diff.ShareFolder{FolderKey: f.Key, Device: devID}, co.cluster)
}

// UnshareFolder revokes a peer's share of a folder.
func (co *Coordinator) UnshareFolder(ctx context.Context, id, deviceID string) error {
	f, devID, err := co.resolveFolderDevice(id, deviceID)
	if err != nil {
		return err
	}
	return co.store.Persist(ctx, &diff.UnshareFolder{FolderKey: f.Key, Device: devID}, co.cluster)
}

func (co *Coordinator) resolveFolderDevice(id, deviceID string) (*model.Folder, protocol.DeviceID, error) {
	f, ok := co.cluster.FolderByID(id)
	if !ok {
		return nil, protocol.DeviceID{}, coreerr.New(coreerr.KindFolderNotExist, "coordinator.resolve", nil)
	}
	devID, err := protocol.DeviceIDFromString(deviceID)
	if err != nil {
		return nil, protocol.DeviceID{}, coreerr.New(coreerr.KindMalformedURL, "coordinator.resolve", err)
	}
	if _, ok := co.cluster.Device(devID); !ok {
		return nil, protocol.DeviceID{}, coreerr.New(coreerr.KindMissingParent, "coordinator.resolve", fmt.Errorf("unknown device %s", deviceID))
	}
	return f, devID, nil
}

// ScanSummary reports how many of a scan's results turned into diffs.
type ScanSummary struct {
	Updated int
	Removed int
	Errors  int
}

// Scan walks a folder's root and persists one diff per changed entry,
// batched into a single RW transaction the way every multi-file update
// in this core is (§4.3's "batching by diff boundary is mandatory"
// rule). unchanged_meta results produce no diff; file_error/scan_errors
// are logged and counted but do not abort the batch.
func (co *Coordinator) Scan(ctx context.Context, id string) (ScanSummary, error) {
	var summary ScanSummary

	f, ok := co.cluster.FolderByID(id)
	if !ok {
		return summary, coreerr.New(coreerr.KindFolderNotExist, "coordinator.scan", nil)
	}
	fi, ok := co.cluster.FolderInfo(f.Key, co.cluster.LocalDevice())
	if !ok {
		return summary, coreerr.New(coreerr.KindMissingParent, "coordinator.scan", fmt.Errorf("folder %q has no local folder_info", id))
	}

	const defaultBlockSize = 128 * 1024
	task := &scanner.Task{
		Root:                 f.Path,
		BlockSize:            defaultBlockSize,
		Expected:             fi.Files(),
		Hasher:               co.hashes,
		RequestedHashesLimit: 4,
	}
	results, err := task.Scan(ctx)
	if err != nil {
		return summary, err
	}

	var head diff.Diff
	localDev := co.cluster.LocalDevice()
	localShort := localDev.Short()

	appendDiff := func(d diff.Diff) {
		if head == nil {
			head = d
		} else {
			diff.Chain(head, d)
		}
	}

	for _, r := range results {
		switch r.Kind {
		case scanner.KindUnchangedMeta:
			continue

		case scanner.KindUnknownFile, scanner.KindChangedMeta, scanner.KindIncomplete:
			nf := &model.FileInfo{
				Name:          r.Name,
				Type:          r.Type,
				Size:          r.Size,
				BlockSize:     blockSizeOf(r.Blocks, task.BlockSize),
				ModifiedS:     r.ModifiedS,
				Permissions:   r.Permissions,
				SymlinkTarget: r.SymlinkTarget,
				Blocks:        r.Blocks,
				Available:     availableMask(r.Blocks, r.Kind != scanner.KindIncomplete),
				ModifiedBy:    localShort,
			}
			if r.Expected != nil {
				nf.Sequence = r.Expected.Sequence
				nf.Version = r.Expected.Version.Update(localShort)
			} else {
				nf.Version = protocol.Vector{}.Update(localShort)
			}
			appendDiff(&diff.LocalUpdate{FolderKey: f.Key, File: nf})
			summary.Updated++

		case scanner.KindRemoved, scanner.KindIncompleteRemoved:
			if r.Expected == nil {
				continue
			}
			nf := *r.Expected
			nf.Deleted = true
			nf.Blocks = nil
			nf.Available = nil
			nf.Version = r.Expected.Version.Update(localShort)
			appendDiff(&diff.LocalUpdate{FolderKey: f.Key, File: &nf})
			summary.Removed++

		case scanner.KindFileError:
			log.Warn("scan file error", "folder", id, "name", r.Name, logutil.Error(r.Err))
			summary.Errors++

		case scanner.KindScanErrors:
			for _, e := range r.Errs {
				log.Warn("scan directory error", "folder", id, logutil.Error(e))
			}
			summary.Errors += len(r.Errs)
		}
	}

	if head == nil {
		return summary, nil
	}
	return summary, co.store.Persist(ctx, head, co.cluster)
}

func blockSizeOf(blocks []protocol.BlockInfo, fallback int) int {
	if len(blocks) == 0 {
		return fallback
	}
	return int(blocks[0].Size)
}

func availableMask(blocks []protocol.BlockInfo, allAvailable bool) []bool {
	mask := make([]bool, len(blocks))
	if allAvailable {
		for i := range mask {
			mask[i] = true
		}
	}
	return mask
}

// Dump renders the cluster's folders and their local files as JSON, for
// the CLI's `dump` command.
func (co *Coordinator) Dump() ([]byte, error) {
	type fileDump struct {
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		Deleted  bool   `json:"deleted"`
		Sequence int64  `json:"sequence"`
	}
	type folderDump struct {
		ID         string     `json:"id"`
		Label      string     `json:"label"`
		Path       string     `json:"path"`
		SharedWith []string   `json:"shared_with"`
		Files      []fileDump `json:"files"`
	}

	var out []folderDump
	for _, f := range co.cluster.Folders() {
		fd := folderDump{ID: f.ID, Label: f.Label, Path: f.Path}
		for dev := range f.SharedWith {
			fd.SharedWith = append(fd.SharedWith, dev.String())
		}
		if fi, ok := co.cluster.FolderInfo(f.Key, co.cluster.LocalDevice()); ok {
			for _, file := range fi.FilesBySequence() {
				fd.Files = append(fd.Files, fileDump{
					Name:     file.Name,
					Size:     file.Size,
					Deleted:  file.Deleted,
					Sequence: file.Sequence,
				})
			}
		}
		out = append(out, fd)
	}
	return json.MarshalIndent(out, "", "  ")
}

// ExportDB writes every stored key/value pair to path as a portable
// backup, for the CLI's `db export` command.
func (co *Coordinator) ExportDB(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return coreerr.New(coreerr.KindOpenFailed, "coordinator.export_db", err)
	}
	defer f.Close()
	return storage.ExportKV(co.store, f)
}

// Tainted reports whether a prior diff batch failed and the cluster is
// currently refusing mutations.
func (co *Coordinator) Tainted() bool { return co.cluster.Tainted() }

// AcknowledgeTaint clears the cluster's tainted flag, unblocking further
// mutations. It is the operator-driven recovery step the apply pipeline
// refuses to take on its own: a failed diff batch taints the cluster and
// every subsequent AddFolder/Scan/etc. call is rejected by
// storage.Store.Persist until this is called.
func (co *Coordinator) AcknowledgeTaint(ctx context.Context) error {
	co.cluster.Untaint()
	log.Warn("cluster taint acknowledged by operator")
	return nil
}

// ImportDB restores a backup written by ExportDB into the current store.
// Callers must restart the daemon afterwards so the cluster is rebuilt
// from the restored records via storage.Store.Load — ImportDB only
// touches the durable KV layer, not the running in-memory cluster.
func (co *Coordinator) ImportDB(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return coreerr.New(coreerr.KindOpenFailed, "coordinator.import_db", err)
	}
	defer f.Close()
	return storage.ImportKV(co.store, f)
}
