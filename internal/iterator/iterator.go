// Package iterator implements the per-peer file iterator (component
// C8): a frontier cursor over a peer's shared folders that hands the
// per-peer controller the next candidate file to resolve, in the
// folder's configured pull order, round-robining across folders so one
// large folder cannot starve the others.
//
// The frontier is a pull-queue sorted by a per-order Less comparator,
// supporting five pull orders plus folder round-robin.
package iterator

import (
	"sort"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Iterator tracks one peer device's frontier across every folder
// shared with it.
type Iterator struct {
	cluster *model.Cluster
	device  protocol.DeviceID

	folderOrder []uuid.UUID // round-robin order of shared folder keys
	rr          int

	frontier map[uuid.UUID][]string       // folderKey -> names, sorted by pull order
	pos      map[uuid.UUID]int            // next index to examine, per folder
	settled  map[uuid.UUID]map[string]bool // names retired; kept across refreshes while still present
}

// New creates an iterator for device with no folders yet populated;
// call OnUpsertFolder for every folder shared with device to seed the
// frontier.
func New(cluster *model.Cluster, device protocol.DeviceID) *Iterator {
	return &Iterator{
		cluster:  cluster,
		device:   device,
		frontier: make(map[uuid.UUID][]string),
		pos:      make(map[uuid.UUID]int),
		settled:  make(map[uuid.UUID]map[string]bool),
	}
}

// OnUpsertFolder rebuilds folderKey's frontier from the peer's current
// FolderInfo, in the folder's pull order. Settled bookkeeping survives
// the rebuild: a name stays settled if it is still in the new frontier,
// so a pull-order change or a partial index update mid-scan does not
// resurface files already resolved this round. Only names no longer
// present in the new frontier are dropped.
func (it *Iterator) OnUpsertFolder(folderKey uuid.UUID) {
	if _, ok := it.frontier[folderKey]; !ok {
		it.folderOrder = append(it.folderOrder, folderKey)
	}

	f, ok := it.cluster.Folder(folderKey)
	if !ok {
		return
	}
	fi, ok := it.cluster.FolderInfo(folderKey, it.device)
	if !ok {
		it.frontier[folderKey] = nil
		it.pos[folderKey] = 0
		it.settled[folderKey] = make(map[string]bool)
		return
	}

	files := make([]*model.FileInfo, 0, fi.FileCount())
	for _, file := range fi.Files() {
		files = append(files, file)
	}
	sortByPullOrder(files, f.PullOrder)

	names := make([]string, len(files))
	present := make(map[string]bool, len(files))
	for i, file := range files {
		names[i] = file.Name
		present[file.Name] = true
	}
	it.frontier[folderKey] = names
	it.pos[folderKey] = 0

	kept := make(map[string]bool)
	for name := range it.settled[folderKey] {
		if present[name] {
			kept[name] = true
		}
	}
	it.settled[folderKey] = kept
}

// sortByPullOrder orders files: directories first, then regular files,
// deleted last; random/alphabetic share a lexicographic-by-name order;
// smallest/largest compare size;
// oldest/newest compare modified_s.
func sortByPullOrder(files []*model.FileInfo, order model.PullOrder) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Deleted != b.Deleted {
			return !a.Deleted
		}
		if a.IsDirectory() != b.IsDirectory() {
			return a.IsDirectory()
		}
		switch order {
		case model.PullOrderSmallest:
			return a.Size < b.Size
		case model.PullOrderLargest:
			return a.Size > b.Size
		case model.PullOrderOldest:
			return a.ModifiedS < b.ModifiedS
		case model.PullOrderNewest:
			return a.ModifiedS > b.ModifiedS
		default: // random, alphabetic
			return a.Name < b.Name
		}
	})
}

// Next returns the next unresolved candidate across device's shared
// folders, round-robining folder-to-folder on every call. Files already
// locked by an in-flight Advance, or already Settled, are skipped. ok
// is false once every folder's frontier is
// exhausted.
func (it *Iterator) Next() (file *model.FileInfo, folderKey uuid.UUID, ok bool) {
	n := len(it.folderOrder)
	for i := 0; i < n; i++ {
		idx := (it.rr + i) % n
		fk := it.folderOrder[idx]
		if f, found := it.nextInFolder(fk); found {
			it.rr = (idx + 1) % n
			return f, fk, true
		}
	}
	return nil, uuid.UUID{}, false
}

func (it *Iterator) nextInFolder(folderKey uuid.UUID) (*model.FileInfo, bool) {
	fi, ok := it.cluster.FolderInfo(folderKey, it.device)
	if !ok {
		return nil, false
	}
	names := it.frontier[folderKey]
	settled := it.settled[folderKey]

	for p := it.pos[folderKey]; p < len(names); p++ {
		name := names[p]
		if settled[name] {
			continue
		}
		f, ok := fi.FileByName(name)
		if !ok || f.Locked {
			continue
		}
		it.pos[folderKey] = p
		return f, true
	}
	return nil, false
}

// Settle retires name from folderKey's frontier: called once a verdict
// (advance or ignore) has been applied for it, so Next will not surface
// it again; an OnUpsertFolder refresh keeps it settled as long as the
// name is still in the peer's FolderInfo.
func (it *Iterator) Settle(folderKey uuid.UUID, name string) {
	if m, ok := it.settled[folderKey]; ok {
		m[name] = true
	}
}

// RemoveFolder drops folderKey from the round-robin entirely, e.g. on
// unshare.
func (it *Iterator) RemoveFolder(folderKey uuid.UUID) {
	delete(it.frontier, folderKey)
	delete(it.pos, folderKey)
	delete(it.settled, folderKey)
	for i, fk := range it.folderOrder {
		if fk == folderKey {
			it.folderOrder = append(it.folderOrder[:i], it.folderOrder[i+1:]...)
			break
		}
	}
}
