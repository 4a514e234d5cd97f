package watcher

import (
	"path/filepath"

	"github.com/rjeczalik/notify"
)

// NotifyBackend watches a folder's subtree with inotify (Linux) or
// ReadDirectoryChangesW (Windows) via github.com/rjeczalik/notify.
// macOS FSEvents is out of scope.
//
// TODO: inotify delivers a rename as a cookie-linked (InMovedFrom,
// InMovedTo) pair; this backend does not yet reassemble the pair into a
// single meta(a->b) RawEvent, so renames surface to the coalescer as a
// bare meta event with PrevPath unset (treated as a plain metadata
// touch rather than a rename by rule "content+meta->content").
type NotifyBackend struct {
	ch   chan notify.EventInfo
	done chan struct{}
}

func NewNotifyBackend() *NotifyBackend {
	return &NotifyBackend{}
}

func (b *NotifyBackend) Watch(folderID, root string) (<-chan RawEvent, error) {
	b.ch = make(chan notify.EventInfo, 256)
	b.done = make(chan struct{})

	tree := filepath.Join(root, "...")
	if err := notify.Watch(tree, b.ch, notify.Create, notify.Remove, notify.Write, notify.Rename); err != nil {
		return nil, err
	}

	out := make(chan RawEvent, 256)
	go b.pump(folderID, root, out)
	return out, nil
}

func (b *NotifyBackend) pump(folderID, root string, out chan<- RawEvent) {
	defer close(out)
	for {
		select {
		case ei, ok := <-b.ch:
			if !ok {
				return
			}
			rel, err := filepath.Rel(root, ei.Path())
			if err != nil {
				continue
			}
			kind, ok := translateEvent(ei.Event())
			if !ok {
				continue
			}
			select {
			case out <- RawEvent{FolderID: folderID, Path: filepath.ToSlash(rel), Kind: kind}:
			case <-b.done:
				return
			}
		case <-b.done:
			return
		}
	}
}

func translateEvent(e notify.Event) (Kind, bool) {
	switch e {
	case notify.Create:
		return KindCreated, true
	case notify.Remove:
		return KindDeleted, true
	case notify.Write:
		return KindContent, true
	case notify.Rename:
		return KindMeta, true
	default:
		return 0, false
	}
}

func (b *NotifyBackend) Stop() {
	if b.ch != nil {
		notify.Stop(b.ch)
	}
	if b.done != nil {
		close(b.done)
	}
}
