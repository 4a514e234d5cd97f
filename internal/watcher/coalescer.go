package watcher

import (
	"sync"
	"time"
)

// RawEvent is one undigested notification from a Backend, before
// coalescing: exactly what the platform reported for one path.
type RawEvent struct {
	FolderID string
	Path     string
	PrevPath string // set only for a rename notification
	Kind     Kind
}

type pending struct {
	kind     Kind
	origPath string // earliest known name this window has seen (the "a" in meta(a->b))
	curPath  string // latest known name
	deadline time.Time
}

// Coalescer merges a burst of RawEvents into one Event per (folder_id,
// path) lifecycle, holding each entry open for retentionInterval after
// its most recent update so a flurry of writes to the same file (a
// common editor save pattern: write temp, rename over original) collapses
// to a single event, per the five collapse rules below; the
// `retentionInterval` default is ~150ms.
type Coalescer struct {
	mu                sync.Mutex
	retentionInterval time.Duration
	entries           map[string]*pending // key: folderID + "\x00" + curPath
	folderOf          map[string]string   // key -> folderID, for Flush's Event construction
	now               func() time.Time
}

func NewCoalescer(retentionInterval time.Duration) *Coalescer {
	if retentionInterval <= 0 {
		retentionInterval = 150 * time.Millisecond
	}
	return &Coalescer{
		retentionInterval: retentionInterval,
		entries:           make(map[string]*pending),
		folderOf:          make(map[string]string),
		now:               time.Now,
	}
}

func key(folderID, path string) string { return folderID + "\x00" + path }

// Push folds raw into whatever pending record already tracks its entry
// (found first by raw.Path, else by raw.PrevPath for the far side of a
// rename), applying the collapse rules, and (re)arms that entry's
// deadline.
func (c *Coalescer) Push(raw RawEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(raw.FolderID, raw.Path)
	e, ok := c.entries[k]
	if !ok && raw.PrevPath != "" {
		if prior, pok := c.entries[key(raw.FolderID, raw.PrevPath)]; pok {
			delete(c.entries, key(raw.FolderID, raw.PrevPath))
			e, ok = prior, true
		}
	}

	if !ok {
		e = &pending{kind: raw.Kind, curPath: raw.Path}
		if raw.PrevPath != "" {
			e.origPath = raw.PrevPath
		} else {
			e.origPath = raw.Path
		}
		e.deadline = c.now().Add(c.retentionInterval)
		c.entries[k] = e
		c.folderOf[k] = raw.FolderID
		return
	}

	isRename := raw.Kind == KindMeta && raw.PrevPath != "" && raw.PrevPath == e.curPath

	switch {
	// rule: created+deleted -> ∅, symmetric in arrival order.
	case (e.kind == KindCreated && raw.Kind == KindDeleted) ||
		(e.kind == KindDeleted && raw.Kind == KindCreated):
		delete(c.entries, k)
		delete(c.folderOf, k)
		return

	// rule: meta(a->b)+content(b) -> content(b, prev=a).
	case e.kind == KindMeta && raw.Kind == KindContent && raw.Path == e.curPath:
		e.kind = KindContent

	// rule: meta(a->b)+meta(b->c) -> meta(a->c).
	case e.kind == KindMeta && isRename:
		e.curPath = raw.Path

	// rule: meta+deleted -> deleted(a), reporting the original name.
	case e.kind == KindMeta && raw.Kind == KindDeleted:
		e.kind = KindDeleted
		e.curPath = e.origPath

	// rule: content+meta -> content (plain metadata touch is swallowed).
	case e.kind == KindContent && raw.Kind == KindMeta && !isRename:
		// stays content

	// a rename riding on top of a not-yet-flushed created/content entry
	// just moves its tracked path; the lifecycle's strongest signal
	// (created, or content) is unaffected.
	case isRename:
		delete(c.entries, k)
		newKey := key(raw.FolderID, raw.Path)
		e.curPath = raw.Path
		c.entries[newKey] = e
		c.folderOf[newKey] = raw.FolderID
		e.deadline = c.now().Add(c.retentionInterval)
		return

	// deleted is terminal for the window; anything else reopens the
	// path as an independent lifecycle.
	case e.kind == KindDeleted:
		e = &pending{kind: raw.Kind, origPath: raw.Path, curPath: raw.Path}

	// default: the newer observation wins outright (e.g. content+content,
	// or escalating meta+meta with no rename component).
	default:
		e.kind = raw.Kind
	}

	e.deadline = c.now().Add(c.retentionInterval)
	c.entries[key(raw.FolderID, e.curPath)] = e
	c.folderOf[key(raw.FolderID, e.curPath)] = raw.FolderID
	if key(raw.FolderID, e.curPath) != k {
		delete(c.entries, k)
		delete(c.folderOf, k)
	}
}

// Flush returns every entry whose deadline has passed as of now, removing
// them from the pending set.
func (c *Coalescer) Flush() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []Event
	for k, e := range c.entries {
		if e.deadline.After(now) {
			continue
		}
		ev := Event{FolderID: c.folderOf[k], Path: e.curPath, Kind: e.kind}
		if (e.kind == KindContent || e.kind == KindMeta) && e.origPath != e.curPath {
			ev.PrevPath = e.origPath
		}
		out = append(out, ev)
		delete(c.entries, k)
		delete(c.folderOf, k)
	}
	return out
}
