package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoalescer() *Coalescer {
	c := NewCoalescer(time.Hour) // never auto-expires; tests call Flush with a fake clock
	return c
}

func (c *Coalescer) advance(d time.Duration) {
	base := c.now()
	c.now = func() time.Time { return base.Add(d) }
}

func TestCoalescerCreatedThenDeletedCancels(t *testing.T) {
	c := newTestCoalescer()
	c.Push(RawEvent{FolderID: "f", Path: "a.txt", Kind: KindCreated})
	c.Push(RawEvent{FolderID: "f", Path: "a.txt", Kind: KindDeleted})
	c.advance(time.Hour)
	assert.Empty(t, c.Flush())
}

func TestCoalescerContentThenMetaStaysContent(t *testing.T) {
	c := newTestCoalescer()
	c.Push(RawEvent{FolderID: "f", Path: "a.txt", Kind: KindContent})
	c.Push(RawEvent{FolderID: "f", Path: "a.txt", Kind: KindMeta})
	c.advance(time.Hour)
	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, KindContent, out[0].Kind)
}

func TestCoalescerRenameThenContentReportsPrevPath(t *testing.T) {
	c := newTestCoalescer()
	c.Push(RawEvent{FolderID: "f", Path: "b.txt", PrevPath: "a.txt", Kind: KindMeta})
	c.Push(RawEvent{FolderID: "f", Path: "b.txt", Kind: KindContent})
	c.advance(time.Hour)
	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, KindContent, out[0].Kind)
	assert.Equal(t, "b.txt", out[0].Path)
	assert.Equal(t, "a.txt", out[0].PrevPath)
}

func TestCoalescerRenameChainCollapses(t *testing.T) {
	c := newTestCoalescer()
	c.Push(RawEvent{FolderID: "f", Path: "b.txt", PrevPath: "a.txt", Kind: KindMeta})
	c.Push(RawEvent{FolderID: "f", Path: "c.txt", PrevPath: "b.txt", Kind: KindMeta})
	c.advance(time.Hour)
	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, KindMeta, out[0].Kind)
	assert.Equal(t, "c.txt", out[0].Path)
}

func TestCoalescerRenameThenDeleteReportsOriginalName(t *testing.T) {
	c := newTestCoalescer()
	c.Push(RawEvent{FolderID: "f", Path: "b.txt", PrevPath: "a.txt", Kind: KindMeta})
	c.Push(RawEvent{FolderID: "f", Path: "b.txt", Kind: KindDeleted})
	c.advance(time.Hour)
	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, KindDeleted, out[0].Kind)
	assert.Equal(t, "a.txt", out[0].Path)
}

func TestCoalescerFlushOnlyPastDeadline(t *testing.T) {
	c := newTestCoalescer()
	c.Push(RawEvent{FolderID: "f", Path: "a.txt", Kind: KindCreated})
	assert.Empty(t, c.Flush())
	c.advance(time.Hour)
	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, KindCreated, out[0].Kind)
}
