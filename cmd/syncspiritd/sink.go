package main

import (
	"context"
	"log/slog"

	"github.com/basiliscos/syncspirit-go/internal/coordinator"
	"github.com/basiliscos/syncspirit-go/internal/logutil"
	"github.com/basiliscos/syncspirit-go/internal/watcher"
)

// rescanSink implements watcher.Sink by triggering a full folder rescan
// whenever the watcher reports a change. A future iteration could scan
// only the changed path; starting from a whole-folder rescan mirrors the
// teacher's own fallback behavior when fine-grained event data is
// insufficient to act on directly.
type rescanSink struct {
	ctx context.Context
	co  *coordinator.Coordinator
	log *slog.Logger
}

func newRescanSink(ctx context.Context, co *coordinator.Coordinator) *rescanSink {
	return &rescanSink{ctx: ctx, co: co, log: logutil.For("watcher.sink")}
}

func (s *rescanSink) OnFolderChange(ev watcher.Event) {
	if _, err := s.co.Scan(s.ctx, ev.FolderID); err != nil {
		s.log.Warn("rescan after folder change failed", "folder", ev.FolderID, logutil.Error(err))
	}
}
