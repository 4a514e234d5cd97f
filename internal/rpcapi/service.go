package rpcapi

import (
	"context"

	"github.com/basiliscos/syncspirit-go/internal/coordinator"
)

// Coordinator adapts coordinator.Coordinator's context-taking methods to
// the synchronous (args, *reply) error shape net/rpc requires of every
// exported method.
type Coordinator struct {
	co  *coordinator.Coordinator
	ctx context.Context
}

// NewCoordinator wraps co for registration with an *rpc.Server under
// ServiceName. ctx bounds every call this service makes on the daemon's
// behalf — it should be the daemon's top-level lifetime context, not a
// per-request one, since net/rpc gives callees no per-call context.
func NewCoordinator(ctx context.Context, co *coordinator.Coordinator) *Coordinator {
	return &Coordinator{co: co, ctx: ctx}
}

func (s *Coordinator) AddFolder(args AddFolderArgs, reply *Empty) error {
	return s.co.AddFolder(s.ctx, args.ID, args.Label, args.Path, args.ReadOnly, args.DeviceIDs)
}

func (s *Coordinator) RemoveFolder(args RemoveFolderArgs, reply *Empty) error {
	return s.co.RemoveFolder(s.ctx, args.ID)
}

func (s *Coordinator) ShareFolder(args ShareFolderArgs, reply *Empty) error {
	return s.co.ShareFolder(s.ctx, args.ID, args.DeviceID)
}

func (s *Coordinator) UnshareFolder(args UnshareFolderArgs, reply *Empty) error {
	return s.co.UnshareFolder(s.ctx, args.ID, args.DeviceID)
}

func (s *Coordinator) Scan(args ScanArgs, reply *ScanReply) error {
	summary, err := s.co.Scan(s.ctx, args.ID)
	if err != nil {
		return err
	}
	reply.Updated, reply.Removed, reply.Errors = summary.Updated, summary.Removed, summary.Errors
	return nil
}

func (s *Coordinator) Dump(args DumpArgs, reply *DumpReply) error {
	data, err := s.co.Dump()
	if err != nil {
		return err
	}
	reply.JSON = string(data)
	return nil
}

func (s *Coordinator) DBExport(args DBExportArgs, reply *Empty) error {
	return s.co.ExportDB(args.Path)
}

func (s *Coordinator) DBImport(args DBImportArgs, reply *Empty) error {
	return s.co.ImportDB(args.Path)
}

func (s *Coordinator) Tainted(args TaintedArgs, reply *TaintedReply) error {
	reply.Tainted = s.co.Tainted()
	return nil
}

func (s *Coordinator) AcknowledgeTaint(args AcknowledgeTaintArgs, reply *Empty) error {
	return s.co.AcknowledgeTaint(s.ctx)
}
