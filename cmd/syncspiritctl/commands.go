package main

import (
	"fmt"
	"net/rpc"
	"os"

	"github.com/basiliscos/syncspirit-go/internal/rpcapi"
)

func call(client *rpc.Client, method string, args, reply any) error {
	return client.Call(rpcapi.ServiceName+"."+method, args, reply)
}

type folderAddCmd struct {
	ID       string   `arg:"" help:"Folder ID."`
	Path     string   `arg:"" help:"Filesystem path of the folder root."`
	Label    string   `help:"Human-readable label."`
	ReadOnly bool     `help:"Share as send-only (read-only to peers)."`
	Device   []string `help:"Device ID to share with (repeatable)." name:"device"`
}

func (c *folderAddCmd) Run(client *rpc.Client) error {
	return call(client, "AddFolder", rpcapi.AddFolderArgs{
		ID: c.ID, Label: c.Label, Path: c.Path, ReadOnly: c.ReadOnly, DeviceIDs: c.Device,
	}, &rpcapi.Empty{})
}

type folderRemoveCmd struct {
	ID string `arg:"" help:"Folder ID."`
}

func (c *folderRemoveCmd) Run(client *rpc.Client) error {
	return call(client, "RemoveFolder", rpcapi.RemoveFolderArgs{ID: c.ID}, &rpcapi.Empty{})
}

type folderShareCmd struct {
	ID     string `arg:"" help:"Folder ID."`
	Device string `arg:"" help:"Device ID to share with."`
}

func (c *folderShareCmd) Run(client *rpc.Client) error {
	return call(client, "ShareFolder", rpcapi.ShareFolderArgs{ID: c.ID, DeviceID: c.Device}, &rpcapi.Empty{})
}

type folderUnshareCmd struct {
	ID     string `arg:"" help:"Folder ID."`
	Device string `arg:"" help:"Device ID to unshare."`
}

func (c *folderUnshareCmd) Run(client *rpc.Client) error {
	return call(client, "UnshareFolder", rpcapi.UnshareFolderArgs{ID: c.ID, DeviceID: c.Device}, &rpcapi.Empty{})
}

type scanCmd struct {
	ID string `arg:"" help:"Folder ID to rescan."`
}

func (c *scanCmd) Run(client *rpc.Client) error {
	var reply rpcapi.ScanReply
	if err := call(client, "Scan", rpcapi.ScanArgs{ID: c.ID}, &reply); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "updated=%d removed=%d errors=%d\n", reply.Updated, reply.Removed, reply.Errors)
	return nil
}

type dumpCmd struct{}

func (c *dumpCmd) Run(client *rpc.Client) error {
	var reply rpcapi.DumpReply
	if err := call(client, "Dump", rpcapi.DumpArgs{}, &reply); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, reply.JSON)
	return nil
}

type dbExportCmd struct {
	Path string `arg:"" help:"Destination file path."`
}

func (c *dbExportCmd) Run(client *rpc.Client) error {
	return call(client, "DBExport", rpcapi.DBExportArgs{Path: c.Path}, &rpcapi.Empty{})
}

type dbImportCmd struct {
	Path string `arg:"" help:"Backup file path to restore from."`
}

func (c *dbImportCmd) Run(client *rpc.Client) error {
	return call(client, "DBImport", rpcapi.DBImportArgs{Path: c.Path}, &rpcapi.Empty{})
}

type taintedCmd struct{}

func (c *taintedCmd) Run(client *rpc.Client) error {
	var reply rpcapi.TaintedReply
	if err := call(client, "Tainted", rpcapi.TaintedArgs{}, &reply); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "tainted=%t\n", reply.Tainted)
	return nil
}

type acknowledgeTaintCmd struct{}

func (c *acknowledgeTaintCmd) Run(client *rpc.Client) error {
	return call(client, "AcknowledgeTaint", rpcapi.AcknowledgeTaintArgs{}, &rpcapi.Empty{})
}
