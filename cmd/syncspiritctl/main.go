// Command syncspiritctl is the companion CLI for cmd/syncspiritd: each
// subcommand builds one request and submits it to the running daemon
// over a local Unix-domain-socket RPC.
//
// Uses alecthomas/kong for a native subcommand-struct CLI.
package main

import (
	"fmt"
	"net/rpc"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/basiliscos/syncspirit-go/internal/config"
	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/rpcapi"
)

var cli struct {
	Home string `help:"Daemon home directory (default: $SYNCSPIRIT_HOME)."`

	Folder struct {
		Add     folderAddCmd     `cmd:"" help:"Create a folder and share it with zero or more devices."`
		Remove  folderRemoveCmd  `cmd:"" help:"Remove a folder."`
		Share   folderShareCmd   `cmd:"" help:"Share a folder with a device."`
		Unshare folderUnshareCmd `cmd:"" help:"Revoke a device's share of a folder."`
	} `cmd:"" help:"Folder management."`

	Scan scanCmd `cmd:"" help:"Trigger a rescan of a folder."`
	Dump dumpCmd `cmd:"" help:"Dump cluster state as JSON."`

	DB struct {
		Export dbExportCmd `cmd:"" help:"Export the database to a file."`
		Import dbImportCmd `cmd:"" help:"Import a database backup."`
	} `cmd:"" help:"Database backup and restore."`

	Tainted          taintedCmd          `cmd:"" help:"Report whether the daemon's cluster is tainted and refusing mutations."`
	AcknowledgeTaint acknowledgeTaintCmd `cmd:"" help:"Acknowledge a tainted cluster, re-enabling mutations."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("syncspiritctl"),
		kong.Description("Control client for syncspiritd."),
		kong.UsageOnError(),
	)

	client, err := dial(config.HomeDir(cli.Home))
	if err != nil {
		fmt.Fprintln(os.Stderr, "syncspiritctl:", err)
		os.Exit(coreerr.ExitIOError)
	}
	defer client.Close()

	if err := kctx.Run(client); err != nil {
		fmt.Fprintln(os.Stderr, "syncspiritctl:", err)
		os.Exit(coreerr.ExitCodeFromMessage(err.Error()))
	}
}

func dial(home string) (*rpc.Client, error) {
	if home == "" {
		return nil, fmt.Errorf("no daemon home directory: pass --home or set SYNCSPIRIT_HOME")
	}
	sockPath := filepath.Join(home, rpcapi.SocketName)
	client, err := rpc.Dial("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("connect to syncspiritd at %s: %w", sockPath, err)
	}
	return client, nil
}
