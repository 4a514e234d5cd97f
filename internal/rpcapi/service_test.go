package rpcapi

import (
	"context"
	"net"
	"net/rpc"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basiliscos/syncspirit-go/internal/coordinator"
	"github.com/basiliscos/syncspirit-go/internal/hasher"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
	"github.com/basiliscos/syncspirit-go/internal/sequencer"
	"github.com/basiliscos/syncspirit-go/internal/storage"
)

// dialedClient boots a real coordinator, registers it under ServiceName
// on a Unix socket, and returns a connected *rpc.Client, exercising the
// same net/rpc transport cmd/syncspiritctl talks to in production.
func dialedClient(t *testing.T) *rpc.Client {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	local := protocol.DeviceID{0x01}
	cluster, err := store.Load(local)
	require.NoError(t, err)

	hashes := hasher.New(1)
	t.Cleanup(hashes.Close)

	co := coordinator.New(cluster, store, sequencer.New(1), hashes)
	require.NoError(t, co.EnsureLocalDevice(context.Background(), "test-node"))

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName(ServiceName, NewCoordinator(context.Background(), co)))

	sockPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go server.ServeConn(conn)
		}
	}()

	client, err := rpc.Dial("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRPCAddFolderScanDumpRoundTrip(t *testing.T) {
	client := dialedClient(t)
	dir := t.TempDir()

	var empty Empty
	require.NoError(t, client.Call(ServiceName+".AddFolder", AddFolderArgs{ID: "f1", Path: dir}, &empty))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))

	var scanReply ScanReply
	require.NoError(t, client.Call(ServiceName+".Scan", ScanArgs{ID: "f1"}, &scanReply))
	require.Equal(t, 1, scanReply.Updated)

	var dumpReply DumpReply
	require.NoError(t, client.Call(ServiceName+".Dump", DumpArgs{}, &dumpReply))
	require.Contains(t, dumpReply.JSON, "a.txt")
}

func TestRPCErrorSurfacesAsServerError(t *testing.T) {
	client := dialedClient(t)

	var empty Empty
	err := client.Call(ServiceName+".RemoveFolder", RemoveFolderArgs{ID: "does-not-exist"}, &empty)
	require.Error(t, err)
	_, isServerErr := err.(rpc.ServerError)
	require.True(t, isServerErr, "net/rpc must surface the coordinator error as a ServerError")
}

func TestRPCDBExportImportRoundTrip(t *testing.T) {
	client := dialedClient(t)
	dir := t.TempDir()

	var empty Empty
	require.NoError(t, client.Call(ServiceName+".AddFolder", AddFolderArgs{ID: "f1", Path: dir}, &empty))

	backup := filepath.Join(t.TempDir(), "backup.gob")
	require.NoError(t, client.Call(ServiceName+".DBExport", DBExportArgs{Path: backup}, &empty))

	info, err := os.Stat(backup)
	require.NoError(t, err)
	require.NotZero(t, info.Size())

	require.NoError(t, client.Call(ServiceName+".DBImport", DBImportArgs{Path: backup}, &empty))
}
