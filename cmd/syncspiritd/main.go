// Command syncspiritd is the core's daemon entrypoint: it loads
// configuration, opens durable storage, builds the coordinator and the
// hasher pool, runs the per-folder watcher actors and the RPC listener
// under a suture.Supervisor tree, and exposes the folder/scan/dump/db
// control surface to
// cmd/syncspiritctl over a local Unix-domain socket.
//
// Process-level flags use flag.FlagSet (kong is reserved for the CLI
// client, cmd/syncspiritctl); the supervisor tree is assembled in one
// place here.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"net/rpc"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/basiliscos/syncspirit-go/internal/config"
	"github.com/basiliscos/syncspirit-go/internal/coordinator"
	"github.com/basiliscos/syncspirit-go/internal/hasher"
	"github.com/basiliscos/syncspirit-go/internal/logutil"
	"github.com/basiliscos/syncspirit-go/internal/rpcapi"
	"github.com/basiliscos/syncspirit-go/internal/sequencer"
	"github.com/basiliscos/syncspirit-go/internal/storage"
	"github.com/basiliscos/syncspirit-go/internal/watcher"
)

func main() {
	var homeFlag string
	flag.StringVar(&homeFlag, "home", "", "configuration and database directory (default: $SYNCSPIRIT_HOME)")
	flag.Parse()

	if err := run(config.HomeDir(homeFlag)); err != nil {
		logutil.For("main").Error("fatal", logutil.Error(err))
		os.Exit(1)
	}
}

func run(home string) error {
	if home == "" {
		return fmt.Errorf("no home directory: pass -home or set SYNCSPIRIT_HOME")
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}

	localID, err := loadOrCreateIdentity(home)
	if err != nil {
		return err
	}

	cfgWrapper, err := loadOrInitConfig(home, localID)
	if err != nil {
		return err
	}
	opts := cfgWrapper.Options()
	config.ApplyEnv(&opts)
	logutil.Reset()
	log := logutil.For("syncspiritd")

	store, err := storage.Open(filepath.Join(home, "syncspirit.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	cluster, err := store.Load(localID)
	if err != nil {
		return err
	}

	var seedBuf [8]byte
	if _, err := rand.Read(seedBuf[:]); err != nil {
		return err
	}
	seq := sequencer.New(int64(binary.BigEndian.Uint64(seedBuf[:])))

	hashers := hasher.New(opts.HasherWorkers)
	defer hashers.Close()

	co := coordinator.New(cluster, store, seq, hashers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := co.EnsureLocalDevice(ctx, "syncspiritd"); err != nil {
		return err
	}
	if err := reconcileConfig(ctx, co, cfgWrapper, localID); err != nil {
		return err
	}

	sup := suture.NewSimple("syncspiritd")

	// No file I/O actor and no netctrl.PeerController are constructed in
	// this process; only the watcher side of the mediator relationship is
	// wired here.
	mediator := watcher.NewMediator(2 * time.Second)

	sink := newRescanSink(ctx, co)
	for id, fc := range cfgWrapper.Folders() {
		if fc.Paused {
			continue
		}
		backend := watcher.NewNotifyBackend()
		actor := watcher.New(id, fc.Path, backend, mediator, sink, 2*time.Second)
		sup.Add(actor)
	}

	listener, rpcServerHandle, err := bindRPCSocket(home, ctx, co)
	if err != nil {
		return err
	}
	defer listener.Close()
	sup.Add(rpcServerHandle)

	log.Info("syncspiritd started", "home", home, "device", localID.String())

	err = sup.Serve(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func bindRPCSocket(home string, ctx context.Context, co *coordinator.Coordinator) (net.Listener, *rpcServer, error) {
	sockPath := filepath.Join(home, rpcapi.SocketName)
	_ = os.Remove(sockPath)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, nil, err
	}

	server := rpc.NewServer()
	if err := server.RegisterName(rpcapi.ServiceName, rpcapi.NewCoordinator(ctx, co)); err != nil {
		listener.Close()
		return nil, nil, err
	}

	return listener, newRPCServer(listener, server), nil
}
