// Package netctrl implements the per-peer controller (component C10):
// the BEP state machine that drives one connection end to end, folds
// inbound ClusterConfig/Index/IndexUpdate messages into the cluster via
// the diff pipeline, and pulls blocks for files the resolver has claimed
// for this peer.
//
// Block requests in flight to a single peer are pipelined through a
// bounded request window (window.go) rather than issued one at a time.
package netctrl

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/iterator"
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// State is one step of the per-peer BEP handshake/streaming lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateHelloExchanged
	StateClusterSent
	StateIndexExchanged
	StateStreaming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateHelloExchanged:
		return "hello_exchanged"
	case StateClusterSent:
		return "cluster_sent"
	case StateIndexExchanged:
		return "index_exchanged"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Conn is the semantic send side of one peer connection. Transport
// framing, TLS/QUIC, and BEP wire compression are out of scope (spec's
// own exclusion list); an implementation need only get these structs to
// the other end, e.g. via protocol.Marshal over whatever socket it owns.
type Conn interface {
	SendHello(protocol.HelloMessage) error
	SendClusterConfig(protocol.ClusterConfigMessage) error
	SendIndex(protocol.IndexMessage) error
	SendIndexUpdate(protocol.IndexUpdateMessage) error
	SendRequest(protocol.RequestMessage) error
	SendResponse(protocol.ResponseMessage) error
	SendClose(protocol.CloseMessage) error
	Close() error
}

// Persister applies a diff to the cluster and durably records it,
// satisfied by *storage.Store.Persist.
type Persister interface {
	Persist(ctx context.Context, d diff.Diff, c *model.Cluster) error
}

// FileWriter is the subset of the file I/O actor the pull path needs.
type FileWriter interface {
	WriteAt(tempPath string, offset int64, data []byte, maskDeadline int64) error
	RenameAtomic(tempPath, final string, maskDeadline int64) error
}

// Hasher validates a downloaded block's bytes against its expected
// strong hash.
type Hasher interface {
	Validate(ctx context.Context, data, expected []byte) (bool, error)
}

// PeerController drives one peer's BEP exchange.
type PeerController struct {
	mu    sync.Mutex
	state State

	device    protocol.DeviceID
	cluster   *model.Cluster
	conn      Conn
	persister Persister
	fileio    FileWriter
	hasher    Hasher
	rootDir   string

	window      *requestWindow
	files       map[pullKey]*pullState // in-flight downloads, keyed by (folder, name)
	outstanding map[int32]outstandingRequest
	nextReqID   int32

	iter *iterator.Iterator // resolver/advance frontier over folders shared with this peer
}

type pullKey struct {
	FolderKey uuid.UUID
	Name      string
}

// New constructs a controller for one peer device. maxOutstanding bounds
// the request pipelining window (spec default 16).
func New(device protocol.DeviceID, cluster *model.Cluster, conn Conn, persister Persister, fw FileWriter, h Hasher, rootDir string, maxOutstanding int) *PeerController {
	if maxOutstanding <= 0 {
		maxOutstanding = 16
	}
	return &PeerController{
		device:    device,
		cluster:   cluster,
		conn:      conn,
		persister: persister,
		fileio:    fw,
		hasher:    h,
		rootDir:   rootDir,
		window:      newRequestWindow(maxOutstanding),
		files:       make(map[pullKey]*pullState),
		outstanding: make(map[int32]outstandingRequest),
		iter:        iterator.New(cluster, device),
	}
}

func (pc *PeerController) State() State {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PeerController) setState(s State) {
	pc.mu.Lock()
	pc.state = s
	pc.mu.Unlock()
}

// Start sends this side's Hello, per the state diagram's first edge.
func (pc *PeerController) Start() error {
	if err := pc.conn.SendHello(protocol.HelloMessage{}); err != nil {
		return coreerr.New(coreerr.KindPeerShutdown, "netctrl.start", err)
	}
	return nil
}

// OnHello advances disconnected -> hello_exchanged on receipt of the
// peer's own Hello.
func (pc *PeerController) OnHello(protocol.HelloMessage) error {
	pc.setState(StateHelloExchanged)
	return nil
}

// shutdown transitions to closing and tears the connection down with a
// protocol-error Close message — used whenever the peer violates an
// invariant (e.g. a response whose digest doesn't match the request).
func (pc *PeerController) shutdown(reason string) error {
	pc.setState(StateClosing)
	_ = pc.conn.SendClose(protocol.CloseMessage{Reason: reason})
	return pc.conn.Close()
}
