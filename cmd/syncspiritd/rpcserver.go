package main

import (
	"context"
	"net"
	"net/rpc"

	"github.com/basiliscos/syncspirit-go/internal/logutil"
)

// rpcServer is a suture.Service that accepts connections on a
// pre-bound Unix-domain socket listener and serves them with a
// *rpc.Server already registered with the coordinator service.
type rpcServer struct {
	listener net.Listener
	server   *rpc.Server
}

func newRPCServer(listener net.Listener, server *rpc.Server) *rpcServer {
	return &rpcServer{listener: listener, server: server}
}

func (s *rpcServer) Serve(ctx context.Context) error {
	log := logutil.For("rpcserver")
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn("accept failed", logutil.Error(err))
				return err
			}
		}
		go s.server.ServeConn(conn)
	}
}

func (s *rpcServer) String() string { return "rpcserver" }
