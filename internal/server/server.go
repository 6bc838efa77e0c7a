// Package server exposes the store over TCP with the length prefixed JSON protocol, plus an HTTP sidecar for health
// and metrics.
package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/durakv/durakv/internal/protocol"
	"github.com/durakv/durakv/internal/store"
)

// Server accepts client connections and serves store commands on each of them. Every connection is handled by its
// own goroutine, the store itself takes care of synchronization.
type Server struct {
	store    *store.Store
	listener net.Listener

	mutex   sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a new server on top of the given store. The server does not own the store, closing the server leaves
// the store open.
func New(kvStore *store.Store) *Server {
	return &Server{
		store: kvStore,
	}
}

// Start binds the given address and begins accepting connections in the background. Pass an address with port zero
// to let the operating system pick a free port, and use Addr to learn which one it picked.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", address, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the address the server is listening on. Only valid after Start returned without error.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and waits for all in-flight connections to finish their current request.
func (s *Server) Stop() error {
	s.mutex.Lock()
	s.closing = true
	s.mutex.Unlock()

	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		connection, err := s.listener.Accept()
		if err != nil {
			s.mutex.Lock()
			closing := s.closing
			s.mutex.Unlock()
			if closing {
				return
			}
			log.Printf("WARNING: Accepting a connection failed: %v\n", err)
			continue
		}

		ConnectionsTotal.Inc()
		s.wg.Add(1)
		go s.handleConnection(connection)
	}
}

// handleConnection serves requests on a single connection until the client sends QUIT, disconnects or violates the
// protocol.
func (s *Server) handleConnection(connection net.Conn) {
	defer s.wg.Done()
	defer connection.Close() //nolint:errcheck // The peer may have closed the connection already.

	for {
		var request protocol.Request
		if err := protocol.ReadMessage(connection, &request); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("WARNING: Reading a request from %s failed: %v\n", connection.RemoteAddr(), err)
			}
			return
		}

		response := s.handleRequest(request)
		RequestsTotal.WithLabelValues(request.Command, response.Status).Inc()
		if err := protocol.WriteMessage(connection, response); err != nil {
			log.Printf("WARNING: Writing a response to %s failed: %v\n", connection.RemoteAddr(), err)
			return
		}
		if request.Command == protocol.CommandQuit {
			return
		}
	}
}

// handleRequest maps one request onto the store. A storage failure is always reported to the client, a mutation is
// never acknowledged unless it is durable.
func (s *Server) handleRequest(request protocol.Request) protocol.Response {
	switch request.Command {
	case protocol.CommandGet:
		value, ok := s.store.Get(request.Key)
		if !ok {
			return errorResponse(fmt.Errorf("key %q not found", request.Key))
		}
		return protocol.Response{
			Status: protocol.StatusResult,
			Value:  value,
		}
	case protocol.CommandPut:
		if err := s.store.Put(request.Key, request.Value); err != nil {
			return errorResponse(err)
		}
		return okResponse()
	case protocol.CommandDelete:
		if err := s.store.Delete(request.Key); err != nil {
			return errorResponse(err)
		}
		return okResponse()
	case protocol.CommandKeys:
		keys := s.store.Keys()
		if keys == nil {
			keys = []string{}
		}
		return protocol.Response{
			Status: protocol.StatusResult,
			Keys:   keys,
		}
	case protocol.CommandCheckpoint:
		if err := s.store.Checkpoint(); err != nil {
			return errorResponse(err)
		}
		return okResponse()
	case protocol.CommandQuit:
		return okResponse()
	default:
		return errorResponse(fmt.Errorf("unknown command %q", request.Command))
	}
}

func okResponse() protocol.Response {
	return protocol.Response{
		Status: protocol.StatusOK,
	}
}

func errorResponse(err error) protocol.Response {
	return protocol.Response{
		Status:  protocol.StatusError,
		Message: err.Error(),
	}
}
