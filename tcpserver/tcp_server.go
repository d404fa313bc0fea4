package tcpserver

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/go-l2server/idgenerator"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/metrics"
)

// NewSessionFunc creates the session serving an accepted connection. It
// receives the assigned session ID and the connection.
type NewSessionFunc func(id uint32, conn net.Conn) TCPServerSession

// TCPServer accepts connections and hands each one to a session created by
// NewSession, running its Handle on a new goroutine. Connections beyond
// MaxSessions are closed at once.
type TCPServer struct {
	Logger      logger.Logger
	Name        string
	Addr        string
	MaxSessions int
	Metrics     *metrics.Metrics
	NewSession  NewSessionFunc
	IdGenerator *idgenerator.IdGenerator

	listener net.Listener
	running  atomic.Bool
	sessions *sessionRegistry

	// mu orders session admission against Stop.
	mu       sync.Mutex
	handlers sync.WaitGroup
}

// New returns a server for addr with session IDs starting at 1.
//
// Parameters:
//   - name: Name used in log entries
//   - addr: The host:port to listen on
//   - newSession: Creates the session for each accepted connection
//   - log: The server logger
//
// Returns:
//   - A new TCPServer; set MaxSessions and Metrics before Start if needed
func New(name, addr string, newSession NewSessionFunc, log logger.Logger) *TCPServer {
	ids, _ := idgenerator.NewIdGenerator(1, math.MaxUint32)
	return &TCPServer{
		Logger:      log,
		Name:        name,
		Addr:        addr,
		NewSession:  newSession,
		IdGenerator: ids,
	}
}

// Start binds Addr and runs the accept loop in a goroutine.
//
// Returns:
//   - An error if the server is already running or if listening on Addr fails
func (s *TCPServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Err(err))
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.listener = ln
	s.sessions = newSessionRegistry()
	s.running.Store(true)

	s.Logger.Info(fmt.Sprintf("%s server started", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.acceptLoop(ln)

	return nil
}

// Stop closes the listener and every session, then waits for all session
// handlers to return.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	if !s.running.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	_ = s.listener.Close()
	for _, session := range s.sessions.snapshot() {
		_ = session.Close()
	}

	s.handlers.Wait()
	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}

// ListenAddr returns the bound address, or nil before Start.
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// GetSession returns the live session with id.
func (s *TCPServer) GetSession(id uint32) (TCPServerSession, bool) {
	if s.sessions == nil {
		return nil, false
	}

	return s.sessions.get(id)
}

// SessionCount returns the number of live sessions.
func (s *TCPServer) SessionCount() int {
	if s.sessions == nil {
		return 0
	}

	return s.sessions.len()
}

func (s *TCPServer) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Err(err))
			continue
		}

		s.serve(conn)
	}
}

func (s *TCPServer) serve(conn net.Conn) {
	id, err := s.IdGenerator.Id()
	if err != nil {
		s.reject(conn, conn, err.Error())
		return
	}

	session := s.NewSession(id, conn)

	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		_ = session.Close()
		return
	}
	if !s.sessions.tryAdd(session, s.MaxSessions) {
		s.mu.Unlock()
		s.reject(conn, session, "session limit reached")
		return
	}
	s.handlers.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.handlers.Done()
		defer s.sessions.remove(id)
		session.Handle()
	}()
}

// reject drops a connection that was accepted but will not be served.
func (s *TCPServer) reject(conn net.Conn, closer interface{ Close() error }, reason string) {
	s.Metrics.SessionRejected()
	s.Logger.Warn("connection rejected",
		logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()},
		logger.Field{Key: "reason", Value: reason},
		logger.Field{Key: "max_sessions", Value: s.MaxSessions},
	)
	_ = closer.Close()
}
