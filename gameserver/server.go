// Package gameserver assembles the network engine: packet registry, state
// machine, dispatcher, world services and the TCP listener.
package gameserver

import (
	"errors"
	"fmt"
	"net"

	"github.com/cyberinferno/go-l2server/async"
	"github.com/cyberinferno/go-l2server/config"
	"github.com/cyberinferno/go-l2server/dispatcher"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/metrics"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/clientpacket"
	"github.com/cyberinferno/go-l2server/protocol"
	"github.com/cyberinferno/go-l2server/session"
	"github.com/cyberinferno/go-l2server/tcpserver"
	"github.com/cyberinferno/go-l2server/world"
)

// Dependencies are the collaborators a Server is built from. Logger and
// Metrics may be nil.
type Dependencies struct {
	Characters world.CharacterService
	Auth       world.Authenticator
	Pool       *async.Pool
	Logger     logger.Logger
	Metrics    *metrics.Metrics

	// Revisions lists the accepted protocol revisions; empty accepts
	// clientpacket.DefaultRevision only.
	Revisions []int32
}

// Server is a game server listening for clients.
type Server struct {
	cfg      config.NetworkConfig
	log      logger.Logger
	services *clientpacket.Services
	disp     *dispatcher.Dispatcher
	machine  *protocol.Machine
	tcp      *tcpserver.TCPServer
}

// New builds a server for cfg. It does not listen until Start.
//
// Parameters:
//   - cfg: Listener address, connection limit and per-session limits
//   - deps: World collaborators, worker pool, logger and metrics
//
// Returns:
//   - The Server, or an error if a required dependency is missing
func New(cfg config.NetworkConfig, deps Dependencies) (*Server, error) {
	var errs []error
	if deps.Characters == nil {
		errs = append(errs, errors.New("character service is required"))
	}
	if deps.Auth == nil {
		errs = append(errs, errors.New("authenticator is required"))
	}
	if deps.Pool == nil {
		errs = append(errs, errors.New("worker pool is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("game server: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		machine: protocol.NewMachine(),
	}

	s.services = &clientpacket.Services{
		Characters: deps.Characters,
		Auth:       deps.Auth,
		Attacks:    world.NewAttackService(deps.Pool, world.PhysicalAttackCalculator{}, s.logHit),
		Online:     world.NewOnlineRegistry(),
		ServerID:   cfg.ServerID,
		Revisions:  deps.Revisions,
	}

	registry := packet.NewRegistry()
	if err := clientpacket.Register(registry, s.machine, s.services); err != nil {
		return nil, err
	}
	s.disp = dispatcher.New(registry, s.machine, deps.Metrics)

	s.tcp = tcpserver.New("game", cfg.Listen, s.newSession, log)
	s.tcp.MaxSessions = cfg.MaxConnections
	s.tcp.Metrics = deps.Metrics

	return s, nil
}

func (s *Server) newSession(id uint32, conn net.Conn) tcpserver.TCPServerSession {
	return session.New(id, conn, session.Options{
		Config: session.Config{
			MaxFrameSize:     s.cfg.MaxFrameSize,
			QueueSize:        s.cfg.OutboundQueueSize,
			HandshakeTimeout: s.cfg.HandshakeTimeout,
			IdleTimeout:      s.cfg.IdleTimeout,
			WriteTimeout:     s.cfg.WriteTimeout,
		},
		Machine:    s.machine,
		Dispatcher: s.disp,
		Logger:     s.log,
		Metrics:    s.tcp.Metrics,
		OnClose: func(sess *session.Session) {
			s.services.Disconnect(sess)
		},
	})
}

func (s *Server) logHit(hit world.AttackHit) {
	s.log.Debug("attack resolved",
		logger.Field{Key: "attacker", Value: hit.Attacker.ID},
		logger.Field{Key: "target", Value: hit.Target.ID},
		logger.Field{Key: "damage", Value: hit.Damage},
	)
}

// Start begins accepting clients.
func (s *Server) Start() error {
	return s.tcp.Start()
}

// Stop closes the listener and every session and waits for them.
func (s *Server) Stop() {
	s.tcp.Stop()
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.tcp.ListenAddr()
}

// SessionCount returns the number of connected clients.
func (s *Server) SessionCount() int {
	return s.tcp.SessionCount()
}

// Online returns the registry of characters currently in the world.
func (s *Server) Online() *world.OnlineRegistry {
	return s.services.Online
}
