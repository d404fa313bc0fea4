// Package session runs one client connection: a reader goroutine that
// frames, decrypts and dispatches inbound packets one at a time, and a
// writer goroutine that drains a bounded queue of outbound packets.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/dispatcher"
	"github.com/cyberinferno/go-l2server/frame"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/metrics"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

var (
	// ErrSessionClosed is returned by operations on a closed or closing
	// session.
	ErrSessionClosed = errors.New("session closed")

	// ErrOutboundQueueFull is returned by Send when the client does not
	// read fast enough. The session is closed when it happens.
	ErrOutboundQueueFull = errors.New("outbound queue full")
)

// Dispatcher handles one decrypted inbound payload.
type Dispatcher interface {
	Dispatch(conn packet.Conn, payload []byte) error
}

// Config holds the per-session limits.
type Config struct {
	MaxFrameSize int
	QueueSize    int

	// HandshakeTimeout bounds reads until the session leaves Connected;
	// IdleTimeout bounds them afterwards. Zero disables a timeout.
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns the limits used when Options leaves Config zero.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:     frame.MaxFrameSize,
		QueueSize:        256,
		HandshakeTimeout: 10 * time.Second,
		IdleTimeout:      5 * time.Minute,
		WriteTimeout:     10 * time.Second,
	}
}

// Options are the collaborators of a session.
type Options struct {
	Config     Config
	Machine    *protocol.Machine
	Dispatcher Dispatcher
	Logger     logger.Logger
	Metrics    *metrics.Metrics

	// OnClose runs once after both goroutines have stopped.
	OnClose func(s *Session)
}

// outbound is one queued frame payload, still in cleartext.
type outbound struct {
	data []byte

	// arm, if set, turns the outbound cipher on with this key once data is
	// written.
	arm *[cipher.KeySize]byte

	// last closes the session once data is written.
	last bool
}

// Session is the server side of one client connection. It implements
// packet.Conn.
type Session struct {
	id      uint32
	conn    net.Conn
	cfg     Config
	machine *protocol.Machine
	disp    Dispatcher
	log     logger.Logger
	metrics *metrics.Metrics
	onClose func(s *Session)

	ctx    context.Context
	cancel context.CancelFunc

	// inCipher is owned by the reader, outCipher by the writer.
	inCipher  *cipher.GameCipher
	outCipher *cipher.GameCipher

	out chan outbound

	mu      sync.Mutex
	state   protocol.State
	closing bool
	closed  bool
	account string
	charID  int32
	hasChar bool

	closeOnce sync.Once
}

// New wraps an accepted connection. Call Handle to serve it.
func New(id uint32, conn net.Conn, opts Options) *Session {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		machine: opts.Machine,
		disp:    opts.Dispatcher,
		log: log.With(
			logger.SessionID(id),
			logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()},
		),
		metrics:   opts.Metrics,
		onClose:   opts.OnClose,
		ctx:       ctx,
		cancel:    cancel,
		inCipher:  cipher.New(),
		outCipher: cipher.New(),
		out:       make(chan outbound, cfg.QueueSize),
		state:     protocol.Connected,
	}
}

// Handle serves the connection until it closes. It blocks.
func (s *Session) Handle() {
	s.metrics.SessionOpened()
	s.log.Info("session opened")

	group, ctx := errgroup.WithContext(s.ctx)
	group.Go(func() error {
		return s.readLoop(ctx)
	})
	group.Go(func() error {
		return s.writeLoop(ctx)
	})

	err := group.Wait()
	_ = s.Close()

	if err != nil {
		s.log.Info("session closed", logger.Err(err))
	} else {
		s.log.Info("session closed")
	}

	s.metrics.SessionClosed()
	if s.onClose != nil {
		s.onClose(s)
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	fr := frame.NewReader(s.conn, s.cfg.MaxFrameSize)

	for {
		s.setReadDeadline()

		payload, err := fr.ReadFrame()
		if err != nil {
			return s.readError(err)
		}

		s.metrics.FrameIn()
		s.inCipher.Decrypt(payload)

		if err := s.disp.Dispatch(s, payload); err != nil {
			if errors.Is(err, dispatcher.ErrProtocolViolation) {
				s.log.Warn("protocol violation", logger.Err(err))
			}

			_ = s.Close()
			return err
		}

		switch s.lifecycle() {
		case lifecycleClosing:
			// the writer closes after flushing the last packet
			<-ctx.Done()
			return nil
		case lifecycleClosed:
			return nil
		}
	}
}

func (s *Session) readError(err error) error {
	if s.lifecycle() != lifecycleOpen {
		return nil
	}
	defer s.Close()

	if errors.Is(err, io.EOF) {
		return nil
	}

	if errors.Is(err, frame.ErrFrameTooShort) || errors.Is(err, frame.ErrFrameTooLarge) {
		s.metrics.FramingError()
		s.log.Warn("framing error", logger.Err(err))
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("read timeout in state %s: %w", s.State(), err)
	}

	return fmt.Errorf("read: %w", err)
}

func (s *Session) setReadDeadline() {
	timeout := s.cfg.IdleTimeout
	if s.State() == protocol.Connected {
		timeout = s.cfg.HandshakeTimeout
	}

	if timeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-s.out:
			if ctx.Err() != nil {
				return nil
			}

			if err := s.writeFrame(item.data); err != nil {
				return err
			}

			if item.arm != nil {
				s.outCipher.EnableWithKey(*item.arm)
			}

			if item.last {
				return nil
			}
		}
	}
}

func (s *Session) writeFrame(data []byte) error {
	s.outCipher.Encrypt(data)

	buf, err := frame.Encode(data)
	if err != nil {
		return err
	}

	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}

	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	s.metrics.FrameOut()
	return nil
}

type lifecycle int

const (
	lifecycleOpen lifecycle = iota
	lifecycleClosing
	lifecycleClosed
)

func (s *Session) lifecycle() lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return lifecycleClosed
	case s.closing:
		return lifecycleClosing
	default:
		return lifecycleOpen
	}
}

// enqueue serializes p and queues it behind everything queued before.
func (s *Session) enqueue(p packet.ServerPacket, item outbound) error {
	data, err := packet.Serialize(s, p)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", p.Opcode(), err)
	}
	if len(data)+frame.HeaderSize > frame.MaxFrameSize {
		return fmt.Errorf("serialize %s: %w", p.Opcode(), frame.ErrFrameTooLarge)
	}
	item.data = data

	s.mu.Lock()
	if s.closed || s.closing {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	select {
	case s.out <- item:
		if item.last {
			s.closing = true
		}
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	s.metrics.OutboundOverflow()
	s.log.Warn("outbound queue full", logger.Opcode(p.Opcode()), logger.Field{Key: "queue_size", Value: cap(s.out)})
	_ = s.Close()
	return ErrOutboundQueueFull
}

func (s *Session) ID() uint32 { return s.id }

func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Logger() logger.Logger { return s.log }

func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *Session) State() protocol.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState moves the session to st. Closed is reached only through Close.
func (s *Session) SetState(st protocol.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if err := s.machine.Transition(s.state, st); err != nil {
		return err
	}

	s.state = st
	s.log.Debug("state changed", logger.State(st))
	return nil
}

func (s *Session) Send(p packet.ServerPacket) error {
	return s.enqueue(p, outbound{})
}

func (s *Session) SendAndClose(p packet.ServerPacket) error {
	return s.enqueue(p, outbound{last: true})
}

// ExchangeKey must be called from a packet handler, which runs on the
// reader: the inbound cipher is switched on before the next frame is read.
func (s *Session) ExchangeKey(build packet.KeyPacketFunc) error {
	key, err := s.inCipher.Enable()
	if err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}

	return s.enqueue(build(key), outbound{arm: &key})
}

func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *Session) SetAccount(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = name
}

func (s *Session) CharacterID() (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charID, s.hasChar
}

func (s *Session) SetCharacterID(id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charID, s.hasChar = id, true
}

func (s *Session) ClearCharacter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charID, s.hasChar = 0, false
}

// Close moves the session to Closed, cancels its context and closes the
// socket. Queued packets are discarded. Safe to call from any goroutine and
// more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.state = protocol.Closed
		s.mu.Unlock()

		s.cancel()
		err = s.conn.Close()
	})

	return err
}

var _ packet.Conn = (*Session)(nil)
