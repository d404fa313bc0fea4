// Package packettest provides an in-memory packet.Conn for handler tests.
package packettest

import (
	"context"
	"errors"
	"sync"

	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

var errClosed = errors.New("connection closed")

// Conn records what handlers do to a session instead of writing to a
// socket. It is safe for concurrent use.
type Conn struct {
	id      uint32
	machine *protocol.Machine
	log     logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	state   protocol.State
	sent    []packet.ServerPacket
	key     *[cipher.KeySize]byte
	account string
	charID  int32
	hasChar bool
	closed  bool
	notify  chan struct{}
}

// NewConn returns a connection in state, validating transitions against
// protocol.NewMachine.
func NewConn(id uint32, state protocol.State) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:      id,
		machine: protocol.NewMachine(),
		log:     logger.NewNopLogger(),
		ctx:     ctx,
		cancel:  cancel,
		state:   state,
		notify:  make(chan struct{}, 1),
	}
}

func (c *Conn) ID() uint32               { return c.id }
func (c *Conn) Context() context.Context { return c.ctx }
func (c *Conn) Logger() logger.Logger    { return c.log }

func (c *Conn) State() protocol.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) SetState(s protocol.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.machine.Transition(c.state, s); err != nil {
		return err
	}

	c.state = s
	return nil
}

func (c *Conn) Send(p packet.ServerPacket) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClosed
	}

	c.sent = append(c.sent, p)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *Conn) SendAndClose(p packet.ServerPacket) error {
	if err := c.Send(p); err != nil {
		return err
	}

	return c.Close()
}

// ExchangeKey records a fixed key so tests can assert on it.
func (c *Conn) ExchangeKey(build packet.KeyPacketFunc) error {
	key, err := cipher.KeyFromHead([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.key = &key
	c.mu.Unlock()

	return c.Send(build(key))
}

func (c *Conn) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

func (c *Conn) SetAccount(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = name
}

func (c *Conn) CharacterID() (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charID, c.hasChar
}

func (c *Conn) SetCharacterID(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charID, c.hasChar = id, true
}

func (c *Conn) ClearCharacter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charID, c.hasChar = 0, false
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.state = protocol.Closed
		c.cancel()
	}

	return nil
}

// Sent returns a copy of every packet sent so far.
func (c *Conn) Sent() []packet.ServerPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]packet.ServerPacket(nil), c.sent...)
}

// Closed reports whether Close or SendAndClose was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Key returns the key installed by ExchangeKey, if any.
func (c *Conn) Key() ([cipher.KeySize]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return [cipher.KeySize]byte{}, false
	}
	return *c.key, true
}

// Notify receives a value after a Send, coalescing bursts.
func (c *Conn) Notify() <-chan struct{} {
	return c.notify
}

var _ packet.Conn = (*Conn)(nil)
