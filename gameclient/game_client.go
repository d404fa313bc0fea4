// Package gameclient provides an event-driven game protocol client. It
// performs the cipher handshake, then notifies callers of connection state
// changes, received packets and errors via registered handlers.
package gameclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/frame"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/clientpacket"
	"github.com/cyberinferno/go-l2server/packet/serverpacket"
	"github.com/cyberinferno/go-l2server/protocol"
)

var (
	// ErrKeyRejected is returned by WaitReady when the server refused the
	// protocol revision.
	ErrKeyRejected = errors.New("server rejected protocol revision")

	// ErrDisconnected is returned by WaitReady when the connection ends
	// before the handshake completes.
	ErrDisconnected = errors.New("disconnected")

	errClientClosed = errors.New("client is closed")
	errNotConnected = errors.New("not connected")
	errNotReady     = errors.New("handshake not complete")
)

// ConnectionState represents the current state of the game connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Dial in progress
	Connected                           // Connected, handshake pending
	Ready                               // Cipher negotiated; packets are encrypted
	Closed                              // Client has been closed
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState // The new connection state
	Address   string          // The remote address
	Timestamp time.Time       // When the state change occurred
	Error     error           // Non-nil if the change was caused by an error
}

// PacketEvent is emitted for every decrypted server packet, including the
// handshake packet.
type PacketEvent struct {
	Opcode    protocol.Opcode // First payload byte
	Body      []byte          // The bytes following the opcode
	Timestamp time.Time
}

// ErrorEvent is emitted when a read, write or connection error occurs.
type ErrorEvent struct {
	Error     error
	Timestamp time.Time
}

// ConnectionStateHandler is called on its own goroutine for every state
// change.
type ConnectionStateHandler func(event ConnectionStateEvent)

// PacketHandler is called on the read goroutine, once per packet in the
// order the packets arrived. It must not block for long.
type PacketHandler func(event PacketEvent)

// ErrorHandler is called on its own goroutine for every error.
type ErrorHandler func(event ErrorEvent)

// Config holds configuration for the game client.
type Config struct {
	// Address is the "host:port" of the game server.
	Address string
	// Revision is the protocol revision announced in the handshake.
	Revision int32
	// ConnectionTimeout bounds the dial.
	ConnectionTimeout time.Duration
	// WriteTimeout bounds a single write; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout bounds the wait for the next frame; 0 means no timeout.
	ReadTimeout time.Duration
	// MaxFrameSize is the largest frame accepted from the server.
	MaxFrameSize int
}

// DefaultConfig returns a Config with default values for address.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config announcing clientpacket.DefaultRevision with a 10s dial and
//     write timeout and no read timeout
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		Revision:          clientpacket.DefaultRevision,
		ConnectionTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxFrameSize:      frame.MaxFrameSize,
	}
}

// Client is the client side of one game connection. Register handlers, then
// call Connect. It is safe for concurrent use.
type Client struct {
	config Config
	log    logger.Logger

	mu    sync.RWMutex
	conn  net.Conn
	state ConnectionState

	closed bool

	onConnectionState ConnectionStateHandler
	onPacket          PacketHandler
	onError           ErrorHandler

	// inCipher is owned by the read loop; outCipher is guarded by writeMu.
	inCipher  *cipher.GameCipher
	writeMu   sync.Mutex
	outCipher *cipher.GameCipher

	readyOnce sync.Once
	ready     chan struct{}
	key       [cipher.KeySize]byte
	readyErr  error

	wg sync.WaitGroup
}

// New creates a client in Disconnected state.
//
// Parameters:
//   - config: Connection settings (e.g. from DefaultConfig)
//   - log: Client logger; nil disables logging
//
// Returns:
//   - A new *Client; call Close when done
func New(config Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = frame.MaxFrameSize
	}

	return &Client{
		config:    config,
		log:       log.With(logger.Field{Key: "server_addr", Value: config.Address}),
		state:     Disconnected,
		inCipher:  cipher.New(),
		outCipher: cipher.New(),
		ready:     make(chan struct{}),
	}
}

// OnConnectionState registers the handler for connection state changes.
// Repeated calls replace the previous handler.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// OnPacket registers the handler for received packets. Register it before
// Connect to observe the handshake packet.
func (c *Client) OnPacket(handler PacketHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPacket = handler
}

// OnError registers the handler for read, write and connection errors.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the server, starts the read loop and sends the protocol
// revision. A client connects at most once.
//
// Returns:
//   - nil on success; otherwise an error (client closed, already
//     connected, dial or write failure)
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClientClosed
	}
	if c.state != Disconnected || c.conn != nil {
		c.mu.Unlock()
		return errors.New("already connected or connecting")
	}
	c.mu.Unlock()

	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return errClientClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	w := packet.NewWriter()
	w.WriteOpcode(clientpacket.OpProtocolVersion)
	w.WriteInt32(c.config.Revision)
	return c.write(conn, w.Bytes())
}

// WaitReady blocks until the handshake completes.
//
// Returns:
//   - The negotiated cipher key
//   - ErrKeyRejected, ErrDisconnected or ctx.Err() otherwise
func (c *Client) WaitReady(ctx context.Context) ([cipher.KeySize]byte, error) {
	select {
	case <-c.ready:
		return c.key, c.readyErr
	case <-ctx.Done():
		return [cipher.KeySize]byte{}, ctx.Err()
	}
}

// Send encrypts and writes one payload (opcode followed by fields). payload
// is not modified. Only a Ready client sends; the protocol revision is the
// one packet written before the key exchange and Connect writes it itself.
//
// Returns:
//   - nil on success; an error if the client is not Ready or if the write
//     fails
func (c *Client) Send(payload []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if conn == nil {
		return errNotConnected
	}
	if state != Ready {
		return errNotReady
	}

	return c.write(conn, payload)
}

func (c *Client) write(conn net.Conn, payload []byte) error {
	data := make([]byte, len(payload))
	copy(data, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.outCipher.Encrypt(data)
	buf, err := frame.Encode(data)
	if err != nil {
		return err
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := conn.Write(buf); err != nil {
		c.emitError(err)
		return err
	}

	return nil
}

// SendPacket builds a payload with op and the fields written by fill, then
// sends it.
func (c *Client) SendPacket(op protocol.Opcode, fill func(w *packet.Writer)) error {
	w := packet.NewWriter()
	w.WriteOpcode(op)
	if fill != nil {
		fill(w)
	}

	return c.Send(w.Bytes())
}

// GetState returns the current connection state.
func (c *Client) GetState() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Close closes the connection and waits for the read loop to stop.
// Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.finishHandshake([cipher.KeySize]byte{}, ErrDisconnected)
	c.setState(Closed, nil)

	return err
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	fr := frame.NewReader(conn, c.config.MaxFrameSize)
	var err error
	for {
		if c.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		var payload []byte
		payload, err = fr.ReadFrame()
		if err != nil {
			break
		}

		c.inCipher.Decrypt(payload)
		if err = c.handle(payload); err != nil {
			break
		}
	}

	c.finishHandshake([cipher.KeySize]byte{}, ErrDisconnected)
	if c.isClosed() {
		return
	}

	if errors.Is(err, io.EOF) {
		err = nil
	} else {
		c.emitError(err)
	}

	_ = conn.Close()
	c.setState(Disconnected, err)
}

func (c *Client) handle(payload []byte) error {
	op := protocol.Opcode(payload[0])

	if c.GetState() == Connected {
		if op != serverpacket.OpKey {
			return fmt.Errorf("expected key packet, got %s", op)
		}

		if err := c.exchangeKey(payload[1:]); err != nil {
			c.finishHandshake([cipher.KeySize]byte{}, err)
			c.emit(op, payload)
			return nil
		}
	}

	c.emit(op, payload)
	return nil
}

// exchangeKey completes the key from the Key packet body and turns on both
// ciphers. Every frame after the Key packet is encrypted in both directions.
func (c *Client) exchangeKey(body []byte) error {
	r := packet.NewReader(body)
	accepted := r.ReadUint8() == 1
	head := r.ReadBytes(cipher.KeyHeadSize)
	if err := r.Err(); err != nil {
		return fmt.Errorf("key packet: %w", err)
	}

	if !accepted {
		return ErrKeyRejected
	}

	key, err := cipher.KeyFromHead(head)
	if err != nil {
		return err
	}

	c.inCipher.EnableWithKey(key)
	c.writeMu.Lock()
	c.outCipher.EnableWithKey(key)
	c.writeMu.Unlock()

	c.setState(Ready, nil)
	c.finishHandshake(key, nil)
	c.log.Debug("cipher negotiated")
	return nil
}

func (c *Client) finishHandshake(key [cipher.KeySize]byte, err error) {
	c.readyOnce.Do(func() {
		c.key = key
		c.readyErr = err
		close(c.ready)
	})
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.emitConnectionState(state, err)
}

func (c *Client) emitConnectionState(state ConnectionState, err error) {
	c.mu.RLock()
	handler := c.onConnectionState
	c.mu.RUnlock()

	if handler != nil {
		go handler(ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}

func (c *Client) emit(op protocol.Opcode, payload []byte) {
	c.mu.RLock()
	handler := c.onPacket
	c.mu.RUnlock()

	if handler != nil {
		handler(PacketEvent{Opcode: op, Body: payload[1:], Timestamp: time.Now()})
	}
}

func (c *Client) emitError(err error) {
	c.log.Debug("client error", logger.Err(err))

	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		go handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}
