// Package packet defines the inbound and outbound packet contracts of the
// game protocol, the field codec used to (de)serialize them and the opcode
// registry that turns an inbound payload into a typed packet.
package packet

import (
	"context"
	"errors"

	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/protocol"
)

// ErrMalformedPacket is returned when a payload is too short for the fields
// its decoder expects.
var ErrMalformedPacket = errors.New("malformed packet")

// ServerPacket is an outbound packet. Implementations are immutable values
// built with everything they need to serialize themselves.
type ServerPacket interface {
	// Opcode returns the packet's opcode.
	Opcode() protocol.Opcode

	// Write serializes the fields after the opcode in their fixed order.
	// conn is the destination session and may be nil when no
	// connection-specific encoding is needed.
	Write(conn Conn, w *Writer) error
}

// ClientPacket is a decoded inbound packet.
type ClientPacket interface {
	// Opcode returns the packet's opcode.
	Opcode() protocol.Opcode

	// Process runs the packet's logic against the originating session.
	// It may enqueue outbound packets through conn; it must not write to
	// the socket directly.
	Process(conn Conn) error
}

// KeyPacketFunc builds the cleartext handshake packet for a freshly
// generated cipher key.
type KeyPacketFunc func(key [cipher.KeySize]byte) ServerPacket

// Conn is the view of a session that packets are given. All methods are safe
// to call from packet handlers and from asynchronous completions.
type Conn interface {
	// ID returns the session identifier.
	ID() uint32

	// Context is cancelled when the session closes. Asynchronous work
	// started on behalf of the session should honour it.
	Context() context.Context

	// Logger returns the session-scoped logger.
	Logger() logger.Logger

	// State returns the current protocol state.
	State() protocol.State

	// SetState moves the session to s if the state machine allows it.
	SetState(s protocol.State) error

	// Send enqueues p on the session's single writer.
	Send(p ServerPacket) error

	// SendAndClose enqueues p and closes the session once p is written.
	SendAndClose(p ServerPacket) error

	// ExchangeKey enables the inbound cipher with a new key, enqueues the
	// handshake packet built by build in cleartext, and enables the
	// outbound cipher with the same key right after that packet is written.
	ExchangeKey(build KeyPacketFunc) error

	// Account returns the authenticated account name, or "".
	Account() string

	// SetAccount records the authenticated account name.
	SetAccount(name string)

	// CharacterID returns the selected character, if any. The character
	// itself is owned by the world layer.
	CharacterID() (int32, bool)

	// SetCharacterID records the selected character.
	SetCharacterID(id int32)

	// ClearCharacter forgets the selected character.
	ClearCharacter()

	// Close closes the session. It is safe to call more than once.
	Close() error
}

// Serialize writes p's opcode and fields into a new buffer.
func Serialize(conn Conn, p ServerPacket) ([]byte, error) {
	w := NewWriter()
	w.WriteOpcode(p.Opcode())
	if err := p.Write(conn, w); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}
