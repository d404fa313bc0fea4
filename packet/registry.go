package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cyberinferno/go-l2server/protocol"
)

// ErrUnknownOpcode is matched by UnknownOpcodeError.
var ErrUnknownOpcode = errors.New("unknown opcode")

// UnknownOpcodeError reports an opcode with no registered decoder. It is not
// fatal: framing has already isolated the frame, so the caller drops it and
// keeps reading.
type UnknownOpcodeError struct {
	Opcode protocol.Opcode
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode %s", e.Opcode)
}

func (e *UnknownOpcodeError) Is(target error) bool {
	return target == ErrUnknownOpcode
}

// DecodeFunc builds a typed inbound packet from the bytes following the
// opcode. conn is the originating session, available for contextual decoding.
type DecodeFunc func(conn Conn, r *Reader) (ClientPacket, error)

// Registry maps inbound opcodes to decoders. It is filled at startup and is
// read-only afterwards, so lookups need no locking.
type Registry struct {
	decoders map[protocol.Opcode]DecodeFunc
	extended map[byte]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[protocol.Opcode]DecodeFunc),
		extended: make(map[byte]struct{}),
	}
}

// Register binds op to fn. Registering an extended opcode makes its prefix
// byte a two-level opcode for every later lookup.
//
// Returns:
//   - An error if op is already registered, or if op's prefix conflicts with
//     an existing single-byte or extended registration
func (r *Registry) Register(op protocol.Opcode, fn DecodeFunc) error {
	if _, exists := r.decoders[op]; exists {
		return fmt.Errorf("opcode %s already registered", op)
	}

	if op.IsExtended() {
		if _, clash := r.decoders[protocol.Opcode(op.Prefix())]; clash {
			return fmt.Errorf("extended opcode %s clashes with single-byte opcode 0x%02X", op, op.Prefix())
		}

		r.extended[op.Prefix()] = struct{}{}
	} else if _, clash := r.extended[op.Prefix()]; clash {
		return fmt.Errorf("opcode %s is an extended prefix", op)
	}

	r.decoders[op] = fn
	return nil
}

// Split reads the opcode at the start of payload.
//
// Returns:
//   - The opcode and the bytes that follow it
//   - An *UnknownOpcodeError if nothing is registered for it, or an error
//     wrapping ErrMalformedPacket if the payload is too short
func (r *Registry) Split(payload []byte) (protocol.Opcode, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, fmt.Errorf("%w: empty payload", ErrMalformedPacket)
	}

	prefix := payload[0]
	op := protocol.Opcode(prefix)
	body := payload[1:]

	if _, ok := r.extended[prefix]; ok {
		if len(body) < 2 {
			return 0, nil, fmt.Errorf("%w: truncated extended opcode 0x%02X", ErrMalformedPacket, prefix)
		}

		op = protocol.Extended(prefix, binary.LittleEndian.Uint16(body))
		body = body[2:]
	}

	if _, ok := r.decoders[op]; !ok {
		return op, nil, &UnknownOpcodeError{Opcode: op}
	}

	return op, body, nil
}

// Decode builds the packet for op from body.
func (r *Registry) Decode(conn Conn, op protocol.Opcode, body []byte) (ClientPacket, error) {
	fn, ok := r.decoders[op]
	if !ok {
		return nil, &UnknownOpcodeError{Opcode: op}
	}

	p, err := fn(conn, NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}

	return p, nil
}

// Len returns the number of registered opcodes.
func (r *Registry) Len() int {
	return len(r.decoders)
}
