// Package dispatcher routes inbound payloads to their packet handlers under
// the session state machine's guard. It holds no game logic.
package dispatcher

import (
	"errors"
	"fmt"

	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/metrics"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

// ErrProtocolViolation is matched by ViolationError.
var ErrProtocolViolation = errors.New("protocol violation")

// ViolationError reports an opcode that is not legal in the session's
// current state.
type ViolationError struct {
	Opcode protocol.Opcode
	State  protocol.State
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("opcode %s not allowed in state %s", e.Opcode, e.State)
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrProtocolViolation
}

// Dispatcher is shared by every session. It only reads the registry and
// machine, both of which are immutable once serving starts.
type Dispatcher struct {
	registry *packet.Registry
	machine  *protocol.Machine
	metrics  *metrics.Metrics
}

// New returns a dispatcher. m may be nil.
func New(registry *packet.Registry, machine *protocol.Machine, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, machine: machine, metrics: m}
}

// Dispatch handles one decrypted frame payload for conn.
//
// Unknown opcodes and malformed packets are logged and dropped; the frame
// boundary is already known, so the stream stays usable.
//
// Returns:
//   - nil when the frame was processed or dropped
//   - A *ViolationError when the opcode is not legal in conn's state
//   - The handler's error, wrapped, when processing failed
func (d *Dispatcher) Dispatch(conn packet.Conn, payload []byte) error {
	op, body, err := d.registry.Split(payload)
	if err != nil {
		d.drop(conn, op, err)
		return nil
	}

	if err := d.guard(conn, op); err != nil {
		return err
	}

	p, err := d.registry.Decode(conn, op, body)
	if err != nil {
		d.drop(conn, op, err)
		return nil
	}

	return d.process(conn, p)
}

// Route runs an already decoded packet under the state guard.
func (d *Dispatcher) Route(conn packet.Conn, p packet.ClientPacket) error {
	if err := d.guard(conn, p.Opcode()); err != nil {
		return err
	}

	return d.process(conn, p)
}

func (d *Dispatcher) guard(conn packet.Conn, op protocol.Opcode) error {
	state := conn.State()
	if d.machine.Permits(state, op) {
		return nil
	}

	d.metrics.ProtocolViolation()
	return &ViolationError{Opcode: op, State: state}
}

func (d *Dispatcher) process(conn packet.Conn, p packet.ClientPacket) error {
	conn.Logger().Debug("dispatch", logger.Opcode(p.Opcode()), logger.State(conn.State()))

	if err := p.Process(conn); err != nil {
		return fmt.Errorf("process %s: %w", p.Opcode(), err)
	}

	return nil
}

func (d *Dispatcher) drop(conn packet.Conn, op protocol.Opcode, err error) {
	if errors.Is(err, packet.ErrUnknownOpcode) {
		d.metrics.UnknownOpcode()
	}

	conn.Logger().Warn("dropped inbound frame", logger.Opcode(op), logger.Err(err))
}
