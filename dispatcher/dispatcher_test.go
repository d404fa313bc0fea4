package dispatcher

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-l2server/metrics"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/packettest"
	"github.com/cyberinferno/go-l2server/protocol"
)

const (
	opPing protocol.Opcode = 0x10
	opMove protocol.Opcode = 0x20
	opFail protocol.Opcode = 0x30
)

type pong struct{ n int32 }

func (pong) Opcode() protocol.Opcode { return 0x11 }

func (p pong) Write(_ packet.Conn, w *packet.Writer) error {
	w.WriteInt32(p.n)
	return nil
}

type ping struct{ n int32 }

func (ping) Opcode() protocol.Opcode { return opPing }

func (p ping) Process(conn packet.Conn) error {
	return conn.Send(pong{n: p.n})
}

type move struct{}

func (move) Opcode() protocol.Opcode       { return opMove }
func (move) Process(conn packet.Conn) error { return conn.Send(pong{}) }

type fail struct{}

func (fail) Opcode() protocol.Opcode       { return opFail }
func (fail) Process(conn packet.Conn) error { return errors.New("handler failed") }

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	reg := packet.NewRegistry()
	require.NoError(t, reg.Register(opPing, func(_ packet.Conn, r *packet.Reader) (packet.ClientPacket, error) {
		p := ping{n: r.ReadInt32()}
		return p, r.Err()
	}))
	require.NoError(t, reg.Register(opMove, func(packet.Conn, *packet.Reader) (packet.ClientPacket, error) {
		return move{}, nil
	}))
	require.NoError(t, reg.Register(opFail, func(packet.Conn, *packet.Reader) (packet.ClientPacket, error) {
		return fail{}, nil
	}))

	m := protocol.NewMachine()
	m.Allow(opPing, protocol.Connected, protocol.InGame)
	m.Allow(opMove, protocol.InGame)
	m.Allow(opFail, protocol.Connected)

	return New(reg, m, metrics.New(prometheus.NewRegistry()))
}

func TestDispatch(t *testing.T) {
	d := newDispatcher(t)

	t.Run("permitted packet is processed", func(t *testing.T) {
		conn := packettest.NewConn(1, protocol.Connected)
		require.NoError(t, d.Dispatch(conn, []byte{0x10, 9, 0, 0, 0}))
		assert.Equal(t, []packet.ServerPacket{pong{n: 9}}, conn.Sent())
	})

	t.Run("in-game only opcode is a violation while connected", func(t *testing.T) {
		conn := packettest.NewConn(1, protocol.Connected)
		err := d.Dispatch(conn, []byte{0x20})

		assert.ErrorIs(t, err, ErrProtocolViolation)
		var v *ViolationError
		require.ErrorAs(t, err, &v)
		assert.Equal(t, opMove, v.Opcode)
		assert.Equal(t, protocol.Connected, v.State)
		assert.Empty(t, conn.Sent())
	})

	t.Run("closed state accepts nothing", func(t *testing.T) {
		conn := packettest.NewConn(1, protocol.Closed)
		for _, payload := range [][]byte{{0x10, 0, 0, 0, 0}, {0x20}, {0x30}} {
			assert.ErrorIs(t, d.Dispatch(conn, payload), ErrProtocolViolation)
		}
	})

	t.Run("unknown opcode is dropped and the next frame still works", func(t *testing.T) {
		conn := packettest.NewConn(1, protocol.InGame)
		require.NoError(t, d.Dispatch(conn, []byte{0x7F, 1, 2, 3}))
		require.NoError(t, d.Dispatch(conn, []byte{0x20}))
		assert.Equal(t, []packet.ServerPacket{pong{}}, conn.Sent())
		assert.False(t, conn.Closed())
	})

	t.Run("malformed packet is dropped", func(t *testing.T) {
		conn := packettest.NewConn(1, protocol.InGame)
		require.NoError(t, d.Dispatch(conn, []byte{0x10, 1}))
		require.NoError(t, d.Dispatch(conn, nil))
		assert.Empty(t, conn.Sent())
	})

	t.Run("handler error is returned", func(t *testing.T) {
		conn := packettest.NewConn(1, protocol.Connected)
		err := d.Dispatch(conn, []byte{0x30})
		assert.ErrorContains(t, err, "handler failed")
		assert.NotErrorIs(t, err, ErrProtocolViolation)
	})
}

func TestRoute(t *testing.T) {
	d := newDispatcher(t)

	conn := packettest.NewConn(1, protocol.InGame)
	require.NoError(t, d.Route(conn, move{}))
	assert.ErrorIs(t, d.Route(conn, fail{}), ErrProtocolViolation)
}

func TestDispatch_NilMetrics(t *testing.T) {
	reg := packet.NewRegistry()
	d := New(reg, protocol.NewMachine(), nil)
	conn := packettest.NewConn(1, protocol.Connected)

	assert.NotPanics(t, func() {
		assert.NoError(t, d.Dispatch(conn, []byte{0x01}))
	})
}
