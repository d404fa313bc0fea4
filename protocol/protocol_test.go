package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "InGame", InGame.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", State(42).String())
}

func TestOpcode(t *testing.T) {
	t.Run("single byte opcode", func(t *testing.T) {
		op := Opcode(0x9d)
		assert.False(t, op.IsExtended())
		assert.Equal(t, byte(0x9d), op.Prefix())
		assert.Equal(t, uint16(0), op.Sub())
		assert.Equal(t, "0x9D", op.String())
	})

	t.Run("extended opcode", func(t *testing.T) {
		op := Extended(ExtendedPrefix, 0x0024)
		assert.True(t, op.IsExtended())
		assert.Equal(t, ExtendedPrefix, op.Prefix())
		assert.Equal(t, uint16(0x24), op.Sub())
		assert.Equal(t, "0xD0:0x0024", op.String())
		assert.NotEqual(t, Opcode(ExtendedPrefix), op)
	})
}

func TestMachine_Permits(t *testing.T) {
	m := NewMachine()
	const handshake, move Opcode = 0x0e, 0x0f
	m.Allow(handshake, Connected)
	m.Allow(move, InGame)

	t.Run("whitelisted opcode is permitted", func(t *testing.T) {
		assert.True(t, m.Permits(Connected, handshake))
		assert.True(t, m.Permits(InGame, move))
	})

	t.Run("in-game opcode is rejected while connected", func(t *testing.T) {
		assert.False(t, m.Permits(Connected, move))
	})

	t.Run("closed permits nothing", func(t *testing.T) {
		m.Allow(handshake, Closed)
		assert.False(t, m.Permits(Closed, handshake))
		assert.False(t, m.Permits(Closed, move))
	})

	t.Run("unknown opcode is not permitted anywhere", func(t *testing.T) {
		for _, s := range []State{Connected, KeyExchanged, Authenticated, InGame, Closed} {
			assert.False(t, m.Permits(s, 0x77), s.String())
		}
	})
}

func TestMachine_Transitions(t *testing.T) {
	m := NewMachine()

	t.Run("lifecycle order", func(t *testing.T) {
		assert.NoError(t, m.Transition(Connected, KeyExchanged))
		assert.NoError(t, m.Transition(KeyExchanged, Authenticated))
		assert.NoError(t, m.Transition(Authenticated, InGame))
		assert.NoError(t, m.Transition(InGame, Authenticated))
	})

	t.Run("skipping the handshake is illegal", func(t *testing.T) {
		assert.Error(t, m.Transition(Connected, Authenticated))
		assert.Error(t, m.Transition(Connected, InGame))
	})

	t.Run("every live state can close", func(t *testing.T) {
		for _, s := range []State{Connected, KeyExchanged, Authenticated, InGame} {
			assert.True(t, m.CanTransition(s, Closed), s.String())
		}
	})

	t.Run("closed is absorbing", func(t *testing.T) {
		for _, s := range []State{Connected, KeyExchanged, Authenticated, InGame, Closed} {
			assert.False(t, m.CanTransition(Closed, s), s.String())
		}
	})
}
