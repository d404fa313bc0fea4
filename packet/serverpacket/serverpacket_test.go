package serverpacket

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/packet"
)

func le32(vals ...int32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	return out
}

func serialize(t *testing.T, p packet.ServerPacket) []byte {
	t.Helper()
	b, err := packet.Serialize(nil, p)
	require.NoError(t, err)
	return b
}

func TestCharOpenMap(t *testing.T) {
	assert.Equal(t, []byte{0x9D, 5, 0, 0, 0}, serialize(t, NewCharOpenMap(5)))
}

func TestCharTargetUnselect(t *testing.T) {
	want := append([]byte{0x2A}, le32(7, 10, 20, 30, 0)...)
	assert.Equal(t, want, serialize(t, NewCharTargetUnselect(7, 10, 20, 30)))
}

func TestKey(t *testing.T) {
	key, err := cipher.KeyFromHead([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	t.Run("accepted", func(t *testing.T) {
		got := serialize(t, KeyBuilder(3)(key))

		want := []byte{0x2E, 1, 1, 2, 3, 4, 5, 6, 7, 8}
		want = append(want, le32(1, 3)...)
		want = append(want, 1)
		want = append(want, le32(0)...)
		assert.Equal(t, want, got)
	})

	t.Run("rejected carries no key", func(t *testing.T) {
		got := serialize(t, NewKeyRejected(3))
		require.Len(t, got, 1+1+8+4+4+1+4)
		assert.Equal(t, byte(0), got[1])
		assert.Equal(t, make([]byte, 8), got[2:10])
	})
}

func TestCharList(t *testing.T) {
	chars := []CharInfo{{Name: "Ab", ID: 0x10000000, Level: 1, X: -71338, Y: 258271, Z: -3104}}
	p := NewCharList(chars)
	chars[0].Name = "changed"

	got := serialize(t, p)

	want := []byte{0x09}
	want = append(want, le32(1)...)
	want = append(want, 'A', 0, 'b', 0, 0, 0)
	want = append(want, le32(0x10000000, 1, -71338, 258271, -3104)...)
	assert.Equal(t, want, got)
}

func TestCharList_Empty(t *testing.T) {
	assert.Equal(t, []byte{0x09, 0, 0, 0, 0}, serialize(t, NewCharList(nil)))
}

func TestCharSelected(t *testing.T) {
	got := serialize(t, NewCharSelected(CharInfo{Name: "x", ID: 9, Level: 2, X: 1, Y: 2, Z: 3}))

	want := []byte{0x0B, 'x', 0, 0, 0}
	want = append(want, le32(9, 2, 1, 2, 3)...)
	assert.Equal(t, want, got)
}

func TestAttack(t *testing.T) {
	got := serialize(t, Attack{AttackerID: 1, TargetID: 2, Damage: 30, Flags: HitCritical, X: 4, Y: 5, Z: 6})

	want := []byte{0x33}
	want = append(want, le32(1, 2, 30)...)
	want = append(want, HitCritical)
	want = append(want, le32(4, 5, 6)...)
	want = append(want, 0, 0)
	assert.Equal(t, want, got)
}

func TestFixedPackets(t *testing.T) {
	tests := []struct {
		name string
		p    packet.ServerPacket
		want []byte
	}{
		{"action failed", ActionFailed{}, []byte{0x1F}},
		{"restart response", RestartResponse{}, []byte{0x71, 1, 0, 0, 0}},
		{"logout ok", LogoutOk{}, []byte{0x84}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serialize(t, tt.p))
		})
	}
}
