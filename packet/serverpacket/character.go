package serverpacket

import (
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

const (
	OpCharList     protocol.Opcode = 0x09
	OpCharSelected protocol.Opcode = 0x0B
)

// CharInfo is the subset of a character shown on the selection screen.
type CharInfo struct {
	Name    string
	ID      int32
	Level   int32
	X, Y, Z int32
}

func (c CharInfo) write(w *packet.Writer) {
	w.WriteString(c.Name)
	w.WriteInt32(c.ID)
	w.WriteInt32(c.Level)
	w.WriteInt32(c.X)
	w.WriteInt32(c.Y)
	w.WriteInt32(c.Z)
}

// CharList lists an account's characters in slot order.
type CharList struct {
	Characters []CharInfo
}

// NewCharList copies chars so later changes by the caller do not leak into
// a queued packet.
func NewCharList(chars []CharInfo) CharList {
	return CharList{Characters: append([]CharInfo(nil), chars...)}
}

func (CharList) Opcode() protocol.Opcode { return OpCharList }

func (p CharList) Write(_ packet.Conn, w *packet.Writer) error {
	w.WriteInt32(int32(len(p.Characters)))
	for _, c := range p.Characters {
		c.write(w)
	}

	return nil
}

// CharSelected confirms the character picked on the selection screen.
type CharSelected struct {
	Character CharInfo
}

func NewCharSelected(c CharInfo) CharSelected {
	return CharSelected{Character: c}
}

func (CharSelected) Opcode() protocol.Opcode { return OpCharSelected }

func (p CharSelected) Write(_ packet.Conn, w *packet.Writer) error {
	p.Character.write(w)
	return nil
}
