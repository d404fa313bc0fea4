package serverpacket

import (
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

const (
	OpActionFailed       protocol.Opcode = 0x1F
	OpAttack             protocol.Opcode = 0x33
	OpCharOpenMap        protocol.Opcode = 0x9D
	OpCharTargetUnselect protocol.Opcode = 0x2A
)

// WorldMapID is the map shown for RequestShowMap.
const WorldMapID int32 = 1665

// ActionFailed tells the client to unlock its UI after a refused action.
type ActionFailed struct{}

func (ActionFailed) Opcode() protocol.Opcode { return OpActionFailed }

func (ActionFailed) Write(packet.Conn, *packet.Writer) error { return nil }

// CharOpenMap opens the world map window.
type CharOpenMap struct {
	MapID int32
}

func NewCharOpenMap(mapID int32) CharOpenMap {
	return CharOpenMap{MapID: mapID}
}

func (CharOpenMap) Opcode() protocol.Opcode { return OpCharOpenMap }

func (p CharOpenMap) Write(_ packet.Conn, w *packet.Writer) error {
	w.WriteInt32(p.MapID)
	return nil
}

// CharTargetUnselect clears a character's target at its current position.
type CharTargetUnselect struct {
	CharacterID int32
	X, Y, Z     int32
}

func NewCharTargetUnselect(characterID, x, y, z int32) CharTargetUnselect {
	return CharTargetUnselect{CharacterID: characterID, X: x, Y: y, Z: z}
}

func (CharTargetUnselect) Opcode() protocol.Opcode { return OpCharTargetUnselect }

func (p CharTargetUnselect) Write(_ packet.Conn, w *packet.Writer) error {
	w.WriteInt32(p.CharacterID)
	w.WriteInt32(p.X)
	w.WriteInt32(p.Y)
	w.WriteInt32(p.Z)
	w.WriteInt32(0)
	return nil
}

// Attack hit flags.
const (
	HitSoulshot uint8 = 0x10
	HitCritical uint8 = 0x20
	HitShield   uint8 = 0x40
	HitMiss     uint8 = 0x80
)

// Attack reports one resolved hit, positioned at the attacker.
type Attack struct {
	AttackerID int32
	TargetID   int32
	Damage     int32
	Flags      uint8
	X, Y, Z    int32
}

func (Attack) Opcode() protocol.Opcode { return OpAttack }

func (p Attack) Write(_ packet.Conn, w *packet.Writer) error {
	w.WriteInt32(p.AttackerID)
	w.WriteInt32(p.TargetID)
	w.WriteInt32(p.Damage)
	w.WriteUint8(p.Flags)
	w.WriteInt32(p.X)
	w.WriteInt32(p.Y)
	w.WriteInt32(p.Z)
	w.WriteInt16(0) // additional hits
	return nil
}
