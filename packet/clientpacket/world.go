package clientpacket

import (
	"fmt"

	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/serverpacket"
	"github.com/cyberinferno/go-l2server/protocol"
	"github.com/cyberinferno/go-l2server/world"
)

const (
	OpRequestShowMap      protocol.Opcode = 0x6C
	OpRequestTargetCancel protocol.Opcode = 0x48
	OpAttack              protocol.Opcode = 0x01
)

// RequestShowMap opens the world map.
type RequestShowMap struct{}

func decodeRequestShowMap(*Services, *packet.Reader) packet.ClientPacket {
	return RequestShowMap{}
}

func (RequestShowMap) Opcode() protocol.Opcode { return OpRequestShowMap }

func (RequestShowMap) Process(conn packet.Conn) error {
	return conn.Send(serverpacket.NewCharOpenMap(serverpacket.WorldMapID))
}

// RequestTargetCancel drops the character's current target.
type RequestTargetCancel struct {
	Unselect int16

	svc *Services
}

func decodeRequestTargetCancel(svc *Services, r *packet.Reader) packet.ClientPacket {
	return RequestTargetCancel{Unselect: r.ReadInt16(), svc: svc}
}

func (RequestTargetCancel) Opcode() protocol.Opcode { return OpRequestTargetCancel }

func (p RequestTargetCancel) Process(conn packet.Conn) error {
	c, err := currentCharacter(conn, p.svc)
	if err != nil {
		return refuse(conn, OpRequestTargetCancel, err)
	}

	return conn.Send(serverpacket.NewCharTargetUnselect(c.ID, c.Point.X, c.Point.Y, c.Point.Z))
}

// Attack asks the character to attack an object.
type Attack struct {
	ObjectID int32
	Origin   world.Point
	// AttackID is 1 when the client forces the attack (shift-click).
	AttackID uint8

	svc *Services
}

func decodeAttack(svc *Services, r *packet.Reader) packet.ClientPacket {
	p := Attack{svc: svc}
	p.ObjectID = r.ReadInt32()
	p.Origin.X = r.ReadInt32()
	p.Origin.Y = r.ReadInt32()
	p.Origin.Z = r.ReadInt32()
	p.AttackID = r.ReadUint8()
	return p
}

func (Attack) Opcode() protocol.Opcode { return OpAttack }

// Process hands the attack to the worker pool and returns at once. The
// result is sent through the session's writer when it completes; after the
// session closed the send fails and the result is dropped.
func (p Attack) Process(conn packet.Conn) error {
	attacker, err := currentCharacter(conn, p.svc)
	if err != nil {
		return refuse(conn, OpAttack, err)
	}

	target, err := p.svc.Characters.Get(conn.Context(), p.ObjectID)
	if err != nil {
		return refuse(conn, OpAttack, err)
	}

	p.svc.Attacks.Attack(conn.Context(), attacker, target).Then(func(hit world.AttackHit, err error) {
		var out packet.ServerPacket = serverpacket.ActionFailed{}
		if err == nil {
			out = serverpacket.Attack{
				AttackerID: hit.Attacker.ID,
				TargetID:   hit.Target.ID,
				Damage:     int32(hit.Damage),
				X:          hit.Attacker.Point.X,
				Y:          hit.Attacker.Point.Y,
				Z:          hit.Attacker.Point.Z,
			}
		} else {
			conn.Logger().Info("attack failed", logger.Err(err))
		}

		if err := conn.Send(out); err != nil {
			conn.Logger().Debug("attack result dropped", logger.Err(err))
		}
	})

	return nil
}

func currentCharacter(conn packet.Conn, svc *Services) (world.Character, error) {
	id, ok := conn.CharacterID()
	if !ok {
		return world.Character{}, fmt.Errorf("no character in game")
	}

	return svc.Characters.Get(conn.Context(), id)
}
