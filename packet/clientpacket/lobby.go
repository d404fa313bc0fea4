package clientpacket

import (
	"fmt"

	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/serverpacket"
	"github.com/cyberinferno/go-l2server/protocol"
	"github.com/cyberinferno/go-l2server/world"
)

const (
	OpCharacterSelect protocol.Opcode = 0x12
	OpEnterWorld      protocol.Opcode = 0x11
	OpRequestRestart  protocol.Opcode = 0x57
	OpLogout          protocol.Opcode = 0x00
)

// CharacterSelect picks a character by its slot on the selection screen.
type CharacterSelect struct {
	Slot int32

	svc *Services
}

func decodeCharacterSelect(svc *Services, r *packet.Reader) packet.ClientPacket {
	// trailing fields of this packet are unused
	return CharacterSelect{Slot: r.ReadInt32(), svc: svc}
}

func (CharacterSelect) Opcode() protocol.Opcode { return OpCharacterSelect }

func (p CharacterSelect) Process(conn packet.Conn) error {
	chars, err := p.svc.Characters.ListByAccount(conn.Context(), conn.Account())
	if err != nil {
		return fmt.Errorf("list characters of %s: %w", conn.Account(), err)
	}

	for _, c := range chars {
		if int32(c.Slot) == p.Slot {
			conn.SetCharacterID(c.ID)
			return conn.Send(serverpacket.NewCharSelected(charInfo(c)))
		}
	}

	return refuse(conn, OpCharacterSelect, fmt.Errorf("%w: slot %d", world.ErrCharacterNotFound, p.Slot))
}

// EnterWorld brings the selected character into the game.
type EnterWorld struct {
	svc *Services
}

func decodeEnterWorld(svc *Services, _ *packet.Reader) packet.ClientPacket {
	return EnterWorld{svc: svc}
}

func (EnterWorld) Opcode() protocol.Opcode { return OpEnterWorld }

func (p EnterWorld) Process(conn packet.Conn) error {
	id, ok := conn.CharacterID()
	if !ok {
		return refuse(conn, OpEnterWorld, fmt.Errorf("no character selected"))
	}

	if err := p.svc.Online.Enter(id, conn.ID()); err != nil {
		return refuse(conn, OpEnterWorld, err)
	}

	if err := conn.SetState(protocol.InGame); err != nil {
		p.svc.Online.Leave(id, conn.ID())
		return err
	}

	return nil
}

// RequestRestart returns to character selection.
type RequestRestart struct {
	svc *Services
}

func decodeRequestRestart(svc *Services, _ *packet.Reader) packet.ClientPacket {
	return RequestRestart{svc: svc}
}

func (RequestRestart) Opcode() protocol.Opcode { return OpRequestRestart }

func (p RequestRestart) Process(conn packet.Conn) error {
	p.svc.Disconnect(conn)
	if err := conn.SetState(protocol.Authenticated); err != nil {
		return err
	}

	if err := conn.Send(serverpacket.RestartResponse{}); err != nil {
		return err
	}

	return sendCharList(conn, p.svc)
}

// Logout ends the session after acknowledging it.
type Logout struct {
	svc *Services
}

func decodeLogout(svc *Services, _ *packet.Reader) packet.ClientPacket {
	return Logout{svc: svc}
}

func (Logout) Opcode() protocol.Opcode { return OpLogout }

func (p Logout) Process(conn packet.Conn) error {
	p.svc.Disconnect(conn)
	return conn.SendAndClose(serverpacket.LogoutOk{})
}
