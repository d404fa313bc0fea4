// Package clientpacket holds the inbound packets of the game protocol and
// registers their decoders and legal states.
package clientpacket

import (
	"fmt"
	"slices"

	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/serverpacket"
	"github.com/cyberinferno/go-l2server/protocol"
	"github.com/cyberinferno/go-l2server/world"
)

// DefaultRevision is the client protocol revision accepted when Services
// names none.
const DefaultRevision int32 = 216

// Services are the world collaborators packet handlers call into.
type Services struct {
	Characters world.CharacterService
	Auth       world.Authenticator
	Attacks    *world.AttackService
	Online     *world.OnlineRegistry

	// ServerID is announced in the handshake.
	ServerID int32

	// Revisions lists the accepted protocol revisions.
	Revisions []int32
}

func (s *Services) supports(revision int32) bool {
	if len(s.Revisions) == 0 {
		return revision == DefaultRevision
	}

	return slices.Contains(s.Revisions, revision)
}

// Disconnect releases what a closing session holds in the world. Sessions
// call it once on close. A character is taken out of the world only by the
// session that brought it in.
func (s *Services) Disconnect(conn packet.Conn) {
	if id, ok := conn.CharacterID(); ok {
		s.Online.Leave(id, conn.ID())
		conn.ClearCharacter()
	}
}

// entry describes one inbound packet: its decoder and where it is legal.
type entry struct {
	op     protocol.Opcode
	decode func(svc *Services, r *packet.Reader) packet.ClientPacket
	states []protocol.State
}

var entries = []entry{
	{OpProtocolVersion, decodeProtocolVersion, []protocol.State{protocol.Connected}},
	{OpAuthLogin, decodeAuthLogin, []protocol.State{protocol.KeyExchanged}},
	{OpCharacterSelect, decodeCharacterSelect, []protocol.State{protocol.Authenticated}},
	{OpEnterWorld, decodeEnterWorld, []protocol.State{protocol.Authenticated}},
	{OpRequestShowMap, decodeRequestShowMap, []protocol.State{protocol.InGame}},
	{OpRequestTargetCancel, decodeRequestTargetCancel, []protocol.State{protocol.InGame}},
	{OpAttack, decodeAttack, []protocol.State{protocol.InGame}},
	{OpRequestRestart, decodeRequestRestart, []protocol.State{protocol.InGame}},
	{OpLogout, decodeLogout, []protocol.State{protocol.Authenticated, protocol.InGame}},
}

// Register adds every inbound packet to reg and whitelists it in machine.
//
// Returns:
//   - An error if an opcode is already registered
func Register(reg *packet.Registry, machine *protocol.Machine, svc *Services) error {
	for _, e := range entries {
		decode := e.decode
		err := reg.Register(e.op, func(_ packet.Conn, r *packet.Reader) (packet.ClientPacket, error) {
			p := decode(svc, r)
			if err := r.Err(); err != nil {
				return nil, err
			}

			return p, nil
		})
		if err != nil {
			return fmt.Errorf("register client packets: %w", err)
		}

		machine.Allow(e.op, e.states...)
	}

	return nil
}

func charInfo(c world.Character) serverpacket.CharInfo {
	return serverpacket.CharInfo{
		Name:  c.Name,
		ID:    c.ID,
		Level: c.Level,
		X:     c.Point.X,
		Y:     c.Point.Y,
		Z:     c.Point.Z,
	}
}

// sendCharList sends the account's characters.
func sendCharList(conn packet.Conn, svc *Services) error {
	chars, err := svc.Characters.ListByAccount(conn.Context(), conn.Account())
	if err != nil {
		return fmt.Errorf("list characters of %s: %w", conn.Account(), err)
	}

	infos := make([]serverpacket.CharInfo, len(chars))
	for i, c := range chars {
		infos[i] = charInfo(c)
	}

	return conn.Send(serverpacket.NewCharList(infos))
}

// refuse answers an action the world rejected.
func refuse(conn packet.Conn, op protocol.Opcode, err error) error {
	conn.Logger().Info("action refused", logger.Opcode(op), logger.Err(err))
	return conn.Send(serverpacket.ActionFailed{})
}
