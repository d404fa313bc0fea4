package clientpacket

import (
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/packet/serverpacket"
	"github.com/cyberinferno/go-l2server/protocol"
	"github.com/cyberinferno/go-l2server/world"
)

const (
	OpProtocolVersion protocol.Opcode = 0x0E
	OpAuthLogin       protocol.Opcode = 0x2B
)

// ProtocolVersion opens the handshake. A supported revision is answered with
// the session key and turns on the cipher.
type ProtocolVersion struct {
	Revision int32

	svc *Services
}

func decodeProtocolVersion(svc *Services, r *packet.Reader) packet.ClientPacket {
	return ProtocolVersion{Revision: r.ReadInt32(), svc: svc}
}

func (ProtocolVersion) Opcode() protocol.Opcode { return OpProtocolVersion }

func (p ProtocolVersion) Process(conn packet.Conn) error {
	if !p.svc.supports(p.Revision) {
		conn.Logger().Warn("unsupported protocol revision", logger.Field{Key: "revision", Value: p.Revision})
		return conn.SendAndClose(serverpacket.NewKeyRejected(p.svc.ServerID))
	}

	if err := conn.ExchangeKey(serverpacket.KeyBuilder(p.svc.ServerID)); err != nil {
		return err
	}

	return conn.SetState(protocol.KeyExchanged)
}

// AuthLogin presents the session key issued by the login server.
type AuthLogin struct {
	Account string
	Key     world.SessionKey

	svc *Services
}

func decodeAuthLogin(svc *Services, r *packet.Reader) packet.ClientPacket {
	p := AuthLogin{svc: svc}
	p.Account = r.ReadString()
	p.Key.PlayKey2 = r.ReadInt32()
	p.Key.PlayKey1 = r.ReadInt32()
	p.Key.LoginKey1 = r.ReadInt32()
	p.Key.LoginKey2 = r.ReadInt32()
	return p
}

func (AuthLogin) Opcode() protocol.Opcode { return OpAuthLogin }

func (p AuthLogin) Process(conn packet.Conn) error {
	if err := p.svc.Auth.Authenticate(conn.Context(), p.Account, p.Key); err != nil {
		conn.Logger().Warn("authentication failed", logger.Field{Key: "account", Value: p.Account}, logger.Err(err))
		return conn.Close()
	}

	conn.SetAccount(p.Account)
	if err := conn.SetState(protocol.Authenticated); err != nil {
		return err
	}

	return sendCharList(conn, p.svc)
}
