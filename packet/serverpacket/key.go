// Package serverpacket holds the outbound packets the game server sends.
// Every packet is an immutable value carrying exactly the data it writes.
package serverpacket

import (
	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

const OpKey protocol.Opcode = 0x2E

// Key is the cleartext handshake reply to ProtocolVersion. It carries the
// random head of the session key; the client appends the fixed tail itself.
type Key struct {
	Accepted bool
	Key      [cipher.KeySize]byte
	ServerID int32
}

// NewKey returns an accepting handshake for key.
func NewKey(key [cipher.KeySize]byte, serverID int32) Key {
	return Key{Accepted: true, Key: key, ServerID: serverID}
}

// NewKeyRejected returns the handshake sent to clients running an
// unsupported protocol revision.
func NewKeyRejected(serverID int32) Key {
	return Key{ServerID: serverID}
}

// KeyBuilder adapts NewKey to packet.KeyPacketFunc.
func KeyBuilder(serverID int32) packet.KeyPacketFunc {
	return func(key [cipher.KeySize]byte) packet.ServerPacket {
		return NewKey(key, serverID)
	}
}

func (Key) Opcode() protocol.Opcode { return OpKey }

func (p Key) Write(_ packet.Conn, w *packet.Writer) error {
	if p.Accepted {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}

	w.WriteBytes(p.Key[:cipher.KeyHeadSize])
	w.WriteInt32(1)
	w.WriteInt32(p.ServerID)
	w.WriteUint8(1)
	w.WriteInt32(0) // obfuscation key
	return nil
}
