package serverpacket

import (
	"github.com/cyberinferno/go-l2server/packet"
	"github.com/cyberinferno/go-l2server/protocol"
)

const (
	OpRestartResponse protocol.Opcode = 0x71
	OpLogoutOk        protocol.Opcode = 0x84
)

// RestartResponse acknowledges a return to character selection.
type RestartResponse struct{}

func (RestartResponse) Opcode() protocol.Opcode { return OpRestartResponse }

func (RestartResponse) Write(_ packet.Conn, w *packet.Writer) error {
	w.WriteInt32(1)
	return nil
}

// LogoutOk is the last packet before the server drops a logging out client.
type LogoutOk struct{}

func (LogoutOk) Opcode() protocol.Opcode { return OpLogoutOk }

func (LogoutOk) Write(packet.Conn, *packet.Writer) error { return nil }
