package protocol

import "fmt"

// Opcode identifies a packet type. Single-byte opcodes use their byte value.
// Extended opcodes are a prefix byte followed by a little-endian uint16 and
// are built with Extended.
type Opcode uint32

// ExtendedPrefix is the leading byte of every extended client opcode.
const ExtendedPrefix byte = 0xD0

const extendedFlag Opcode = 1 << 24

// Extended returns the opcode for prefix followed by sub.
func Extended(prefix byte, sub uint16) Opcode {
	return extendedFlag | Opcode(prefix)<<16 | Opcode(sub)
}

// IsExtended reports whether op was built with Extended.
func (op Opcode) IsExtended() bool {
	return op&extendedFlag != 0
}

// Prefix returns the first wire byte of op.
func (op Opcode) Prefix() byte {
	if op.IsExtended() {
		return byte(op >> 16)
	}

	return byte(op)
}

// Sub returns the second-level opcode of an extended opcode, or 0.
func (op Opcode) Sub() uint16 {
	if !op.IsExtended() {
		return 0
	}

	return uint16(op)
}

// String formats op as it appears on the wire.
func (op Opcode) String() string {
	if op.IsExtended() {
		return fmt.Sprintf("0x%02X:0x%04X", op.Prefix(), op.Sub())
	}

	return fmt.Sprintf("0x%02X", byte(op))
}
