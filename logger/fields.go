package logger

import "fmt"

// Err returns the conventional "error" field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// SessionID returns the "session_id" field.
func SessionID(id uint32) Field {
	return Field{Key: "session_id", Value: id}
}

// Opcode returns the "opcode" field formatted as it appears on the wire.
func Opcode(op fmt.Stringer) Field {
	return Field{Key: "opcode", Value: op.String()}
}

// State returns the "state" field.
func State(s fmt.Stringer) Field {
	return Field{Key: "state", Value: s.String()}
}
