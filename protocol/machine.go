package protocol

import "fmt"

// Machine is the session state machine: a per-state opcode whitelist and a
// transition table. It is populated once at startup and read concurrently by
// every session afterwards without locking; do not call Allow after serving
// has begun.
type Machine struct {
	legal       map[State]map[Opcode]struct{}
	transitions map[State]map[State]struct{}
}

// NewMachine returns a machine with the standard lifecycle transitions
// (Connected → KeyExchanged → Authenticated → InGame, InGame → Authenticated,
// any state → Closed) and an empty opcode whitelist.
func NewMachine() *Machine {
	m := &Machine{
		legal:       make(map[State]map[Opcode]struct{}),
		transitions: make(map[State]map[State]struct{}),
	}

	m.addTransition(Connected, KeyExchanged)
	m.addTransition(KeyExchanged, Authenticated)
	m.addTransition(Authenticated, InGame)
	m.addTransition(InGame, Authenticated)
	for _, s := range []State{Connected, KeyExchanged, Authenticated, InGame} {
		m.addTransition(s, Closed)
	}

	return m
}

func (m *Machine) addTransition(from, to State) {
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[State]struct{})
	}

	m.transitions[from][to] = struct{}{}
}

// Allow whitelists op for inbound processing in each of states. Closed can
// never be whitelisted.
func (m *Machine) Allow(op Opcode, states ...State) {
	for _, s := range states {
		if s == Closed {
			continue
		}

		if m.legal[s] == nil {
			m.legal[s] = make(map[Opcode]struct{})
		}

		m.legal[s][op] = struct{}{}
	}
}

// Permits reports whether op may be processed in state s.
func (m *Machine) Permits(s State, op Opcode) bool {
	_, ok := m.legal[s][op]
	return ok
}

// CanTransition reports whether the machine allows moving from one state to
// another. Staying in the same state is not a transition.
func (m *Machine) CanTransition(from, to State) bool {
	_, ok := m.transitions[from][to]
	return ok
}

// Transition validates a state change.
//
// Returns:
//   - nil if the change is allowed, otherwise an error naming both states
func (m *Machine) Transition(from, to State) error {
	if !m.CanTransition(from, to) {
		return fmt.Errorf("illegal state transition %s -> %s", from, to)
	}

	return nil
}
