package scpi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Session.
type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSynchronized
	StateServing
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSynchronized:
		return "synchronized"
	case StateServing:
		return "serving"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// ErrInvalidTransition is returned for a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid session state transition")

var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateClosed},
	StateConnecting:   {StateSynchronized, StateDisconnected, StateClosed},
	StateSynchronized: {StateServing, StateReconnecting, StateClosed},
	StateServing:      {StateReconnecting, StateClosed},
	StateReconnecting: {StateConnecting, StateClosed},
	StateClosed:       {},
}

// StateChangeHandler is called after every state change.
type StateChangeHandler func(prev, next State)

type stateMgr struct {
	state    atomic.Uint32
	mu       sync.Mutex
	handlers []StateChangeHandler
}

func (m *stateMgr) load() State {
	return State(m.state.Load())
}

func (m *stateMgr) addHandler(h StateChangeHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// to moves the machine to next. Moving to the current state is a no-op.
func (m *stateMgr) to(next State) error {
	prev := m.load()
	if prev == next {
		return nil
	}

	allowed := false
	for _, s := range transitions[prev] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
	}

	m.state.Store(uint32(next))

	m.mu.Lock()
	handlers := append([]StateChangeHandler(nil), m.handlers...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(prev, next)
	}
	return nil
}
