package messenger

import "sync"

// State is the transport connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateAwaitingScan State = "awaiting_scan"
	StateConnected    State = "connected"
)

// Event drives connection state transitions.
type Event string

const (
	EventQRGenerated   Event = "qr_generated"
	EventAuthenticated Event = "authenticated"
	EventDisconnected  Event = "disconnected"
)

// transitions maps (state, event) to the next state. Events that do not
// apply in the current state leave it unchanged.
var transitions = map[State]map[Event]State{
	StateDisconnected: {
		EventQRGenerated:   StateAwaitingScan,
		EventAuthenticated: StateConnected,
	},
	StateAwaitingScan: {
		EventAuthenticated: StateConnected,
		EventDisconnected:  StateDisconnected,
	},
	StateConnected: {
		EventDisconnected: StateDisconnected,
	},
}

// ConnState is a thread-safe connection state machine. It decouples
// transport reconnection bookkeeping from the reminder engine, which only
// ever reads the current state through the Messenger contract.
type ConnState struct {
	mu    sync.RWMutex
	state State
}

func NewConnState() *ConnState {
	return &ConnState{state: StateDisconnected}
}

// Apply transitions on an event and returns the resulting state.
func (c *ConnState) Apply(event Event) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next, ok := transitions[c.state][event]; ok {
		c.state = next
	}
	return c.state
}

// Current returns the current state.
func (c *ConnState) Current() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connected reports whether the transport is usable.
func (c *ConnState) Connected() bool {
	return c.Current() == StateConnected
}
