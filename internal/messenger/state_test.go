package messenger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnStateTransitions(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   State
	}{
		{name: "initial", events: nil, want: StateDisconnected},
		{name: "qr shown", events: []Event{EventQRGenerated}, want: StateAwaitingScan},
		{name: "scan flow", events: []Event{EventQRGenerated, EventAuthenticated}, want: StateConnected},
		{name: "restored session", events: []Event{EventAuthenticated}, want: StateConnected},
		{name: "drop after connect", events: []Event{EventAuthenticated, EventDisconnected}, want: StateDisconnected},
		{name: "scan abandoned", events: []Event{EventQRGenerated, EventDisconnected}, want: StateDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewConnState()
			for _, ev := range tt.events {
				cs.Apply(ev)
			}
			assert.Equal(t, tt.want, cs.Current())
		})
	}
}

func TestConnStateIgnoresInapplicableEvents(t *testing.T) {
	cs := NewConnState()

	// disconnect while already disconnected is a no-op
	assert.Equal(t, StateDisconnected, cs.Apply(EventDisconnected))

	// a late QR event never downgrades an established session
	cs.Apply(EventAuthenticated)
	assert.Equal(t, StateConnected, cs.Apply(EventQRGenerated))
	assert.True(t, cs.Connected())
}
