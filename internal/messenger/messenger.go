// Package messenger defines the outbound-message capability the reminder
// engine and reply handler depend on. Implementations may talk to a real
// WhatsApp gateway or be deterministic test doubles; callers never assume
// a specific transport.
package messenger

import (
	"context"
	"time"
)

// Receipt reports the outcome of a send attempt.
type Receipt struct {
	ID        string    `json:"id"`
	Accepted  bool      `json:"accepted"`
	Timestamp time.Time `json:"timestamp"`
}

// Status describes the transport connection.
type Status struct {
	Connected bool  `json:"connected"`
	State     State `json:"state"`
}

// Messenger sends a text message to a normalized phone number.
type Messenger interface {
	Send(ctx context.Context, phone, text string) (*Receipt, error)
	ConnectionStatus() Status
}
