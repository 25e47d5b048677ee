package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels used across the system.
const (
	ChannelInbound   = "whatsapp:inbound"
	ChannelReminders = "reminders:sent"
)

// InboundMessage is the payload published on ChannelInbound by the
// gateway webhook and consumed by the reply handler.
type InboundMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// ReminderEvent is published on ChannelReminders after every send attempt.
type ReminderEvent struct {
	AppointmentID string `json:"appointment_id"`
	Kind          string `json:"kind"`
	Phone         string `json:"phone"`
	Accepted      bool   `json:"accepted"`
}
