package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind identifies which template produced an outbound message.
type MessageKind string

const (
	MessageKindFirstReminder  MessageKind = "reminder_24h"
	MessageKindSecondReminder MessageKind = "reminder_2h"
	MessageKindConfirmation   MessageKind = "confirmation"
	MessageKindCancellation   MessageKind = "cancellation"
)

// MessageLog records every outbound send attempt, accepted or not.
type MessageLog struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	AppointmentID uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	Kind          MessageKind `db:"kind" json:"kind"`
	Phone         string      `db:"phone" json:"phone"`
	Accepted      bool        `db:"accepted" json:"accepted"`
	GatewayID     string      `db:"gateway_id" json:"gateway_id,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}
