package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Reminder progress values for Appointment.RemindersSent.
const (
	RemindersNone   = 0
	RemindersFirst  = 1
	RemindersSecond = 2
)

// Appointment references a patient many-to-one. RemindersSent is
// monotonically non-decreasing and advances only through the reminder
// engine's conditional updates, never through user input.
type Appointment struct {
	Base
	PatientID     uuid.UUID         `db:"patient_id" json:"patient_id"`
	Dentist       string            `db:"dentist" json:"dentist"`
	ScheduledAt   time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Procedure     string            `db:"procedure" json:"procedure"`
	Status        AppointmentStatus `db:"status" json:"status"`
	Value         float64           `db:"value" json:"value"`
	Notes         string            `db:"notes" json:"notes,omitempty"`
	RemindersSent int               `db:"reminders_sent" json:"reminders_sent"`
	Confirmed     bool              `db:"confirmed" json:"confirmed"`
}

type CreateAppointmentRequest struct {
	PatientID   uuid.UUID `json:"patient_id" binding:"required"`
	Dentist     string    `json:"dentist" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Procedure   string    `json:"procedure" binding:"required"`
	Value       float64   `json:"value" binding:"gte=0"`
	Notes       string    `json:"notes"`
}

type AppointmentFilters struct {
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}
