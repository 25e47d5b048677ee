package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dentalert/dentalert-api/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicatePhone = errors.New("phone already registered")
)

type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByPhone(ctx context.Context, phone string) (*model.Patient, error)
	List(ctx context.Context) ([]*model.Patient, error)
	Update(ctx context.Context, patient *model.Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)

	// ListDueFirstReminder returns scheduled, unconfirmed appointments with
	// no reminder sent whose scheduled time lies in (from, to].
	ListDueFirstReminder(ctx context.Context, from, to time.Time) ([]*model.Appointment, error)
	// ListDueSecondReminder returns scheduled, confirmed appointments with
	// exactly the first reminder sent whose scheduled time lies in (from, to].
	ListDueSecondReminder(ctx context.Context, from, to time.Time) ([]*model.Appointment, error)
	// AdvanceReminders performs the conditional counter advance and reports
	// whether this caller claimed the transition.
	AdvanceReminders(ctx context.Context, id uuid.UUID, from, to int) (bool, error)

	// NextPending returns the patient's earliest unconfirmed scheduled
	// appointment, or ErrNotFound.
	NextPending(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error)
	// Confirm flips confirmed to true; false return means the appointment
	// was already confirmed, cancelled, or gone.
	Confirm(ctx context.Context, id uuid.UUID) (bool, error)
	// Cancel moves a scheduled appointment to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type MessageLogRepository interface {
	Create(ctx context.Context, log *model.MessageLog) error
	ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.MessageLog, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
