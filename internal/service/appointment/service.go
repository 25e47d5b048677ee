package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentalert/dentalert-api/internal/model"
	"github.com/dentalert/dentalert-api/internal/repository"
)

type Service struct {
	repo     repository.AppointmentRepository
	patients repository.PatientRepository
}

func NewService(repo repository.AppointmentRepository, patients repository.PatientRepository) *Service {
	return &Service{repo: repo, patients: patients}
}

func (s *Service) CreateAppointment(ctx context.Context, apt *model.Appointment) (*model.Appointment, error) {
	if apt.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient ID is required")
	}
	if apt.ScheduledAt.Before(time.Now()) {
		return nil, fmt.Errorf("appointment cannot be scheduled in the past")
	}

	if _, err := s.patients.Get(ctx, apt.PatientID); err != nil {
		return nil, fmt.Errorf("failed to resolve patient: %w", err)
	}

	apt.Status = model.AppointmentStatusScheduled
	apt.RemindersSent = model.RemindersNone
	apt.Confirmed = false

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, filters)
}

// ConfirmAppointment is the explicit confirm action used by clinic staff;
// it shares the reply handler's conditional transition.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) error {
	claimed, err := s.repo.Confirm(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("appointment cannot be confirmed")
	}
	return nil
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	claimed, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("appointment cannot be cancelled")
	}
	return nil
}
