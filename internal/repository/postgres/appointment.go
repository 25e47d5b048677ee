package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentalert/dentalert-api/internal/model"
	"github.com/dentalert/dentalert-api/internal/repository"
)

const appointmentColumns = `
	id, patient_id, dentist, scheduled_at, procedure, status, value,
	notes, reminders_sent, confirmed, created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, dentist, scheduled_at, procedure, status, value,
			notes, reminders_sent, confirmed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.Dentist,
		appointment.ScheduledAt,
		appointment.Procedure,
		appointment.Status,
		appointment.Value,
		appointment.Notes,
		appointment.RemindersSent,
		appointment.Confirmed,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at <= $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY scheduled_at ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListDueFirstReminder(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = $1
		  AND confirmed = false
		  AND reminders_sent = $2
		  AND scheduled_at > $3
		  AND scheduled_at <= $4
		ORDER BY scheduled_at ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query,
		model.AppointmentStatusScheduled, model.RemindersNone, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list first-reminder candidates: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListDueSecondReminder(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = $1
		  AND confirmed = true
		  AND reminders_sent = $2
		  AND scheduled_at > $3
		  AND scheduled_at <= $4
		ORDER BY scheduled_at ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query,
		model.AppointmentStatusScheduled, model.RemindersFirst, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list second-reminder candidates: %w", err)
	}
	return appointments, nil
}

// AdvanceReminders is the engine's claim: the WHERE clause makes the
// counter advance atomic with the read that selected the candidate, so
// overlapping cycles can never both claim the same appointment.
func (r *appointmentRepository) AdvanceReminders(ctx context.Context, id uuid.UUID, from, to int) (bool, error) {
	query := `
		UPDATE appointments
		SET reminders_sent = $1, updated_at = $2
		WHERE id = $3
		  AND reminders_sent = $4
		  AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		to, time.Now(), id, from, model.AppointmentStatusScheduled)
	if err != nil {
		return false, fmt.Errorf("failed to advance reminder counter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) NextPending(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		  AND status = $2
		  AND confirmed = false
		ORDER BY scheduled_at ASC
		LIMIT 1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, patientID, model.AppointmentStatusScheduled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get next pending appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Confirm(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments
		SET confirmed = true, updated_at = $1
		WHERE id = $2
		  AND confirmed = false
		  AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, model.AppointmentStatusScheduled)
	if err != nil {
		return false, fmt.Errorf("failed to confirm appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3
		  AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		model.AppointmentStatusCancelled, time.Now(), id, model.AppointmentStatusScheduled)
	if err != nil {
		return false, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
