package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentalert/dentalert-api/internal/model"
)

func (r *messageLogRepository) Create(ctx context.Context, log *model.MessageLog) error {
	query := `
		INSERT INTO message_logs (
			id, appointment_id, kind, phone, accepted, gateway_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	log.ID = uuid.New()
	log.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.AppointmentID,
		log.Kind,
		log.Phone,
		log.Accepted,
		log.GatewayID,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message log: %w", err)
	}
	return nil
}

func (r *messageLogRepository) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.MessageLog, error) {
	query := `
		SELECT id, appointment_id, kind, phone, accepted, gateway_id, created_at
		FROM message_logs
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`
	var logs []*model.MessageLog
	err := r.db.SelectContext(ctx, &logs, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list message logs: %w", err)
	}
	return logs, nil
}
