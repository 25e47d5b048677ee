// Package reply maps inbound WhatsApp messages to appointment state
// transitions. There is no user-facing error channel: malformed phones,
// unknown senders and texts without a matching appointment are all silent
// no-ops.
package reply

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dentalert/dentalert-api/internal/messenger"
	"github.com/dentalert/dentalert-api/internal/model"
	"github.com/dentalert/dentalert-api/internal/repository"
	"github.com/dentalert/dentalert-api/internal/template"
	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/metrics"
	"github.com/dentalert/dentalert-api/pkg/phone"
)

const (
	patientCacheTTL     = 5 * time.Minute
	patientCacheCleanup = 10 * time.Minute
)

type Handler struct {
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
	messageLogs  repository.MessageLogRepository
	messenger    messenger.Messenger
	patientCache *cache.Cache
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewHandler(
	patients repository.PatientRepository,
	appointments repository.AppointmentRepository,
	messageLogs repository.MessageLogRepository,
	msgr messenger.Messenger,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		patients:     patients,
		appointments: appointments,
		messageLogs:  messageLogs,
		messenger:    msgr,
		patientCache: cache.New(patientCacheTTL, patientCacheCleanup),
		logger:       logger,
		metrics:      m,
	}
}

// Handle processes one inbound (senderPhone, text) pair. The returned
// error covers store failures only; every "nothing to do" path returns nil.
func (h *Handler) Handle(ctx context.Context, senderPhone, text string) error {
	intent := Classify(text)
	h.metrics.RepliesProcessed.WithLabelValues(string(intent)).Inc()
	if intent == IntentNone {
		return nil
	}

	normalized, err := phone.Normalize(senderPhone)
	if err != nil {
		h.logger.Debug("ignoring reply from unparseable phone", "phone", senderPhone)
		return nil
	}

	patient, err := h.lookupPatient(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	// only the single earliest unconfirmed scheduled appointment is
	// affected, even when the patient has several pending
	apt, err := h.appointments.NextPending(ctx, patient.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	switch intent {
	case IntentConfirm:
		return h.confirm(ctx, patient, apt)
	case IntentCancel:
		return h.cancel(ctx, patient, apt)
	}
	return nil
}

func (h *Handler) confirm(ctx context.Context, patient *model.Patient, apt *model.Appointment) error {
	claimed, err := h.appointments.Confirm(ctx, apt.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	h.logger.Info("appointment confirmed by reply",
		"appointment_id", apt.ID.String(), "patient_id", patient.ID.String())
	h.sendAck(ctx, patient, apt, model.MessageKindConfirmation)
	return nil
}

func (h *Handler) cancel(ctx context.Context, patient *model.Patient, apt *model.Appointment) error {
	claimed, err := h.appointments.Cancel(ctx, apt.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	h.logger.Info("appointment cancelled by reply",
		"appointment_id", apt.ID.String(), "patient_id", patient.ID.String())
	h.sendAck(ctx, patient, apt, model.MessageKindCancellation)
	return nil
}

// sendAck delivers the acknowledgement message; failures are log-only,
// the state transition has already been committed.
func (h *Handler) sendAck(ctx context.Context, patient *model.Patient, apt *model.Appointment, kind model.MessageKind) {
	date := apt.ScheduledAt.Format("02/01/2006")
	timeOfDay := apt.ScheduledAt.Format("15:04")

	var text string
	if kind == model.MessageKindConfirmation {
		text = template.Confirmation(patient.Name, date, timeOfDay, apt.Dentist)
	} else {
		text = template.Cancellation(patient.Name, date, timeOfDay, apt.Dentist)
	}

	receipt, err := h.messenger.Send(ctx, patient.Phone, text)
	accepted := err == nil && receipt.Accepted
	if !accepted {
		h.logger.Error(err, "failed to send reply acknowledgement",
			"appointment_id", apt.ID.String(), "kind", string(kind))
	}

	if h.messageLogs != nil {
		gatewayID := ""
		if receipt != nil {
			gatewayID = receipt.ID
		}
		if err := h.messageLogs.Create(ctx, &model.MessageLog{
			AppointmentID: apt.ID,
			Kind:          kind,
			Phone:         patient.Phone,
			Accepted:      accepted,
			GatewayID:     gatewayID,
		}); err != nil {
			h.logger.Error(err, "failed to write message log",
				"appointment_id", apt.ID.String())
		}
	}
}

func (h *Handler) lookupPatient(ctx context.Context, normalized string) (*model.Patient, error) {
	if cached, found := h.patientCache.Get(normalized); found {
		return cached.(*model.Patient), nil
	}

	patient, err := h.patients.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, err
	}

	h.patientCache.Set(normalized, patient, cache.DefaultExpiration)
	return patient, nil
}
