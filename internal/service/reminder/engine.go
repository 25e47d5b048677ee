package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dentalert/dentalert-api/internal/email"
	"github.com/dentalert/dentalert-api/internal/messenger"
	"github.com/dentalert/dentalert-api/internal/model"
	"github.com/dentalert/dentalert-api/internal/repository"
	"github.com/dentalert/dentalert-api/internal/template"
	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/messaging"
	"github.com/dentalert/dentalert-api/pkg/metrics"
)

// Config holds the engine's tunables. The window boundaries are durations
// before the scheduled time; each window is half-open:
// [scheduled - WindowStart, scheduled - WindowEnd).
type Config struct {
	FirstWindowStart  time.Duration
	FirstWindowEnd    time.Duration
	SecondWindowStart time.Duration
	SecondWindowEnd   time.Duration

	// MaxConcurrentSends bounds the per-cycle send fan-out.
	MaxConcurrentSends int
}

// DefaultConfig mirrors the classic 24h/23h and 2h/1h reminder windows.
func DefaultConfig() Config {
	return Config{
		FirstWindowStart:   24 * time.Hour,
		FirstWindowEnd:     23 * time.Hour,
		SecondWindowStart:  2 * time.Hour,
		SecondWindowEnd:    1 * time.Hour,
		MaxConcurrentSends: 8,
	}
}

// CycleStats reports what one cycle did, per reminder kind.
type CycleStats struct {
	FirstSent  int
	SecondSent int
	Failures   int
	Skipped    int
}

// Engine is the single source of truth for "is a reminder due now". It
// claims each (appointment, kind) pair through a conditional counter
// advance before sending, so a reminder goes out at most once even under
// overlapping cycles.
type Engine struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	messageLogs  repository.MessageLogRepository
	messenger    messenger.Messenger
	email        email.Service
	broker       messaging.Broker
	cfg          Config
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewEngine(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	messageLogs repository.MessageLogRepository,
	msgr messenger.Messenger,
	emailSvc email.Service,
	broker messaging.Broker,
	cfg Config,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Engine {
	if cfg.MaxConcurrentSends <= 0 {
		cfg.MaxConcurrentSends = 1
	}
	if emailSvc == nil {
		emailSvc = email.NopService{}
	}

	return &Engine{
		appointments: appointments,
		patients:     patients,
		messageLogs:  messageLogs,
		messenger:    msgr,
		email:        emailSvc,
		broker:       broker,
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
	}
}

// RunCycle evaluates both reminder windows at the injected instant and
// sends what is due. Individual failures are logged and counted, never
// returned: one bad appointment must not block the rest of the batch. The
// returned error covers only candidate selection.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (CycleStats, error) {
	timer := time.Now()
	defer func() {
		e.metrics.CycleDuration.Observe(time.Since(timer).Seconds())
	}()

	var stats cycleCounters

	// now in [sched-24h, sched-23h) is sched in (now+23h, now+24h]
	first, err := e.appointments.ListDueFirstReminder(ctx,
		now.Add(e.cfg.FirstWindowEnd), now.Add(e.cfg.FirstWindowStart))
	if err != nil {
		e.metrics.DatabaseOperations.WithLabelValues("list_due_first", "error").Inc()
		return stats.snapshot(), err
	}
	e.metrics.DatabaseOperations.WithLabelValues("list_due_first", "success").Inc()
	e.metrics.CycleCandidates.WithLabelValues(string(model.MessageKindFirstReminder)).Set(float64(len(first)))

	second, err := e.appointments.ListDueSecondReminder(ctx,
		now.Add(e.cfg.SecondWindowEnd), now.Add(e.cfg.SecondWindowStart))
	if err != nil {
		e.metrics.DatabaseOperations.WithLabelValues("list_due_second", "error").Inc()
		return stats.snapshot(), err
	}
	e.metrics.DatabaseOperations.WithLabelValues("list_due_second", "success").Inc()
	e.metrics.CycleCandidates.WithLabelValues(string(model.MessageKindSecondReminder)).Set(float64(len(second)))

	sem := make(chan struct{}, e.cfg.MaxConcurrentSends)
	var wg sync.WaitGroup

	dispatch := func(apt *model.Appointment, kind model.MessageKind, fromCount, toCount int) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.process(ctx, apt, kind, fromCount, toCount, &stats)
		}()
	}

	for _, apt := range first {
		dispatch(apt, model.MessageKindFirstReminder, model.RemindersNone, model.RemindersFirst)
	}
	for _, apt := range second {
		dispatch(apt, model.MessageKindSecondReminder, model.RemindersFirst, model.RemindersSecond)
	}

	wg.Wait()
	return stats.snapshot(), nil
}

// process handles one candidate: resolve patient, claim the counter
// transition, render and send. Advancing the counter before the send is
// what makes repeated and overlapping cycles at-most-once; a failed send
// intentionally does not roll the counter back (no retry storms against a
// possibly-unreachable number).
func (e *Engine) process(ctx context.Context, apt *model.Appointment, kind model.MessageKind, fromCount, toCount int, stats *cycleCounters) {
	patient, err := e.patients.Get(ctx, apt.PatientID)
	if err != nil {
		stats.skipped.Add(1)
		e.logger.Error(err, "skipping reminder, patient lookup failed",
			"appointment_id", apt.ID.String())
		return
	}
	if patient.Status != model.PatientStatusActive {
		stats.skipped.Add(1)
		return
	}

	claimed, err := e.appointments.AdvanceReminders(ctx, apt.ID, fromCount, toCount)
	if err != nil {
		// nothing was advanced, the candidate stays eligible next cycle
		stats.skipped.Add(1)
		e.logger.Error(err, "failed to claim reminder",
			"appointment_id", apt.ID.String(), "kind", string(kind))
		return
	}
	if !claimed {
		// another cycle got here first
		stats.skipped.Add(1)
		return
	}

	text := e.render(kind, patient, apt)
	receipt, err := e.messenger.Send(ctx, patient.Phone, text)
	accepted := err == nil && receipt.Accepted

	gatewayID := ""
	if receipt != nil {
		gatewayID = receipt.ID
	}
	e.recordSend(ctx, apt, kind, patient.Phone, accepted, gatewayID)

	if !accepted {
		stats.failures.Add(1)
		e.metrics.ReminderFailures.WithLabelValues(string(kind)).Inc()
		e.logger.Error(err, "reminder send failed",
			"appointment_id", apt.ID.String(), "kind", string(kind), "phone", patient.Phone)
		return
	}

	switch kind {
	case model.MessageKindFirstReminder:
		stats.firstSent.Add(1)
	case model.MessageKindSecondReminder:
		stats.secondSent.Add(1)
	}
	e.metrics.RemindersSent.WithLabelValues(string(kind)).Inc()

	if kind == model.MessageKindFirstReminder && patient.Email != nil && *patient.Email != "" {
		if err := e.email.SendReminderCopy(ctx, *patient.Email, "Lembrete de consulta", text); err != nil {
			e.logger.Warn("failed to send reminder email copy",
				"appointment_id", apt.ID.String(), "error", err.Error())
		}
	}
}

func (e *Engine) render(kind model.MessageKind, patient *model.Patient, apt *model.Appointment) string {
	date := apt.ScheduledAt.Format("02/01/2006")
	timeOfDay := apt.ScheduledAt.Format("15:04")

	switch kind {
	case model.MessageKindSecondReminder:
		return template.SecondReminder(patient.Name, date, timeOfDay, apt.Dentist)
	default:
		return template.FirstReminder(patient.Name, date, timeOfDay, apt.Dentist)
	}
}

// recordSend persists the audit row and publishes the cycle event; both
// are best-effort.
func (e *Engine) recordSend(ctx context.Context, apt *model.Appointment, kind model.MessageKind, phone string, accepted bool, gatewayID string) {
	if e.messageLogs != nil {
		if err := e.messageLogs.Create(ctx, &model.MessageLog{
			AppointmentID: apt.ID,
			Kind:          kind,
			Phone:         phone,
			Accepted:      accepted,
			GatewayID:     gatewayID,
		}); err != nil {
			e.logger.Error(err, "failed to write message log",
				"appointment_id", apt.ID.String())
		}
	}

	if e.broker != nil {
		if err := e.broker.Publish(ctx, messaging.ChannelReminders, messaging.ReminderEvent{
			AppointmentID: apt.ID.String(),
			Kind:          string(kind),
			Phone:         phone,
			Accepted:      accepted,
		}); err != nil {
			e.logger.Warn("failed to publish reminder event",
				"appointment_id", apt.ID.String(), "error", err.Error())
		}
	}
}

type cycleCounters struct {
	firstSent  atomic.Int64
	secondSent atomic.Int64
	failures   atomic.Int64
	skipped    atomic.Int64
}

func (c *cycleCounters) snapshot() CycleStats {
	return CycleStats{
		FirstSent:  int(c.firstSent.Load()),
		SecondSent: int(c.secondSent.Load()),
		Failures:   int(c.failures.Load()),
		Skipped:    int(c.skipped.Load()),
	}
}
