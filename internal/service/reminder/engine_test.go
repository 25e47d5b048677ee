package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalert/dentalert-api/internal/messenger"
	"github.com/dentalert/dentalert-api/internal/model"
	"github.com/dentalert/dentalert-api/internal/repository"
	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/metrics"
)

// prometheus collectors register globally, so all tests share one bundle
var testMetrics = metrics.New("reminder_test")

type fakePatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*model.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[uuid.UUID]*model.Patient)}
}

func (f *fakePatientRepo) add(p *model.Patient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patients[p.ID] = p
}

func (f *fakePatientRepo) Create(_ context.Context, p *model.Patient) error {
	f.add(p)
	return nil
}

func (f *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePatientRepo) GetByPhone(_ context.Context, phone string) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patients {
		if p.Phone == phone {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePatientRepo) List(context.Context) ([]*model.Patient, error) { return nil, nil }
func (f *fakePatientRepo) Update(context.Context, *model.Patient) error   { return nil }
func (f *fakePatientRepo) Deactivate(context.Context, uuid.UUID) error    { return nil }

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	failAdvance  bool
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) add(a *model.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments[a.ID] = a
}

func (f *fakeAppointmentRepo) get(id uuid.UUID) model.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.appointments[id]
}

func (f *fakeAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	f.add(a)
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointmentRepo) List(context.Context, *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ListDueFirstReminder(_ context.Context, from, to time.Time) ([]*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*model.Appointment
	for _, a := range f.appointments {
		if a.Status == model.AppointmentStatusScheduled &&
			!a.Confirmed &&
			a.RemindersSent == model.RemindersNone &&
			a.ScheduledAt.After(from) && !a.ScheduledAt.After(to) {
			cp := *a
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (f *fakeAppointmentRepo) ListDueSecondReminder(_ context.Context, from, to time.Time) ([]*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*model.Appointment
	for _, a := range f.appointments {
		if a.Status == model.AppointmentStatusScheduled &&
			a.Confirmed &&
			a.RemindersSent == model.RemindersFirst &&
			a.ScheduledAt.After(from) && !a.ScheduledAt.After(to) {
			cp := *a
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (f *fakeAppointmentRepo) AdvanceReminders(_ context.Context, id uuid.UUID, from, to int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdvance {
		return false, errors.New("store unavailable")
	}
	a, ok := f.appointments[id]
	if !ok || a.RemindersSent != from || a.Status != model.AppointmentStatusScheduled {
		return false, nil
	}
	a.RemindersSent = to
	return true, nil
}

func (f *fakeAppointmentRepo) NextPending(_ context.Context, patientID uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next *model.Appointment
	for _, a := range f.appointments {
		if a.PatientID != patientID || a.Status != model.AppointmentStatusScheduled || a.Confirmed {
			continue
		}
		if next == nil || a.ScheduledAt.Before(next.ScheduledAt) {
			next = a
		}
	}
	if next == nil {
		return nil, repository.ErrNotFound
	}
	cp := *next
	return &cp, nil
}

func (f *fakeAppointmentRepo) Confirm(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Confirmed || a.Status != model.AppointmentStatusScheduled {
		return false, nil
	}
	a.Confirmed = true
	return true, nil
}

func (f *fakeAppointmentRepo) Cancel(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status != model.AppointmentStatusScheduled {
		return false, nil
	}
	a.Status = model.AppointmentStatusCancelled
	return true, nil
}

type sentMessage struct {
	Phone string
	Text  string
}

// recordingMessenger is the deterministic Messenger double required by the
// at-most-once properties: it records every send attempt it sees.
type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (f *recordingMessenger) Send(_ context.Context, phone, text string) (*messenger.Receipt, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{Phone: phone, Text: text})
	f.mu.Unlock()

	if f.fail {
		return nil, errors.New("gateway unreachable")
	}
	return &messenger.Receipt{
		ID:        uuid.NewString(),
		Accepted:  true,
		Timestamp: time.Now(),
	}, nil
}

func (f *recordingMessenger) ConnectionStatus() messenger.Status {
	return messenger.Status{Connected: true, State: messenger.StateConnected}
}

func (f *recordingMessenger) calls() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func newEngine(apts *fakeAppointmentRepo, pats *fakePatientRepo, msgr *recordingMessenger) *Engine {
	return NewEngine(apts, pats, nil, msgr, nil, nil, DefaultConfig(),
		logger.NewLogger(nil), testMetrics)
}

func fixtures(t *testing.T, scheduledAt time.Time) (*fakeAppointmentRepo, *fakePatientRepo, *model.Appointment) {
	t.Helper()

	pats := newFakePatientRepo()
	patient := &model.Patient{
		Base:   model.Base{ID: uuid.New()},
		Name:   "Maria",
		Phone:  "5511999998888",
		Status: model.PatientStatusActive,
	}
	pats.add(patient)

	apts := newFakeAppointmentRepo()
	apt := &model.Appointment{
		Base:        model.Base{ID: uuid.New()},
		PatientID:   patient.ID,
		Dentist:     "Dr. Souza",
		ScheduledAt: scheduledAt,
		Procedure:   "Limpeza",
		Status:      model.AppointmentStatusScheduled,
	}
	apts.add(apt)

	return apts, pats, apt
}

func TestRunCycleFirstReminder(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)
	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	now := scheduled.Add(-23*time.Hour - 30*time.Minute)
	stats, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FirstSent)
	assert.Equal(t, 0, stats.SecondSent)
	assert.Equal(t, model.RemindersFirst, apts.get(apt.ID).RemindersSent)

	require.Len(t, msgr.calls(), 1)
	assert.Equal(t, "5511999998888", msgr.calls()[0].Phone)
	assert.Contains(t, msgr.calls()[0].Text, "Maria")
	assert.Contains(t, msgr.calls()[0].Text, "15/03/2026")
	assert.Contains(t, msgr.calls()[0].Text, "14:30")
}

func TestRunCycleIsIdempotent(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, _ := fixtures(t, scheduled)
	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	now := scheduled.Add(-23*time.Hour - 30*time.Minute)

	stats, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FirstSent)

	// same instant again: the advanced counter removed the candidate
	stats, err = engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FirstSent)
	assert.Len(t, msgr.calls(), 1)
}

func TestRunCycleWindowBoundaries(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		wantSent int
	}{
		{name: "window opens at sched-24h", now: scheduled.Add(-24 * time.Hour), wantSent: 1},
		{name: "inside window", now: scheduled.Add(-23*time.Hour - 1*time.Minute), wantSent: 1},
		{name: "window closed at sched-23h", now: scheduled.Add(-23 * time.Hour), wantSent: 0},
		{name: "before window", now: scheduled.Add(-25 * time.Hour), wantSent: 0},
		{name: "long past", now: scheduled.Add(-10 * time.Minute), wantSent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apts, pats, _ := fixtures(t, scheduled)
			msgr := &recordingMessenger{}
			engine := newEngine(apts, pats, msgr)

			stats, err := engine.RunCycle(context.Background(), tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, stats.FirstSent)
		})
	}
}

func TestRunCycleSecondReminder(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)

	stored := apts.appointments[apt.ID]
	stored.Confirmed = true
	stored.RemindersSent = model.RemindersFirst

	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	// outside the window: nothing happens
	stats, err := engine.RunCycle(context.Background(), scheduled.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SecondSent)

	// inside [sched-2h, sched-1h)
	stats, err = engine.RunCycle(context.Background(), scheduled.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SecondSent)
	assert.Equal(t, model.RemindersSecond, apts.get(apt.ID).RemindersSent)

	require.Len(t, msgr.calls(), 1)
	assert.Contains(t, msgr.calls()[0].Text, "hoje")
}

func TestRunCycleSecondReminderRequiresConfirmation(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)

	// first reminder went out but the patient never confirmed
	apts.appointments[apt.ID].RemindersSent = model.RemindersFirst

	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	stats, err := engine.RunCycle(context.Background(), scheduled.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SecondSent)
	assert.Empty(t, msgr.calls())
}

func TestRunCycleSendFailureStillAdvancesCounter(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)
	msgr := &recordingMessenger{fail: true}
	engine := newEngine(apts, pats, msgr)

	now := scheduled.Add(-23*time.Hour - 30*time.Minute)
	stats, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.FirstSent)
	assert.Equal(t, 1, stats.Failures)
	// advance-regardless: no retry storm against a broken number
	assert.Equal(t, model.RemindersFirst, apts.get(apt.ID).RemindersSent)

	stats, err = engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Failures)
	assert.Len(t, msgr.calls(), 1)
}

func TestRunCycleStoreFailureLeavesCandidateEligible(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)
	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	now := scheduled.Add(-23*time.Hour - 30*time.Minute)

	apts.failAdvance = true
	stats, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, msgr.calls())
	assert.Equal(t, model.RemindersNone, apts.get(apt.ID).RemindersSent)

	// store recovers, candidate is picked up on the next cycle
	apts.failAdvance = false
	stats, err = engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FirstSent)
}

func TestRunCycleSkipsInactivePatients(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)

	stored := pats.patients[apts.get(apt.ID).PatientID]
	stored.Status = model.PatientStatusInactive

	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	stats, err := engine.RunCycle(context.Background(), scheduled.Add(-23*time.Hour-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, msgr.calls())
	assert.Equal(t, model.RemindersNone, apts.get(apt.ID).RemindersSent)
}

func TestOverlappingCyclesSendAtMostOnce(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)
	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	now := scheduled.Add(-23*time.Hour - 30*time.Minute)

	const cycles = 8
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RunCycle(context.Background(), now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, msgr.calls(), 1)
	assert.Equal(t, model.RemindersFirst, apts.get(apt.ID).RemindersSent)
}

func TestFullReminderScenario(t *testing.T) {
	// patient 11999998888, appointment at T
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)
	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)
	ctx := context.Background()

	// T-23h30m: 24h reminder fires once
	stats, err := engine.RunCycle(ctx, scheduled.Add(-23*time.Hour-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FirstSent)

	// same instant again: no second send
	stats, err = engine.RunCycle(ctx, scheduled.Add(-23*time.Hour-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FirstSent)

	// patient confirms
	claimed, err := apts.Confirm(ctx, apt.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// T-1h30m: 2h reminder fires once
	stats, err = engine.RunCycle(ctx, scheduled.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SecondSent)

	require.Len(t, msgr.calls(), 2)
	assert.Equal(t, model.RemindersSecond, apts.get(apt.ID).RemindersSent)
}

func TestCancelledAppointmentsGetNoReminders(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	apts, pats, apt := fixtures(t, scheduled)
	apts.appointments[apt.ID].Status = model.AppointmentStatusCancelled

	msgr := &recordingMessenger{}
	engine := newEngine(apts, pats, msgr)

	stats, err := engine.RunCycle(context.Background(), scheduled.Add(-23*time.Hour-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FirstSent)
	assert.Empty(t, msgr.calls())
}
