package reply

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

var testMetrics = metrics.New("reply_test")

type fakePatientRepo struct {
	mu          sync.Mutex
	byPhone     map[string]*model.Patient
	phoneLookups int
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{byPhone: make(map[string]*model.Patient)}
}

func (f *fakePatientRepo) add(p *model.Patient) { f.byPhone[p.Phone] = p }

func (f *fakePatientRepo) Create(context.Context, *model.Patient) error { return nil }

func (f *fakePatientRepo) Get(context.Context, uuid.UUID) (*model.Patient, error) {
	return nil, repository.ErrNotFound
}

func (f *fakePatientRepo) GetByPhone(_ context.Context, phone string) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phoneLookups++
	p, ok := f.byPhone[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePatientRepo) List(context.Context) ([]*model.Patient, error) { return nil, nil }
func (f *fakePatientRepo) Update(context.Context, *model.Patient) error   { return nil }
func (f *fakePatientRepo) Deactivate(context.Context, uuid.UUID) error    { return nil }

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) add(a *model.Appointment) { f.appointments[a.ID] = a }

func (f *fakeAppointmentRepo) get(id uuid.UUID) model.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.appointments[id]
}

func (f *fakeAppointmentRepo) Create(context.Context, *model.Appointment) error { return nil }

func (f *fakeAppointmentRepo) Get(context.Context, uuid.UUID) (*model.Appointment, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeAppointmentRepo) List(context.Context, *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ListDueFirstReminder(context.Context, time.Time, time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ListDueSecondReminder(context.Context, time.Time, time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) AdvanceReminders(context.Context, uuid.UUID, int, int) (bool, error) {
	return false, nil
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
	return &messenger.Receipt{ID: uuid.NewString(), Accepted: true, Timestamp: time.Now()}, nil
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

func fixtures(t *testing.T) (*fakePatientRepo, *fakeAppointmentRepo, *recordingMessenger, *Handler, *model.Appointment) {
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
		ScheduledAt: time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC),
		Status:      model.AppointmentStatusScheduled,
	}
	apts.add(apt)

	msgr := &recordingMessenger{}
	h := NewHandler(pats, apts, nil, msgr, logger.NewLogger(nil), testMetrics)
	return pats, apts, msgr, h, apt
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"SIM", IntentConfirm},
		{"sim", IntentConfirm},
		{"  Sim, estarei lá  ", IntentConfirm},
		{"s", IntentConfirm},
		{"S", IntentConfirm},
		{"CANCELAR", IntentCancel},
		{"quero cancelar", IntentCancel},
		{"não", IntentCancel},
		{"nao posso ir", IntentCancel},
		{"oi", IntentNone},
		{"", IntentNone},
		{"talvez", IntentNone},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestHandleConfirm(t *testing.T) {
	_, apts, msgr, h, apt := fixtures(t)

	err := h.Handle(context.Background(), "11999998888", "SIM")
	require.NoError(t, err)

	assert.True(t, apts.get(apt.ID).Confirmed)
	require.Len(t, msgr.calls(), 1)
	assert.Equal(t, "5511999998888", msgr.calls()[0].Phone)
	assert.Contains(t, msgr.calls()[0].Text, "confirmada")
}

func TestHandleCancel(t *testing.T) {
	_, apts, msgr, h, apt := fixtures(t)

	err := h.Handle(context.Background(), "5511999998888", "cancelar")
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCancelled, apts.get(apt.ID).Status)
	require.Len(t, msgr.calls(), 1)
	assert.Contains(t, msgr.calls()[0].Text, "desmarcada")
}

func TestHandleUnmatchedTextIsNoOp(t *testing.T) {
	_, apts, msgr, h, apt := fixtures(t)

	err := h.Handle(context.Background(), "5511999998888", "oi")
	require.NoError(t, err)

	assert.False(t, apts.get(apt.ID).Confirmed)
	assert.Equal(t, model.AppointmentStatusScheduled, apts.get(apt.ID).Status)
	assert.Empty(t, msgr.calls())
}

func TestHandleUnknownSenderIsNoOp(t *testing.T) {
	_, _, msgr, h, _ := fixtures(t)

	err := h.Handle(context.Background(), "5511888887777", "SIM")
	require.NoError(t, err)
	assert.Empty(t, msgr.calls())
}

func TestHandleUnparseablePhoneIsNoOp(t *testing.T) {
	_, _, msgr, h, _ := fixtures(t)

	err := h.Handle(context.Background(), "garbage", "SIM")
	require.NoError(t, err)
	assert.Empty(t, msgr.calls())
}

func TestHandleNoPendingAppointmentIsNoOp(t *testing.T) {
	_, apts, msgr, h, apt := fixtures(t)
	apts.appointments[apt.ID].Confirmed = true

	err := h.Handle(context.Background(), "5511999998888", "SIM")
	require.NoError(t, err)
	assert.Empty(t, msgr.calls())
}

func TestHandleAffectsOnlyEarliestPending(t *testing.T) {
	_, apts, msgr, h, apt := fixtures(t)

	later := &model.Appointment{
		Base:        model.Base{ID: uuid.New()},
		PatientID:   apt.PatientID,
		Dentist:     "Dr. Souza",
		ScheduledAt: apt.ScheduledAt.Add(7 * 24 * time.Hour),
		Status:      model.AppointmentStatusScheduled,
	}
	apts.add(later)

	err := h.Handle(context.Background(), "5511999998888", "cancelar")
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCancelled, apts.get(apt.ID).Status)
	assert.Equal(t, model.AppointmentStatusScheduled, apts.get(later.ID).Status)
	assert.Len(t, msgr.calls(), 1)
}

func TestHandleCachesPatientLookups(t *testing.T) {
	pats, apts, _, h, apt := fixtures(t)

	require.NoError(t, h.Handle(context.Background(), "5511999998888", "SIM"))

	// second pending appointment so the second reply has work to do
	apts.add(&model.Appointment{
		Base:        model.Base{ID: uuid.New()},
		PatientID:   apt.PatientID,
		Dentist:     "Dr. Souza",
		ScheduledAt: apt.ScheduledAt.Add(24 * time.Hour),
		Status:      model.AppointmentStatusScheduled,
	})
	require.NoError(t, h.Handle(context.Background(), "5511999998888", "SIM"))

	assert.Equal(t, 1, pats.phoneLookups)
}
