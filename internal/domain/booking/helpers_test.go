package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bookingflow/internal/clock"
	"bookingflow/internal/domain/appointment"
	"bookingflow/internal/domain/catalog"
	"bookingflow/internal/events"
	"bookingflow/internal/logging"
	"bookingflow/internal/testutil"
)

var errCalendarDown = errors.New("calendar unavailable")

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyAppointments fails the first createFailures Create calls and, when failDelete is set,
// every DeleteByBookingID call. beforeCreate runs once ahead of the next successful Create.
type flakyAppointments struct {
	Appointments

	mu             sync.Mutex
	createFailures int
	createCalls    int
	failDelete     bool
	beforeCreate   func(ctx context.Context, bookingID string)
}

func (f *flakyAppointments) Create(ctx context.Context, in appointment.CreateInput) (*appointment.Appointment, error) {
	f.mu.Lock()
	f.createCalls++
	fail := f.createFailures > 0
	if fail {
		f.createFailures--
	}
	hook := f.beforeCreate
	if !fail {
		f.beforeCreate = nil
	}
	f.mu.Unlock()

	if fail {
		return nil, errCalendarDown
	}
	if hook != nil {
		hook(ctx, in.BookingID)
	}
	return f.Appointments.Create(ctx, in)
}

func (f *flakyAppointments) DeleteByBookingID(ctx context.Context, bookingID string) (int64, error) {
	f.mu.Lock()
	fail := f.failDelete
	f.mu.Unlock()

	if fail {
		return 0, errCalendarDown
	}
	return f.Appointments.DeleteByBookingID(ctx, bookingID)
}

func (f *flakyAppointments) setCreateFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFailures = n
}

func (f *flakyAppointments) setFailDelete(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = v
}

func (f *flakyAppointments) onNextCreate(hook func(ctx context.Context, bookingID string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeCreate = hook
}

// racingStore runs beforeDelete once between the caller's read and its conditional delete.
type racingStore struct {
	Store

	mu           sync.Mutex
	beforeDelete func(ctx context.Context, id string)
}

func (r *racingStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	r.mu.Lock()
	hook := r.beforeDelete
	r.beforeDelete = nil
	r.mu.Unlock()

	if hook != nil {
		hook(ctx, id)
	}
	return r.Store.Delete(ctx, id, expectedVersion)
}

type testEnv struct {
	db           *gorm.DB
	store        *Repository
	sagas        *SagaRepository
	appointments *appointment.Service
	flaky        *flakyAppointments
	catalog      *catalog.Repository
	clock        *clock.Fixed
	events       *recordingPublisher
	svc          *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	models := append(Models(), &appointment.Appointment{}, &catalog.Product{})
	db := testutil.NewDB(t, models...)

	env := &testEnv{
		db:      db,
		store:   NewRepository(db),
		sagas:   NewSagaRepository(db),
		catalog: catalog.NewRepository(db),
		clock:   clock.NewFixed(time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)),
		events:  &recordingPublisher{},
	}
	env.appointments = appointment.NewService(appointment.NewRepository(db), env.events, logging.Discard())
	env.flaky = &flakyAppointments{Appointments: env.appointments}
	env.svc = env.serviceOver(env.store)
	return env
}

// serviceOver builds a service sharing the env's database but writing through store.
func (e *testEnv) serviceOver(store Store) *Service {
	return NewService(Deps{
		Store:        store,
		Sagas:        e.sagas,
		Appointments: e.flaky,
		Catalog:      e.catalog,
		Events:       e.events,
		Clock:        e.clock,
		Logger:       logging.Discard(),
		Retry:        RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond},
	})
}

func aliceSubmission() SubmitInput {
	return SubmitInput{
		ClientName:     "Alice",
		ClientEmail:    "alice@example.com",
		EventType:      "Wedding",
		EventDate:      "2025-12-05",
		BranchLocation: "Maddela, Quirino",
	}
}

func gardenHall() ApprovalDetails {
	return ApprovalDetails{Date: "2025-12-10", MeetingLocation: "Garden Hall", Description: "menu tasting"}
}

func (e *testEnv) submit(t *testing.T, in SubmitInput) *Booking {
	t.Helper()
	b, err := e.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	return b
}

func (e *testEnv) approved(t *testing.T) *Booking {
	t.Helper()
	b := e.submit(t, aliceSubmission())
	res, err := e.svc.Approve(context.Background(), b.ID, gardenHall())
	require.NoError(t, err)
	return res.Booking
}

func (e *testEnv) appointmentsFor(t *testing.T, bookingID string) []appointment.Appointment {
	t.Helper()
	items, err := e.appointments.List(context.Background(), appointment.ListFilter{BookingID: bookingID})
	require.NoError(t, err)
	return items
}
