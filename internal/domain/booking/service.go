package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"bookingflow/internal/clock"
	"bookingflow/internal/domain/appointment"
	"bookingflow/internal/events"
	"bookingflow/internal/pkg/validator"
)

const (
	stepLoad        = "load"
	stepReference   = "reference"
	stepCommit      = "commit"
	stepAppointment = "appointment"
	stepConfirm     = "confirm"
	stepCascade     = "cascade"
	stepDelete      = "delete"
	stepSweep       = "sweep"

	confirmAttempts = 3
)

// RetryPolicy bounds appointment creation retries during Approve.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second}
}

type Deps struct {
	Store        Store
	Sagas        SagaLog
	References   *ReferenceGenerator
	Appointments Appointments
	Catalog      ProductCatalog
	Events       events.Publisher
	Clock        clock.Clock
	Logger       *slog.Logger
	Retry        RetryPolicy
}

// Service is the transition orchestrator. Each operation runs as a saga recorded under
// bookingId:operation so a retried call resumes instead of re-applying finished steps.
type Service struct {
	store        Store
	sagas        SagaLog
	refs         *ReferenceGenerator
	appointments Appointments
	catalog      ProductCatalog
	events       events.Publisher
	clock        clock.Clock
	logger       *slog.Logger
	retry        RetryPolicy
	cancellation *CancellationWorkflow
}

func NewService(d Deps) *Service {
	if d.References == nil {
		d.References = NewReferenceGenerator(d.Store.ReferenceExists, DefaultReferenceAttempts)
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Retry.Attempts <= 0 {
		d.Retry.Attempts = DefaultRetryPolicy().Attempts
	}
	if d.Retry.Initial <= 0 {
		d.Retry.Initial = DefaultRetryPolicy().Initial
	}
	if d.Retry.Max < d.Retry.Initial {
		d.Retry.Max = d.Retry.Initial
	}
	return &Service{
		store:        d.Store,
		sagas:        d.Sagas,
		refs:         d.References,
		appointments: d.Appointments,
		catalog:      d.Catalog,
		events:       d.Events,
		clock:        d.Clock,
		logger:       d.Logger,
		retry:        d.Retry,
		cancellation: NewCancellationWorkflow(d.Store),
	}
}

func (s *Service) Cancellations() *CancellationWorkflow {
	return s.cancellation
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// saga wraps the log calls of one operation run. Failures of the log itself are reported
// but never fail the operation once it has started.
type saga struct {
	s         *Service
	bookingID string
	operation string
	logger    *slog.Logger
}

func (s *Service) beginSaga(ctx context.Context, bookingID, operation string) (*saga, error) {
	rec, err := s.sagas.Begin(ctx, bookingID, operation)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(
		slog.String("booking_id", bookingID),
		slog.String("operation", operation),
	)
	if rec.Attempts > 1 {
		logger.InfoContext(ctx, "saga resumed",
			slog.Int("attempt", rec.Attempts),
			slog.String("last_step", rec.Step),
			slog.String("last_status", string(rec.Status)),
		)
	}
	return &saga{s: s, bookingID: bookingID, operation: operation, logger: logger}, nil
}

func (g *saga) step(ctx context.Context, step string) {
	if err := g.s.sagas.Step(ctx, g.bookingID, g.operation, step); err != nil {
		g.logger.WarnContext(ctx, "saga step not recorded", slog.String("step", step), slog.Any("error", err))
	}
}

func (g *saga) fail(ctx context.Context, step string, cause error) {
	g.logger.ErrorContext(ctx, "saga step failed", slog.String("step", step), slog.Any("error", cause))
	if err := g.s.sagas.Fail(ctx, g.bookingID, g.operation, step, cause); err != nil {
		g.logger.WarnContext(ctx, "saga failure not recorded", slog.String("step", step), slog.Any("error", err))
	}
}

func (g *saga) complete(ctx context.Context) {
	if err := g.s.sagas.Complete(ctx, g.bookingID, g.operation); err != nil {
		g.logger.WarnContext(ctx, "saga completion not recorded", slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, t events.Type, b *Booking, appointmentID string) {
	e := events.Event{
		Type:            t,
		BookingID:       b.ID,
		Stage:           string(b.Stage),
		ReferenceNumber: b.Reference(),
		ClientEmail:     b.ClientEmail,
		AppointmentID:   appointmentID,
		Version:         b.Version,
		OccurredAt:      s.now(),
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", string(t)),
			slog.String("booking_id", b.ID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Booking, error) {
	return s.store.List(ctx, f)
}

func (s *Service) Sagas(ctx context.Context, bookingID string) ([]Saga, error) {
	if _, err := s.store.Get(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.sagas.ListForBooking(ctx, bookingID)
}

// Submit creates a Pending booking.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Booking, error) {
	in.normalize()
	if fields := validator.Validate(in); fields != nil {
		return nil, newValidationError(fields)
	}
	if err := s.checkProducts(ctx, in.Products); err != nil {
		return nil, err
	}

	b := in.toBooking()
	b.CreatedAt = s.now()
	id, err := s.store.Insert(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	run, err := s.beginSaga(ctx, id, OpSubmit)
	if err != nil {
		s.logger.WarnContext(ctx, "saga not recorded", slog.String("booking_id", id), slog.Any("error", err))
	} else {
		run.complete(ctx)
	}

	s.logger.InfoContext(ctx, "booking submitted",
		slog.String("booking_id", id),
		slog.String("event_date", b.EventDate),
		slog.String("branch", b.BranchLocation),
	)
	s.publish(ctx, events.BookingSubmitted, b, "")
	return b, nil
}

func (s *Service) checkProducts(ctx context.Context, products []SelectedProduct) error {
	if len(products) == 0 || s.catalog == nil {
		return nil
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ProductID)
	}
	unavailable, err := s.catalog.UnavailableProducts(ctx, ids)
	if err != nil {
		return fmt.Errorf("check product availability: %w", err)
	}
	if len(unavailable) > 0 {
		return &ValidationError{
			Message: "products unavailable: " + strings.Join(unavailable, ", "),
			Fields:  map[string]string{"products": "unavailable"},
		}
	}
	return nil
}

// Approve moves a Pending booking to Approved and materializes its appointment.
//
// Calling it again on an Approved booking whose appointment step never finished resumes
// at that step with the reference number and approval details already stored; details
// passed on such a call are ignored. Calling it on a fully approved booking returns the
// existing state.
func (s *Service) Approve(ctx context.Context, id string, details ApprovalDetails) (*Transition, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch b.Stage {
	case StagePending:
	case StageApproved:
		if b.AppointmentPending {
			run, err := s.beginSaga(ctx, id, OpApprove)
			if err != nil {
				return nil, err
			}
			return s.materialize(ctx, run, b)
		}
		appt, err := s.appointments.GetByBookingID(ctx, id)
		if err != nil && !errors.Is(err, appointment.ErrNotFound) {
			return nil, err
		}
		return &Transition{Booking: b, Appointment: appt}, nil
	default:
		return nil, fmt.Errorf("%w: cannot approve a %s booking", ErrInvalidStageTransition, b.Stage)
	}

	details.Date = strings.TrimSpace(details.Date)
	details.MeetingLocation = strings.TrimSpace(details.MeetingLocation)
	details.Description = strings.TrimSpace(details.Description)
	if fields := validator.Validate(details); fields != nil {
		return nil, newValidationError(fields)
	}

	run, err := s.beginSaga(ctx, id, OpApprove)
	if err != nil {
		return nil, err
	}
	run.step(ctx, stepLoad)

	approved, err := s.commitApproval(ctx, run, b, details)
	if err != nil {
		run.fail(ctx, stepCommit, err)
		return nil, err
	}
	return s.materialize(ctx, run, approved)
}

// commitApproval issues a reference number and writes the Approved stage in one CAS update.
// A reference taken by a concurrent approval between check and write is regenerated.
func (s *Service) commitApproval(ctx context.Context, run *saga, b *Booking, details ApprovalDetails) (*Booking, error) {
	approvedAt := s.now()
	for attempt := 1; ; attempt++ {
		run.step(ctx, stepReference)
		ref, err := s.refs.Generate(ctx, referenceDate(b.EventDate, approvedAt))
		if err != nil {
			return nil, err
		}

		run.step(ctx, stepCommit)
		d := details
		updated, err := s.store.Update(ctx, b.ID, b.Version, func(next *Booking) error {
			next.Stage = StageApproved
			next.ReferenceNumber = &ref
			next.ApprovedAt = &approvedAt
			next.Approval = &d
			next.AppointmentPending = true
			return nil
		})
		if errors.Is(err, ErrReferenceCollision) {
			if attempt >= s.refs.maxAttempts {
				return nil, ErrReferenceGenerationExhausted
			}
			run.logger.WarnContext(ctx, "reference collided on write", slog.String("reference", ref))
			continue
		}
		if err != nil {
			return nil, err
		}

		run.logger.InfoContext(ctx, "booking approved", slog.String("reference", ref))
		return updated, nil
	}
}

// materialize runs the appointment steps of Approve against a booking already committed as
// Approved with AppointmentPending set.
func (s *Service) materialize(ctx context.Context, run *saga, b *Booking) (*Transition, error) {
	run.step(ctx, stepAppointment)
	appt, err := s.createAppointment(ctx, run, b)
	if err != nil {
		run.fail(ctx, stepAppointment, err)
		s.publish(ctx, events.BookingApprovalIncomplete, b, "")
		return nil, &PartialTransitionError{BookingID: b.ID, Operation: OpApprove, Step: stepAppointment, Err: err}
	}

	run.step(ctx, stepConfirm)
	confirmed, err := s.confirmAppointment(ctx, b.ID)
	if errors.Is(err, ErrNotFound) {
		// deleted while the appointment was being created
		if _, derr := s.appointments.DeleteByBookingID(ctx, b.ID); derr != nil {
			run.fail(ctx, stepConfirm, derr)
			return nil, &CascadeError{BookingID: b.ID, Err: derr}
		}
		run.fail(ctx, stepConfirm, err)
		return nil, err
	}
	if err != nil {
		run.fail(ctx, stepConfirm, err)
		return nil, &PartialTransitionError{BookingID: b.ID, Operation: OpApprove, Step: stepConfirm, Err: err}
	}

	run.complete(ctx)
	run.logger.InfoContext(ctx, "appointment materialized", slog.String("appointment_id", appt.ID))
	s.publish(ctx, events.BookingApproved, confirmed, appt.ID)
	return &Transition{Booking: confirmed, Appointment: appt}, nil
}

func (s *Service) createAppointment(ctx context.Context, run *saga, b *Booking) (*appointment.Appointment, error) {
	in := appointment.CreateInput{
		BookingID:      b.ID,
		ClientEmail:    b.ClientEmail,
		ClientName:     b.ClientName,
		BranchLocation: b.BranchLocation,
	}
	if b.Approval != nil {
		in.Date = b.Approval.Date
		in.MeetingLocation = b.Approval.MeetingLocation
		in.Description = b.Approval.Description
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.Initial
	bo.MaxInterval = s.retry.Max

	attempt := 0
	return backoff.Retry(ctx, func() (*appointment.Appointment, error) {
		attempt++
		a, err := s.appointments.Create(ctx, in)
		if err == nil {
			return a, nil
		}
		if errors.Is(err, appointment.ErrValidation) {
			return nil, backoff.Permanent(err)
		}
		run.logger.WarnContext(ctx, "appointment create failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		return nil, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(s.retry.Attempts)))
}

// confirmAppointment clears AppointmentPending. It re-reads on version conflicts since the
// flag may have been cleared by a concurrent resume or the booking edited meanwhile.
func (s *Service) confirmAppointment(ctx context.Context, id string) (*Booking, error) {
	var lastErr error
	for i := 0; i < confirmAttempts; i++ {
		b, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !b.AppointmentPending {
			return b, nil
		}

		updated, err := s.store.Update(ctx, id, b.Version, func(next *Booking) error {
			next.AppointmentPending = false
			return nil
		})
		if errors.Is(err, ErrConcurrentModification) {
			lastErr = err
			continue
		}
		return updated, err
	}
	return nil, lastErr
}

// Finish moves an Approved booking to Finished. The appointment is left as is.
func (s *Service) Finish(ctx context.Context, id string) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case b.Stage == StageFinished:
		return b, nil
	case b.Stage != StageApproved:
		return nil, fmt.Errorf("%w: cannot finish a %s booking", ErrInvalidStageTransition, b.Stage)
	case b.HasPendingCancellation():
		return nil, ErrCancellationPending
	case b.AppointmentPending:
		return nil, fmt.Errorf("%w: appointment step of approval is incomplete", ErrInvalidStageTransition)
	}

	run, err := s.beginSaga(ctx, id, OpFinish)
	if err != nil {
		return nil, err
	}
	run.step(ctx, stepCommit)

	finishedAt := s.now()
	finished, err := s.store.Update(ctx, id, b.Version, func(next *Booking) error {
		next.Stage = StageFinished
		next.FinishedAt = &finishedAt
		return nil
	})
	if err != nil {
		run.fail(ctx, stepCommit, err)
		return nil, err
	}

	run.complete(ctx)
	run.logger.InfoContext(ctx, "booking finished")
	s.publish(ctx, events.BookingFinished, finished, "")
	return finished, nil
}

// Delete removes a booking and every appointment referencing it. A non-empty scope limits
// the delete to bookings in that stage; others are reported as not found. A CascadeError
// leaves the booking deleted with its appointments still stored; calling Delete again
// finishes the sweep.
func (s *Service) Delete(ctx context.Context, id string, scope Stage) error {
	b, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.resumeDelete(ctx, id)
	}
	if err != nil {
		return err
	}
	if scope != "" && b.Stage != scope {
		return ErrNotFound
	}

	run, err := s.beginSaga(ctx, id, OpDelete)
	if err != nil {
		return err
	}

	run.step(ctx, stepDelete)
	if err := s.store.Delete(ctx, id, b.Version); err != nil {
		run.fail(ctx, stepDelete, err)
		return err
	}

	// booking first: a lost CAS must leave the appointment untouched. An approval still
	// creating one finds the booking gone at its confirm step and compensates.
	run.step(ctx, stepCascade)
	if _, err := s.appointments.DeleteByBookingID(ctx, id); err != nil {
		run.fail(ctx, stepCascade, err)
		return &CascadeError{BookingID: id, Err: err}
	}

	run.complete(ctx)
	run.logger.InfoContext(ctx, "booking deleted", slog.String("stage", string(b.Stage)))
	s.publish(ctx, events.BookingDeleted, b, "")
	return nil
}

// resumeDelete finishes the cascade of a delete whose booking write committed but whose
// appointment sweep did not.
func (s *Service) resumeDelete(ctx context.Context, id string) error {
	rec, err := s.sagas.Get(ctx, id, OpDelete)
	if err != nil || rec.Status == SagaCompleted {
		return ErrNotFound
	}

	run, err := s.beginSaga(ctx, id, OpDelete)
	if err != nil {
		return err
	}
	run.step(ctx, stepSweep)
	if _, err := s.appointments.DeleteByBookingID(ctx, id); err != nil {
		run.fail(ctx, stepSweep, err)
		return &CascadeError{BookingID: id, Err: err}
	}
	run.complete(ctx)
	return nil
}

// UpdateFields edits client, event and payment fields. A zero expectedVersion means the
// currently stored version. Finished and Cancelled bookings are locked.
func (s *Service) UpdateFields(ctx context.Context, id string, expectedVersion int64, patch UpdateInput) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Stage.Locked() {
		return nil, fmt.Errorf("%w: %s bookings cannot be edited", ErrBookingLocked, b.Stage)
	}
	if patch.Products != nil {
		if err := s.checkProducts(ctx, *patch.Products); err != nil {
			return nil, err
		}
	}
	if expectedVersion == 0 {
		expectedVersion = b.Version
	}

	run, err := s.beginSaga(ctx, id, OpUpdate)
	if err != nil {
		return nil, err
	}
	run.step(ctx, stepCommit)

	updated, err := s.store.Update(ctx, id, expectedVersion, func(next *Booking) error {
		if next.Stage.Locked() {
			return ErrBookingLocked
		}
		patch.apply(next)
		return validateFields(next)
	})
	if err != nil {
		run.fail(ctx, stepCommit, err)
		return nil, err
	}

	run.complete(ctx)
	s.publish(ctx, events.BookingUpdated, updated, "")
	return updated, nil
}

func validateFields(b *Booking) error {
	fields := map[string]string{}
	for name, v := range map[string]string{
		"clientName":     b.ClientName,
		"eventType":      b.EventType,
		"eventDate":      b.EventDate,
		"venue":          b.Venue,
		"branchLocation": b.BranchLocation,
	} {
		if v == "" {
			fields[name] = "required"
		}
	}
	if _, ok := fields["eventDate"]; !ok && !validator.Var(b.EventDate, "datetime=2006-01-02") {
		fields["eventDate"] = "datetime"
	}
	if b.ClientEmail != "" && !validator.Var(b.ClientEmail, "email") {
		fields["clientEmail"] = "email"
	}
	if len(fields) > 0 {
		return newValidationError(fields)
	}
	return nil
}

func (s *Service) RequestCancellation(ctx context.Context, id, reason, description string) (*Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, requiredField("reason")
	}

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkCancellationRequest(b); err != nil {
		return nil, err
	}

	run, err := s.beginSaga(ctx, id, OpRequestCancellation)
	if err != nil {
		return nil, err
	}
	run.step(ctx, stepCommit)

	requestedAt := s.now()
	updated, err := s.store.Update(ctx, id, b.Version, func(next *Booking) error {
		return applyCancellationRequest(next, reason, strings.TrimSpace(description), requestedAt)
	})
	if err != nil {
		run.fail(ctx, stepCommit, err)
		return nil, err
	}

	run.complete(ctx)
	run.logger.InfoContext(ctx, "cancellation requested")
	s.publish(ctx, events.CancellationRequested, updated, "")
	return updated, nil
}

func (s *Service) ResolveCancellation(ctx context.Context, id string, decision Decision, adminEmail, adminNotes string) (*Booking, error) {
	adminEmail = strings.TrimSpace(adminEmail)
	adminNotes = strings.TrimSpace(adminNotes)
	if err := validateResolution(decision, adminNotes); err != nil {
		return nil, err
	}

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.HasPendingCancellation() {
		return nil, ErrNoPendingCancellation
	}

	run, err := s.beginSaga(ctx, id, OpResolveCancellation)
	if err != nil {
		return nil, err
	}
	run.step(ctx, stepCommit)

	resolvedAt := s.now()
	updated, err := s.store.Update(ctx, id, b.Version, func(next *Booking) error {
		return applyResolution(next, decision, adminEmail, adminNotes, resolvedAt)
	})
	if err != nil {
		run.fail(ctx, stepCommit, err)
		return nil, err
	}

	run.complete(ctx)
	run.logger.InfoContext(ctx, "cancellation resolved",
		slog.String("decision", string(decision)),
		slog.String("admin_email", adminEmail),
	)
	if decision == DecisionApprove {
		s.publish(ctx, events.CancellationApproved, updated, "")
	} else {
		s.publish(ctx, events.CancellationRejected, updated, "")
	}
	return updated, nil
}

// ResumePending retries the appointment step of every approval left incomplete.
func (s *Service) ResumePending(ctx context.Context) (ResumeReport, error) {
	var report ResumeReport

	stuck, err := s.store.ListAppointmentPending(ctx)
	if err != nil {
		return report, err
	}
	report.Scanned = len(stuck)

	for i := range stuck {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		b := &stuck[i]
		run, err := s.beginSaga(ctx, b.ID, OpApprove)
		if err != nil {
			report.Failed++
			continue
		}
		if _, err := s.materialize(ctx, run, b); err != nil {
			report.Failed++
			continue
		}
		report.Resumed++
	}
	return report, nil
}

// CheckAppointmentEligible lets the appointment API accept only bookings that are Approved
// or Finished.
func (s *Service) CheckAppointmentEligible(ctx context.Context, bookingID string) error {
	b, err := s.store.Get(ctx, bookingID)
	if errors.Is(err, ErrNotFound) {
		return appointment.ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	if b.Stage != StageApproved && b.Stage != StageFinished {
		return appointment.ErrBookingNotEligible
	}
	return nil
}
