package appointment

import (
	"context"
	"errors"
	"log/slog"

	"bookingflow/internal/database"
	"bookingflow/internal/events"
	"bookingflow/internal/pkg/validator"
)

type Service struct {
	repo   *Repository
	events events.Publisher
	logger *slog.Logger
}

func NewService(repo *Repository, pub events.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, events: pub, logger: logger}
}

// Create materializes the appointment for a booking. At most one appointment exists per
// booking: a repeated call returns the stored one unchanged.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if fields := validator.Validate(in); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	existing, err := s.repo.GetByBookingID(ctx, in.BookingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	a := &Appointment{
		BookingID:       in.BookingID,
		ClientEmail:     in.ClientEmail,
		ClientName:      in.ClientName,
		Date:            in.Date,
		MeetingLocation: in.MeetingLocation,
		BranchLocation:  in.BranchLocation,
		Description:     in.Description,
		Status:          StatusUpcoming,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if database.IsUniqueViolation(err) {
			// lost a race with a concurrent create for the same booking
			return s.repo.GetByBookingID(ctx, in.BookingID)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "appointment created",
		slog.String("appointment_id", a.ID),
		slog.String("booking_id", a.BookingID),
		slog.String("date", a.Date),
	)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByBookingID(ctx context.Context, bookingID string) (*Appointment, error) {
	return s.repo.GetByBookingID(ctx, bookingID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, f)
}

// UpdateStatus changes only the appointment; the owning booking keeps its stage.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, events.Event{
		Type:          events.AppointmentStatusChanged,
		BookingID:     a.BookingID,
		AppointmentID: a.ID,
		Stage:         string(a.Status),
		ClientEmail:   a.ClientEmail,
		OccurredAt:    a.UpdatedAt,
	}); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("appointment_id", a.ID),
			slog.Any("error", err),
		)
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteByBookingID(ctx context.Context, bookingID string) (int64, error) {
	n, err := s.repo.DeleteByBookingID(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "appointments removed",
			slog.String("booking_id", bookingID),
			slog.Int64("count", n),
		)
	}
	return n, nil
}
