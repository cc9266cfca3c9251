package booking

import (
	"context"

	"bookingflow/internal/domain/appointment"
)

// Store persists bookings. Every mutation is a compare-and-swap on Version.
type Store interface {
	Insert(ctx context.Context, b *Booking) (string, error)
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, id string, expectedVersion int64, mutate func(*Booking) error) (*Booking, error)
	List(ctx context.Context, f ListFilter) ([]Booking, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
	ReferenceExists(ctx context.Context, ref string) (bool, error)
	ListAppointmentPending(ctx context.Context) ([]Booking, error)
}

// SagaLog records progress of orchestrator operations keyed by booking id and operation.
type SagaLog interface {
	Begin(ctx context.Context, bookingID, operation string) (*Saga, error)
	Step(ctx context.Context, bookingID, operation, step string) error
	Complete(ctx context.Context, bookingID, operation string) error
	Fail(ctx context.Context, bookingID, operation, step string, cause error) error
	Get(ctx context.Context, bookingID, operation string) (*Saga, error)
	ListForBooking(ctx context.Context, bookingID string) ([]Saga, error)
}

// Appointments is the slice of the appointment service the orchestrator depends on.
type Appointments interface {
	Create(ctx context.Context, in appointment.CreateInput) (*appointment.Appointment, error)
	GetByBookingID(ctx context.Context, bookingID string) (*appointment.Appointment, error)
	DeleteByBookingID(ctx context.Context, bookingID string) (int64, error)
}

type ProductCatalog interface {
	UnavailableProducts(ctx context.Context, ids []string) ([]string, error)
}
