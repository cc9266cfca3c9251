package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SagaStatus string

const (
	SagaStarted   SagaStatus = "started"
	SagaCompleted SagaStatus = "completed"
	SagaFailed    SagaStatus = "failed"
)

const (
	OpSubmit              = "submit"
	OpApprove             = "approve"
	OpFinish              = "finish"
	OpDelete              = "delete"
	OpUpdate              = "update"
	OpRequestCancellation = "request_cancellation"
	OpResolveCancellation = "resolve_cancellation"
)

// Saga is the progress record of one operation on one booking.
type Saga struct {
	Key       string     `json:"key"`
	BookingID string     `json:"bookingId"`
	Operation string     `json:"operation"`
	Status    SagaStatus `json:"status"`
	Step      string     `json:"step"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"lastError,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func SagaKey(bookingID, operation string) string {
	return bookingID + ":" + operation
}

type sagaModel struct {
	Key       string    `gorm:"column:saga_key;type:varchar(80);primaryKey"`
	BookingID string    `gorm:"column:booking_id;type:varchar(36);not null;index"`
	Operation string    `gorm:"column:operation;type:varchar(32);not null"`
	Status    string    `gorm:"column:status;type:varchar(16);not null"`
	Step      string    `gorm:"column:step;type:varchar(32)"`
	Attempts  int       `gorm:"column:attempts;not null"`
	LastError string    `gorm:"column:last_error;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sagaModel) TableName() string { return "booking_sagas" }

func (m sagaModel) toSaga() Saga {
	return Saga{
		Key:       m.Key,
		BookingID: m.BookingID,
		Operation: m.Operation,
		Status:    SagaStatus(m.Status),
		Step:      m.Step,
		Attempts:  m.Attempts,
		LastError: m.LastError,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type SagaRepository struct {
	db *gorm.DB
}

func NewSagaRepository(db *gorm.DB) *SagaRepository {
	return &SagaRepository{db: db}
}

// Begin opens the saga or, when it already exists, counts another attempt.
// The step and status of a previous attempt are kept so callers can resume.
func (r *SagaRepository) Begin(ctx context.Context, bookingID, operation string) (*Saga, error) {
	m := sagaModel{
		Key:       SagaKey(bookingID, operation),
		BookingID: bookingID,
		Operation: operation,
		Status:    string(SagaStarted),
		Attempts:  1,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "saga_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"attempts":   gorm.Expr("booking_sagas.attempts + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&m).Error
	if err != nil {
		return nil, fmt.Errorf("begin saga %s: %w", m.Key, err)
	}
	return r.Get(ctx, bookingID, operation)
}

func (r *SagaRepository) Step(ctx context.Context, bookingID, operation, step string) error {
	return r.set(ctx, bookingID, operation, map[string]any{
		"step":   step,
		"status": string(SagaStarted),
	})
}

func (r *SagaRepository) Complete(ctx context.Context, bookingID, operation string) error {
	return r.set(ctx, bookingID, operation, map[string]any{
		"status":     string(SagaCompleted),
		"last_error": "",
	})
}

func (r *SagaRepository) Fail(ctx context.Context, bookingID, operation, step string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.set(ctx, bookingID, operation, map[string]any{
		"status":     string(SagaFailed),
		"step":       step,
		"last_error": msg,
	})
}

func (r *SagaRepository) set(ctx context.Context, bookingID, operation string, cols map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&sagaModel{}).
		Where("saga_key = ?", SagaKey(bookingID, operation)).
		Updates(cols).Error
}

// Get returns ErrNotFound when the operation never ran for the booking.
func (r *SagaRepository) Get(ctx context.Context, bookingID, operation string) (*Saga, error) {
	var m sagaModel
	err := r.db.WithContext(ctx).Where("saga_key = ?", SagaKey(bookingID, operation)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s := m.toSaga()
	return &s, nil
}

func (r *SagaRepository) ListForBooking(ctx context.Context, bookingID string) ([]Saga, error) {
	var models []sagaModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]Saga, 0, len(models))
	for _, m := range models {
		out = append(out, m.toSaga())
	}
	return out, nil
}
