package appointment

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) GetByBookingID(ctx context.Context, bookingID string) (*Appointment, error) {
	var a Appointment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	q := r.db.WithContext(ctx).Model(&Appointment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.BookingID != "" {
		q = q.Where("booking_id = ?", f.BookingID)
	}
	if f.From != "" {
		q = q.Where("date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("date <= ?", f.To)
	}

	var out []Appointment
	if err := q.Order("date ASC, created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tx := r.db.WithContext(ctx).Model(&Appointment{}).Where("id = ?", id).Update("status", status)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Appointment{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByBookingID removes every appointment owned by the booking and reports how many went.
func (r *Repository) DeleteByBookingID(ctx context.Context, bookingID string) (int64, error) {
	tx := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Delete(&Appointment{})
	return tx.RowsAffected, tx.Error
}
