package booking

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookingflow/internal/database"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// productList is stored as a JSON text column.
type productList []SelectedProduct

func (p productList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *productList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("products: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	return json.Unmarshal(raw, p)
}

type bookingModel struct {
	ID              string  `gorm:"column:id;type:varchar(36);primaryKey"`
	Stage           string  `gorm:"column:stage;type:varchar(16);not null;index"`
	ReferenceNumber *string `gorm:"column:reference_number;type:varchar(20);uniqueIndex"`

	ClientName     string `gorm:"column:client_name;not null"`
	ClientContact  string `gorm:"column:client_contact"`
	ClientEmail    string `gorm:"column:client_email"`
	EventType      string `gorm:"column:event_type;not null"`
	EventDate      string `gorm:"column:event_date;type:varchar(10);not null;index"`
	Venue          string `gorm:"column:venue"`
	BranchLocation string `gorm:"column:branch_location;index"`
	GuestCount     int    `gorm:"column:guest_count"`
	Theme          string `gorm:"column:theme"`
	SpecialRequest string `gorm:"column:special_request;type:text"`

	Products      productList `gorm:"column:products;type:text"`
	Subtotal      float64     `gorm:"column:subtotal"`
	Discount      float64     `gorm:"column:discount"`
	DiscountBasis string      `gorm:"column:discount_basis"`
	TotalPrice    float64     `gorm:"column:total_price"`
	PaymentMode   string      `gorm:"column:payment_mode"`
	PaymentStatus string      `gorm:"column:payment_status"`
	AmountPaid    float64     `gorm:"column:amount_paid"`
	PaymentProof  string      `gorm:"column:payment_proof"`
	PaymentNotes  string      `gorm:"column:payment_notes;type:text"`

	ApprovalDate        string `gorm:"column:approval_date;type:varchar(10)"`
	ApprovalLocation    string `gorm:"column:approval_meeting_location"`
	ApprovalDescription string `gorm:"column:approval_description;type:text"`
	AppointmentPending  bool   `gorm:"column:appointment_pending;index"`

	CancellationStatus      string     `gorm:"column:cancellation_status;type:varchar(16);index"`
	CancellationReason      string     `gorm:"column:cancellation_reason"`
	CancellationDescription string     `gorm:"column:cancellation_description;type:text"`
	CancellationRequestedAt *time.Time `gorm:"column:cancellation_requested_at"`
	CancellationResolvedAt  *time.Time `gorm:"column:cancellation_resolved_at"`
	CancellationAdminEmail  string     `gorm:"column:cancellation_admin_email"`
	CancellationAdminNotes  string     `gorm:"column:cancellation_admin_notes;type:text"`

	Version     int64          `gorm:"column:version;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;index"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	ApprovedAt  *time.Time     `gorm:"column:approved_at"`
	FinishedAt  *time.Time     `gorm:"column:finished_at"`
	CancelledAt *time.Time     `gorm:"column:cancelled_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (bookingModel) TableName() string { return "bookings" }

// Models lists the tables owned by this package for migration.
func Models() []any {
	return []any{&bookingModel{}, &sagaModel{}}
}

func toDomainBooking(m bookingModel) *Booking {
	b := &Booking{
		ID:                 m.ID,
		Stage:              Stage(m.Stage),
		ReferenceNumber:    m.ReferenceNumber,
		ClientName:         m.ClientName,
		ClientContact:      m.ClientContact,
		ClientEmail:        m.ClientEmail,
		EventType:          m.EventType,
		EventDate:          m.EventDate,
		Venue:              m.Venue,
		BranchLocation:     m.BranchLocation,
		GuestCount:         m.GuestCount,
		Theme:              m.Theme,
		SpecialRequest:     m.SpecialRequest,
		Products:           []SelectedProduct(m.Products),
		Subtotal:           m.Subtotal,
		Discount:           m.Discount,
		DiscountBasis:      m.DiscountBasis,
		TotalPrice:         m.TotalPrice,
		PaymentMode:        m.PaymentMode,
		PaymentStatus:      m.PaymentStatus,
		AmountPaid:         m.AmountPaid,
		PaymentProof:       m.PaymentProof,
		PaymentNotes:       m.PaymentNotes,
		AppointmentPending: m.AppointmentPending,
		Version:            m.Version,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		ApprovedAt:         m.ApprovedAt,
		FinishedAt:         m.FinishedAt,
		CancelledAt:        m.CancelledAt,
	}
	if b.Products == nil {
		b.Products = []SelectedProduct{}
	}

	if m.ApprovalDate != "" || m.ApprovalLocation != "" {
		b.Approval = &ApprovalDetails{
			Date:            m.ApprovalDate,
			MeetingLocation: m.ApprovalLocation,
			Description:     m.ApprovalDescription,
		}
	}

	if m.CancellationStatus != "" {
		req := &CancellationRequest{
			Reason:      m.CancellationReason,
			Description: m.CancellationDescription,
			Status:      CancellationStatus(m.CancellationStatus),
			ResolvedAt:  m.CancellationResolvedAt,
			AdminEmail:  m.CancellationAdminEmail,
			AdminNotes:  m.CancellationAdminNotes,
		}
		if m.CancellationRequestedAt != nil {
			req.RequestedAt = *m.CancellationRequestedAt
		}
		b.CancellationRequest = req
	}
	return b
}

func toBookingModel(b *Booking) bookingModel {
	m := bookingModel{
		ID:                 b.ID,
		Stage:              string(b.Stage),
		ReferenceNumber:    b.ReferenceNumber,
		ClientName:         b.ClientName,
		ClientContact:      b.ClientContact,
		ClientEmail:        b.ClientEmail,
		EventType:          b.EventType,
		EventDate:          b.EventDate,
		Venue:              b.Venue,
		BranchLocation:     b.BranchLocation,
		GuestCount:         b.GuestCount,
		Theme:              b.Theme,
		SpecialRequest:     b.SpecialRequest,
		Products:           productList(b.Products),
		Subtotal:           b.Subtotal,
		Discount:           b.Discount,
		DiscountBasis:      b.DiscountBasis,
		TotalPrice:         b.TotalPrice,
		PaymentMode:        b.PaymentMode,
		PaymentStatus:      b.PaymentStatus,
		AmountPaid:         b.AmountPaid,
		PaymentProof:       b.PaymentProof,
		PaymentNotes:       b.PaymentNotes,
		AppointmentPending: b.AppointmentPending,
		Version:            b.Version,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		ApprovedAt:         b.ApprovedAt,
		FinishedAt:         b.FinishedAt,
		CancelledAt:        b.CancelledAt,
	}

	if a := b.Approval; a != nil {
		m.ApprovalDate = a.Date
		m.ApprovalLocation = a.MeetingLocation
		m.ApprovalDescription = a.Description
	}

	if c := b.CancellationRequest; c != nil {
		requestedAt := c.RequestedAt
		m.CancellationStatus = string(c.Status)
		m.CancellationReason = c.Reason
		m.CancellationDescription = c.Description
		m.CancellationRequestedAt = &requestedAt
		m.CancellationResolvedAt = c.ResolvedAt
		m.CancellationAdminEmail = c.AdminEmail
		m.CancellationAdminNotes = c.AdminNotes
	}
	return m
}

// mutableColumns is every column an Update may rewrite. id, created_at and deleted_at are
// never part of it.
func mutableColumns(m bookingModel) map[string]any {
	return map[string]any{
		"stage":                     m.Stage,
		"reference_number":          m.ReferenceNumber,
		"client_name":               m.ClientName,
		"client_contact":            m.ClientContact,
		"client_email":              m.ClientEmail,
		"event_type":                m.EventType,
		"event_date":                m.EventDate,
		"venue":                     m.Venue,
		"branch_location":           m.BranchLocation,
		"guest_count":               m.GuestCount,
		"theme":                     m.Theme,
		"special_request":           m.SpecialRequest,
		"products":                  m.Products,
		"subtotal":                  m.Subtotal,
		"discount":                  m.Discount,
		"discount_basis":            m.DiscountBasis,
		"total_price":               m.TotalPrice,
		"payment_mode":              m.PaymentMode,
		"payment_status":            m.PaymentStatus,
		"amount_paid":               m.AmountPaid,
		"payment_proof":             m.PaymentProof,
		"payment_notes":             m.PaymentNotes,
		"approval_date":             m.ApprovalDate,
		"approval_meeting_location": m.ApprovalLocation,
		"approval_description":      m.ApprovalDescription,
		"appointment_pending":       m.AppointmentPending,
		"cancellation_status":       m.CancellationStatus,
		"cancellation_reason":       m.CancellationReason,
		"cancellation_description":  m.CancellationDescription,
		"cancellation_requested_at": m.CancellationRequestedAt,
		"cancellation_resolved_at":  m.CancellationResolvedAt,
		"cancellation_admin_email":  m.CancellationAdminEmail,
		"cancellation_admin_notes":  m.CancellationAdminNotes,
		"version":                   m.Version,
		"approved_at":               m.ApprovedAt,
		"finished_at":               m.FinishedAt,
		"cancelled_at":              m.CancelledAt,
	}
}

// Insert stores a new Pending booking with version 1 and returns its id.
func (r *Repository) Insert(ctx context.Context, b *Booking) (string, error) {
	if b.Stage == "" {
		b.Stage = StagePending
	}
	if b.Stage != StagePending {
		return "", fmt.Errorf("%w: only pending bookings can be inserted", ErrInvalidStageTransition)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.ReferenceNumber = nil
	b.Version = 1

	m := toBookingModel(b)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", err
	}
	b.CreatedAt = m.CreatedAt
	b.UpdatedAt = m.UpdatedAt
	return b.ID, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Booking, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *Repository) get(tx *gorm.DB, id string) (*Booking, error) {
	var m bookingModel
	err := tx.Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainBooking(m), nil
}

// Update applies mutate to the stored booking if its version still equals expectedVersion.
// The write is conditional on the version so a concurrent writer loses with
// ErrConcurrentModification instead of overwriting.
func (r *Repository) Update(ctx context.Context, id string, expectedVersion int64, mutate func(*Booking) error) (*Booking, error) {
	var out *Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.get(tx, id)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrConcurrentModification
		}

		next := *current
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		next.Version = expectedVersion + 1

		res := tx.Model(&bookingModel{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(mutableColumns(toBookingModel(&next)))
		if res.Error != nil {
			if database.IsUniqueViolation(res.Error) {
				return ErrReferenceCollision
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		out, err = r.get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Booking, error) {
	q := r.db.WithContext(ctx).Model(&bookingModel{})

	if len(f.Stages) > 0 {
		stages := make([]string, 0, len(f.Stages))
		for _, s := range f.Stages {
			stages = append(stages, string(s))
		}
		q = q.Where("stage IN ?", stages)
	}
	if f.BranchLocation != "" {
		q = q.Where("branch_location = ?", f.BranchLocation)
	}
	if f.From != "" {
		q = q.Where("event_date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("event_date <= ?", f.To)
	}
	if f.CancellationStatus != "" {
		q = q.Where("cancellation_status = ?", string(f.CancellationStatus))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(client_name) LIKE ? OR LOWER(event_type) LIKE ? OR LOWER(COALESCE(reference_number, '')) LIKE ?", like, like, like)
	}

	var models []bookingModel
	if err := q.Order("created_at DESC").Order("id").Limit(f.limit()).Offset(f.Offset).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]Booking, 0, len(models))
	for _, m := range models {
		out = append(out, *toDomainBooking(m))
	}
	return out, nil
}

// Delete soft-deletes the booking. The row is kept so its id and reference number are never reissued.
func (r *Repository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", id, expectedVersion).
		Delete(&bookingModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConcurrentModification
}

// ReferenceExists also sees deleted bookings.
func (r *Repository) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&bookingModel{}).
		Where("reference_number = ?", ref).
		Count(&n).Error
	return n > 0, err
}

// ListAppointmentPending returns approved bookings whose appointment was never confirmed.
func (r *Repository) ListAppointmentPending(ctx context.Context) ([]Booking, error) {
	var models []bookingModel
	if err := r.db.WithContext(ctx).
		Where("stage = ? AND appointment_pending = ?", string(StageApproved), true).
		Order("approved_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]Booking, 0, len(models))
	for _, m := range models {
		out = append(out, *toDomainBooking(m))
	}
	return out, nil
}
