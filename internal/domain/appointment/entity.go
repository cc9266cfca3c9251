package appointment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusFinished Status = "finished"
)

func (s Status) Valid() bool {
	return s == StatusUpcoming || s == StatusFinished
}

// Appointment is the calendar meeting derived from an approved booking.
// Its status is independent of the booking stage.
type Appointment struct {
	ID              string    `json:"appointmentId" gorm:"type:varchar(36);primaryKey"`
	BookingID       string    `json:"bookingId" gorm:"type:varchar(36);not null;uniqueIndex"`
	ClientEmail     string    `json:"clientEmail"`
	ClientName      string    `json:"clientName"`
	Date            string    `json:"date" gorm:"type:varchar(10);not null;index"`
	MeetingLocation string    `json:"meetingLocation" gorm:"not null"`
	BranchLocation  string    `json:"branchLocation" gorm:"index"`
	Description     string    `json:"description,omitempty" gorm:"type:text"`
	Status          Status    `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Appointment) TableName() string {
	return "appointments"
}

func (a *Appointment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type CreateInput struct {
	BookingID       string `json:"bookingId" validate:"required"`
	ClientEmail     string `json:"clientEmail" validate:"omitempty,email"`
	ClientName      string `json:"clientName"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	MeetingLocation string `json:"meetingLocation" validate:"required"`
	BranchLocation  string `json:"branchLocation"`
	Description     string `json:"description"`
}

type ListFilter struct {
	Status    Status
	BookingID string
	From      string
	To        string
}
