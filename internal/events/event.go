// Package events defines booking lifecycle notifications consumed by the
// notification and reporting services.
package events

import (
	"context"
	"time"
)

type Type string

const (
	BookingSubmitted          Type = "booking.submitted"
	BookingApproved           Type = "booking.approved"
	BookingApprovalIncomplete Type = "booking.approval_incomplete"
	BookingFinished           Type = "booking.finished"
	BookingDeleted            Type = "booking.deleted"
	BookingUpdated            Type = "booking.updated"
	CancellationRequested     Type = "booking.cancellation_requested"
	CancellationApproved      Type = "booking.cancellation_approved"
	CancellationRejected      Type = "booking.cancellation_rejected"
	AppointmentStatusChanged  Type = "appointment.status_changed"
)

// Event carries enough for downstream consumers to notify or aggregate
// without reading the booking store.
type Event struct {
	Type            Type      `json:"type"`
	BookingID       string    `json:"bookingId"`
	Stage           string    `json:"stage,omitempty"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
	ClientEmail     string    `json:"clientEmail,omitempty"`
	AppointmentID   string    `json:"appointmentId,omitempty"`
	Version         int64     `json:"version,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
