package booking

import (
	"strings"

	"bookingflow/internal/domain/appointment"
)

// SubmitInput is the client-supplied part of a new booking.
type SubmitInput struct {
	ClientName     string `json:"clientName" validate:"required"`
	ClientContact  string `json:"clientContact"`
	ClientEmail    string `json:"clientEmail" validate:"omitempty,email"`
	EventType      string `json:"eventType" validate:"required"`
	EventDate      string `json:"eventDate" validate:"required,datetime=2006-01-02"`
	Venue          string `json:"venue" validate:"required"`
	BranchLocation string `json:"branchLocation" validate:"required"`
	GuestCount     int    `json:"guestCount" validate:"gte=0"`
	Theme          string `json:"theme"`
	SpecialRequest string `json:"specialRequest"`

	Products      []SelectedProduct `json:"products" validate:"dive"`
	Subtotal      float64           `json:"subtotal" validate:"gte=0"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	DiscountBasis string            `json:"discountBasis"`
	TotalPrice    float64           `json:"totalPrice" validate:"gte=0"`
	PaymentMode   string            `json:"paymentMode"`
	PaymentStatus string            `json:"paymentStatus"`
	AmountPaid    float64           `json:"amountPaid" validate:"gte=0"`
	PaymentProof  string            `json:"paymentProof"`
	PaymentNotes  string            `json:"paymentNotes"`
}

func (in *SubmitInput) normalize() {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.EventType = strings.TrimSpace(in.EventType)
	in.EventDate = strings.TrimSpace(in.EventDate)
	in.Venue = strings.TrimSpace(in.Venue)
	in.BranchLocation = strings.TrimSpace(in.BranchLocation)
	// the venue is the branch itself unless the client names another place
	if in.Venue == "" {
		in.Venue = in.BranchLocation
	}
}

func (in SubmitInput) toBooking() *Booking {
	products := in.Products
	if products == nil {
		products = []SelectedProduct{}
	}
	return &Booking{
		Stage:          StagePending,
		ClientName:     in.ClientName,
		ClientContact:  in.ClientContact,
		ClientEmail:    in.ClientEmail,
		EventType:      in.EventType,
		EventDate:      in.EventDate,
		Venue:          in.Venue,
		BranchLocation: in.BranchLocation,
		GuestCount:     in.GuestCount,
		Theme:          in.Theme,
		SpecialRequest: in.SpecialRequest,
		Products:       products,
		Subtotal:       in.Subtotal,
		Discount:       in.Discount,
		DiscountBasis:  in.DiscountBasis,
		TotalPrice:     in.TotalPrice,
		PaymentMode:    in.PaymentMode,
		PaymentStatus:  in.PaymentStatus,
		AmountPaid:     in.AmountPaid,
		PaymentProof:   in.PaymentProof,
		PaymentNotes:   in.PaymentNotes,
	}
}

// UpdateInput is a partial edit; nil fields are left as stored.
// Stage, reference number and timestamps are not editable.
type UpdateInput struct {
	Version *int64 `json:"version"`

	ClientName     *string `json:"clientName"`
	ClientContact  *string `json:"clientContact"`
	ClientEmail    *string `json:"clientEmail"`
	EventType      *string `json:"eventType"`
	EventDate      *string `json:"eventDate"`
	Venue          *string `json:"venue"`
	BranchLocation *string `json:"branchLocation"`
	GuestCount     *int    `json:"guestCount"`
	Theme          *string `json:"theme"`
	SpecialRequest *string `json:"specialRequest"`

	Products      *[]SelectedProduct `json:"products"`
	Subtotal      *float64           `json:"subtotal"`
	Discount      *float64           `json:"discount"`
	DiscountBasis *string            `json:"discountBasis"`
	TotalPrice    *float64           `json:"totalPrice"`
	PaymentMode   *string            `json:"paymentMode"`
	PaymentStatus *string            `json:"paymentStatus"`
	AmountPaid    *float64           `json:"amountPaid"`
	PaymentProof  *string            `json:"paymentProof"`
	PaymentNotes  *string            `json:"paymentNotes"`
}

func (p UpdateInput) apply(b *Booking) {
	setString(&b.ClientName, p.ClientName)
	setString(&b.ClientContact, p.ClientContact)
	setString(&b.ClientEmail, p.ClientEmail)
	setString(&b.EventType, p.EventType)
	setString(&b.EventDate, p.EventDate)
	setString(&b.Venue, p.Venue)
	setString(&b.BranchLocation, p.BranchLocation)
	setString(&b.Theme, p.Theme)
	setString(&b.SpecialRequest, p.SpecialRequest)
	setString(&b.DiscountBasis, p.DiscountBasis)
	setString(&b.PaymentMode, p.PaymentMode)
	setString(&b.PaymentStatus, p.PaymentStatus)
	setString(&b.PaymentProof, p.PaymentProof)
	setString(&b.PaymentNotes, p.PaymentNotes)

	if p.GuestCount != nil {
		b.GuestCount = *p.GuestCount
	}
	if p.Products != nil {
		b.Products = *p.Products
	}
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&b.Subtotal, p.Subtotal},
		{&b.Discount, p.Discount},
		{&b.TotalPrice, p.TotalPrice},
		{&b.AmountPaid, p.AmountPaid},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

type approveRequest struct {
	BookingID       string `json:"bookingId" binding:"required"`
	Date            string `json:"date"`
	MeetingLocation string `json:"meetingLocation"`
	Description     string `json:"description"`
}

type finishRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
}

type cancellationRequestBody struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type resolveCancellationRequest struct {
	AdminEmail string `json:"adminEmail"`
	AdminNotes string `json:"adminNotes"`
}

// Transition is the outcome of Approve: the booking and the appointment it owns.
type Transition struct {
	Booking     *Booking                 `json:"booking"`
	Appointment *appointment.Appointment `json:"appointment,omitempty"`
}

// ResumeReport summarizes a ResumePending run.
type ResumeReport struct {
	Scanned int `json:"scanned"`
	Resumed int `json:"resumed"`
	Failed  int `json:"failed"`
}
