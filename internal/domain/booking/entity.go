package booking

import "time"

type Stage string

const (
	StagePending   Stage = "pending"
	StageApproved  Stage = "approved"
	StageFinished  Stage = "finished"
	StageCancelled Stage = "cancelled"
)

func (s Stage) Valid() bool {
	switch s {
	case StagePending, StageApproved, StageFinished, StageCancelled:
		return true
	}
	return false
}

// Locked stages accept no further field edits.
func (s Stage) Locked() bool {
	return s == StageFinished || s == StageCancelled
}

type CancellationStatus string

const (
	CancellationPending  CancellationStatus = "pending"
	CancellationApproved CancellationStatus = "approved"
	CancellationRejected CancellationStatus = "rejected"
)

type SelectedProduct struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// ApprovalDetails are supplied by the admin and copied into the appointment.
type ApprovalDetails struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	MeetingLocation string `json:"meetingLocation" validate:"required"`
	Description     string `json:"description,omitempty"`
}

type CancellationRequest struct {
	Reason      string             `json:"reason"`
	Description string             `json:"description,omitempty"`
	Status      CancellationStatus `json:"status"`
	RequestedAt time.Time          `json:"requestedAt"`
	ResolvedAt  *time.Time         `json:"resolvedAt,omitempty"`
	AdminEmail  string             `json:"adminEmail,omitempty"`
	AdminNotes  string             `json:"adminNotes,omitempty"`
}

// Booking is a single client event reservation. Its ID never changes across stages.
type Booking struct {
	ID              string  `json:"bookingId"`
	Stage           Stage   `json:"stage"`
	ReferenceNumber *string `json:"referenceNumber"`

	ClientName     string `json:"clientName"`
	ClientContact  string `json:"clientContact,omitempty"`
	ClientEmail    string `json:"clientEmail,omitempty"`
	EventType      string `json:"eventType"`
	EventDate      string `json:"eventDate"`
	Venue          string `json:"venue"`
	BranchLocation string `json:"branchLocation"`
	GuestCount     int    `json:"guestCount,omitempty"`
	Theme          string `json:"theme,omitempty"`
	SpecialRequest string `json:"specialRequest,omitempty"`

	Products      []SelectedProduct `json:"products"`
	Subtotal      float64           `json:"subtotal"`
	Discount      float64           `json:"discount"`
	DiscountBasis string            `json:"discountBasis,omitempty"`
	TotalPrice    float64           `json:"totalPrice"`
	PaymentMode   string            `json:"paymentMode,omitempty"`
	PaymentStatus string            `json:"paymentStatus,omitempty"`
	AmountPaid    float64           `json:"amountPaid"`
	PaymentProof  string            `json:"paymentProof,omitempty"`
	PaymentNotes  string            `json:"paymentNotes,omitempty"`

	Approval            *ApprovalDetails     `json:"approval,omitempty"`
	AppointmentPending  bool                 `json:"appointmentPending"`
	CancellationRequest *CancellationRequest `json:"cancellationRequest,omitempty"`

	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func (b *Booking) Reference() string {
	if b.ReferenceNumber == nil {
		return ""
	}
	return *b.ReferenceNumber
}

func (b *Booking) HasPendingCancellation() bool {
	return b.CancellationRequest != nil && b.CancellationRequest.Status == CancellationPending
}

type ListFilter struct {
	Stages             []Stage
	BranchLocation     string
	From               string
	To                 string
	Query              string
	CancellationStatus CancellationStatus
	Limit              int
	Offset             int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	}
	return f.Limit
}
