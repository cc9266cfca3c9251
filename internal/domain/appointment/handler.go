package appointment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookingflow/internal/pkg/response"
)

// BookingChecker confirms the referenced booking is Approved or Finished.
// It returns ErrBookingNotFound or ErrBookingNotEligible otherwise.
type BookingChecker interface {
	CheckAppointmentEligible(ctx context.Context, bookingID string) error
}

type Handler struct {
	service  *Service
	bookings BookingChecker
	logger   *slog.Logger
}

func NewHandler(service *Service, bookings BookingChecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, bookings: bookings, logger: logger}
}

func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if h.bookings != nil && in.BookingID != "" {
		if err := h.bookings.CheckAppointmentEligible(c.Request.Context(), in.BookingID); err != nil {
			h.writeError(c, err)
			return
		}
	}

	a, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, a)
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), ListFilter{
		Status:    Status(c.Query("status")),
		BookingID: c.Query("bookingId"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []Appointment{}
	}
	response.Success(c, http.StatusOK, gin.H{"appointments": items})
}

type updateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "status is required")
		return
	}

	a, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, a)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), verr.Fields)
	case errors.Is(err, ErrInvalidStatus):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBookingNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrBookingNotEligible):
		response.Error(c, http.StatusConflict, "INVALID_STAGE_TRANSITION", err.Error())
	default:
		h.logger.ErrorContext(c.Request.Context(), "appointment request failed", slog.Any("error", err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
