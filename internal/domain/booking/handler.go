package booking

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookingflow/internal/middleware"
	"bookingflow/internal/pkg/response"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Submit(c *gin.Context) {
	var in SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	b, err := h.service.Submit(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

func (h *Handler) Get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// listStage serves the stage-partitioned collection views.
func (h *Handler) listStage(stage Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := parseListFilter(c)
		if !ok {
			return
		}
		f.Stages = []Stage{stage}

		items, err := h.service.List(c.Request.Context(), f)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"bookings": items, "count": len(items)})
	}
}

func (h *Handler) ListPendingCancellations(c *gin.Context) {
	f, ok := parseListFilter(c)
	if !ok {
		return
	}
	items, err := h.service.Cancellations().ListPendingRequests(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": items, "count": len(items)})
}

func (h *Handler) ListCancelled(c *gin.Context) {
	f, ok := parseListFilter(c)
	if !ok {
		return
	}
	items, err := h.service.Cancellations().ListCancelled(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": items, "count": len(items)})
}

func parseListFilter(c *gin.Context) (ListFilter, bool) {
	f := ListFilter{
		BranchLocation: c.Query("branch"),
		From:           c.Query("from"),
		To:             c.Query("to"),
		Query:          c.Query("q"),
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a non-negative integer")
			return f, false
		}
		*dst = n
	}
	return f, true
}

func (h *Handler) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "bookingId is required")
		return
	}

	res, err := h.service.Approve(c.Request.Context(), req.BookingID, ApprovalDetails{
		Date:            req.Date,
		MeetingLocation: req.MeetingLocation,
		Description:     req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) Finish(c *gin.Context) {
	var req finishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "bookingId is required")
		return
	}

	b, err := h.service.Finish(c.Request.Context(), req.BookingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) deleteStage(stage Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := h.service.Delete(c.Request.Context(), id, stage); err != nil {
			h.writeError(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"bookingId": id, "deleted": true})
	}
}

func (h *Handler) Update(c *gin.Context) {
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var version int64
	if in.Version != nil {
		version = *in.Version
	}
	b, err := h.service.UpdateFields(c.Request.Context(), c.Param("id"), version, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) RequestCancellation(c *gin.Context) {
	var req cancellationRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	b, err := h.service.RequestCancellation(c.Request.Context(), c.Param("id"), req.Reason, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) resolve(decision Decision) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveCancellationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
		if req.AdminEmail == "" {
			req.AdminEmail = middleware.AdminEmailFrom(c)
		}

		b, err := h.service.ResolveCancellation(c.Request.Context(), c.Param("id"), decision, req.AdminEmail, req.AdminNotes)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response.Success(c, http.StatusOK, b)
	}
}

func (h *Handler) Sagas(c *gin.Context) {
	items, err := h.service.Sagas(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sagas": items})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		verr    *ValidationError
		partial *PartialTransitionError
	)
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, verr.Fields)
	case errors.As(err, &partial):
		h.logger.WarnContext(c.Request.Context(), "partial transition",
			slog.String("booking_id", partial.BookingID),
			slog.String("operation", partial.Operation),
			slog.String("step", partial.Step),
			slog.Any("error", partial.Err),
		)
		response.ErrorWithDetails(c, http.StatusAccepted, "PARTIAL_TRANSITION", "Transition committed but not complete; retry with the same bookingId", gin.H{
			"bookingId": partial.BookingID,
			"operation": partial.Operation,
			"step":      partial.Step,
			"retryable": true,
		})
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrConcurrentModification):
		response.Error(c, http.StatusConflict, "CONCURRENT_MODIFICATION", "Booking was modified concurrently; reload and retry")
	case errors.Is(err, ErrInvalidStageTransition):
		response.Error(c, http.StatusConflict, "INVALID_STAGE_TRANSITION", err.Error())
	case errors.Is(err, ErrBookingLocked):
		response.Error(c, http.StatusConflict, "BOOKING_LOCKED", err.Error())
	case errors.Is(err, ErrCancellationPending):
		response.Error(c, http.StatusConflict, "CANCELLATION_PENDING", err.Error())
	case errors.Is(err, ErrNoPendingCancellation):
		response.Error(c, http.StatusConflict, "NO_PENDING_CANCELLATION", err.Error())
	case errors.Is(err, ErrReferenceGenerationExhausted):
		response.Error(c, http.StatusServiceUnavailable, "REFERENCE_EXHAUSTED", "Could not allocate a reference number; retry later")
	case errors.Is(err, ErrCascadeFailure):
		h.logger.ErrorContext(c.Request.Context(), "cascade delete failed", slog.Any("error", err))
		response.Error(c, http.StatusInternalServerError, "CASCADE_FAILURE", "Dependent appointments could not be removed; retry the delete")
	default:
		h.logger.ErrorContext(c.Request.Context(), "booking request failed", slog.Any("error", err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
