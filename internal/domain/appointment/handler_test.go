package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingflow/internal/logging"
)

type stubBookings map[string]error

func (s stubBookings) CheckAppointmentEligible(_ context.Context, bookingID string) error {
	if err, ok := s[bookingID]; ok {
		return err
	}
	return ErrBookingNotFound
}

func setupTestRouter(t *testing.T, bookings BookingChecker) *gin.Engine {
	t.Helper()
	return setupRouterWithGuard(t, bookings, func(c *gin.Context) { c.Next() })
}

func setupRouterWithGuard(t *testing.T, bookings BookingChecker, admin gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(newTestService(t), bookings, logging.Discard())
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"), admin)
	return r
}

func doJSONRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func TestHandler_CreateRequiresEligibleBooking(t *testing.T) {
	r := setupTestRouter(t, stubBookings{
		"approved": nil,
		"pending":  ErrBookingNotEligible,
	})

	rr := doJSONRequest(r, http.MethodPost, "/api/appointments", sampleInput("pending"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_STAGE_TRANSITION", decode(t, rr).Error.Code)

	rr = doJSONRequest(r, http.MethodPost, "/api/appointments", sampleInput("unknown"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/api/appointments", sampleInput("approved"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var a Appointment
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &a))
	assert.Equal(t, "approved", a.BookingID)
	assert.Equal(t, StatusUpcoming, a.Status)
}

func TestHandler_StatusAndDelete(t *testing.T) {
	r := setupTestRouter(t, stubBookings{"b-1": nil})

	rr := doJSONRequest(r, http.MethodPost, "/api/appointments", sampleInput("b-1"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var a Appointment
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &a))

	rr = doJSONRequest(r, http.MethodPatch, "/api/appointments/"+a.ID+"/status", map[string]any{"status": "finished"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSONRequest(r, http.MethodPatch, "/api/appointments/"+a.ID+"/status", map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/appointments?status=finished", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Appointments []Appointment `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &list))
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, a.ID, list.Appointments[0].ID)

	rr = doJSONRequest(r, http.MethodDelete, "/api/appointments/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSONRequest(r, http.MethodDelete, "/api/appointments/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_WritesGoThroughAdminGuard(t *testing.T) {
	deny := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
	}
	r := setupRouterWithGuard(t, stubBookings{"b-1": nil}, deny)

	rr := doJSONRequest(r, http.MethodPost, "/api/appointments", sampleInput("b-1"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONRequest(r, http.MethodPatch, "/api/appointments/a-1/status", map[string]any{"status": "finished"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONRequest(r, http.MethodDelete, "/api/appointments/a-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/appointments", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
