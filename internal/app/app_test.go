package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingflow/internal/config"
	"bookingflow/internal/logging"
	"bookingflow/internal/middleware"
	"bookingflow/internal/testutil"
)

func newTestApp(t *testing.T, secret string) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppEnv:                   "test",
		JWTSecret:                secret,
		ReferenceMaxAttempts:     10,
		AppointmentRetryAttempts: 1,
	}
	a, err := NewWithDB(cfg, logging.Discard(), testutil.NewDB(t, Models()...))
	require.NoError(t, err)
	return a
}

func send(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestApp_Health(t *testing.T) {
	r := newTestApp(t, "").Router()

	rr := send(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestApp_ApproveNeedsAdminWhenSecretSet(t *testing.T) {
	a := newTestApp(t, "s3cret")
	r := a.Router()

	rr := send(r, http.MethodPost, "/api/bookings/pending", "", map[string]any{
		"clientName":     "Alice",
		"eventType":      "Wedding",
		"eventDate":      "2025-12-05",
		"branchLocation": "Maddela, Quirino",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Data struct {
			BookingID string `json:"bookingId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	approve := map[string]any{
		"bookingId":       created.Data.BookingID,
		"date":            "2025-12-10",
		"meetingLocation": "Garden Hall",
	}
	rr = send(r, http.MethodPost, "/api/bookings/approved", "", approve)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	userToken, err := a.Tokens.GenerateToken("u-1", "client@example.com", "client")
	require.NoError(t, err)
	rr = send(r, http.MethodPost, "/api/bookings/approved", userToken, approve)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	adminToken, err := a.Tokens.GenerateToken("a-1", "admin@example.com", middleware.RoleAdmin)
	require.NoError(t, err)
	rr = send(r, http.MethodPost, "/api/bookings/approved", adminToken, approve)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = send(r, http.MethodGet, "/api/appointments", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Garden Hall")

	var listed struct {
		Data struct {
			Appointments []struct {
				ID string `json:"appointmentId"`
			} `json:"appointments"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed.Data.Appointments, 1)
	apptPath := "/api/appointments/" + listed.Data.Appointments[0].ID

	rr = send(r, http.MethodDelete, apptPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = send(r, http.MethodDelete, apptPath, userToken, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = send(r, http.MethodPatch, apptPath+"/status", userToken, map[string]any{"status": "finished"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = send(r, http.MethodPatch, apptPath+"/status", adminToken, map[string]any{"status": "finished"})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}
