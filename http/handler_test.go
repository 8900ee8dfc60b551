package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	wardenhttp "github.com/sagarc03/warden/http"
	"github.com/sagarc03/warden/server"
)

type MockSources struct {
	mock.Mock
}

func (m *MockSources) Stats() server.Stats {
	return m.Called().Get(0).(server.Stats)
}

func (m *MockSources) Len() int {
	return m.Called().Int(0)
}

func (m *MockSources) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSources) Routes() []string {
	return m.Called().Get(0).([]string)
}

func newAdmin(cfg wardenhttp.HandlerConfig, m *MockSources) http.Handler {
	sources := wardenhttp.Sources{}
	if m != nil {
		sources = wardenhttp.Sources{Connections: m, Sessions: m, Users: m, Routes: m}
	}
	return wardenhttp.NewHandler(&cfg, sources).Router()
}

func TestHandler_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newAdmin(wardenhttp.HandlerConfig{}, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_Stats(t *testing.T) {
	m := new(MockSources)
	m.On("Stats").Return(server.Stats{Active: 2, Total: 10, Rejected: 1})
	m.On("Len").Return(3)
	m.On("Count", mock.Anything).Return(5, nil)
	m.On("Routes").Return([]string{"POST /login", "POST /register"})

	rec := httptest.NewRecorder()
	newAdmin(wardenhttp.HandlerConfig{}, m).ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"active_connections": 2,
		"total_connections": 10,
		"rejected_connections": 1,
		"sessions": 3,
		"users": 5,
		"routes": ["POST /login", "POST /register"]
	}`, rec.Body.String())

	m.AssertExpectations(t)
}

func TestHandler_Stats_NoSources(t *testing.T) {
	rec := httptest.NewRecorder()
	newAdmin(wardenhttp.HandlerConfig{}, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp wardenhttp.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Users)
	assert.Empty(t, resp.Routes)
	assert.Contains(t, rec.Body.String(), `"routes":[]`)
}

func TestHandler_Stats_CountError(t *testing.T) {
	m := new(MockSources)
	m.On("Stats").Return(server.Stats{})
	m.On("Len").Return(0)
	m.On("Count", mock.Anything).Return(0, errors.New("database down"))

	rec := httptest.NewRecorder()
	newAdmin(wardenhttp.HandlerConfig{}, m).ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	m.AssertNotCalled(t, "Routes")
}

func TestHandler_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newAdmin(wardenhttp.HandlerConfig{}, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp wardenhttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
	assert.Contains(t, resp.Message, "/nope")
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newAdmin(wardenhttp.HandlerConfig{}, nil).ServeHTTP(rec, httptest.NewRequest("POST", "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method_not_allowed")
}

func TestHandler_CORS_Disabled(t *testing.T) {
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	newAdmin(wardenhttp.HandlerConfig{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_CORS_Enabled_Preflight(t *testing.T) {
	cfg := wardenhttp.HandlerConfig{
		CORS: wardenhttp.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		},
	}

	req := httptest.NewRequest("OPTIONS", "/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()

	newAdmin(cfg, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
}

func TestHandler_CORS_Enabled_ActualRequest(t *testing.T) {
	cfg := wardenhttp.HandlerConfig{
		CORS: wardenhttp.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET"},
		},
	}

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	newAdmin(cfg, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
