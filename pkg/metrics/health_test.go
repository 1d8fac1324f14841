package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth() {
	healthChecker = newHealthChecker()
}

func TestGetHealth(t *testing.T) {
	resetHealth()
	SetVersion("1.2.3")

	UpdateComponent(ComponentReconciler, true, "")
	UpdateComponent(ComponentConnector, false, "dial timeout")

	health := GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "1.2.3", health.Version)
	assert.Equal(t, "healthy", health.Components[ComponentReconciler])
	assert.Equal(t, "unhealthy: dial timeout", health.Components[ComponentConnector])
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		want    string
		message string
	}{
		{
			name: "all critical components ready",
			setup: func() {
				UpdateComponent(ComponentReconciler, true, "")
				UpdateComponent(ComponentConnector, true, "")
			},
			want: "ready",
		},
		{
			name: "critical component missing",
			setup: func() {
				UpdateComponent(ComponentReconciler, true, "")
			},
			want:    "not_ready",
			message: "waiting for connector initialization",
		},
		{
			name: "critical component unhealthy",
			setup: func() {
				UpdateComponent(ComponentReconciler, false, "reconfiguring")
				UpdateComponent(ComponentConnector, true, "")
			},
			want:    "not_ready",
			message: "waiting for reconciler",
		},
		{
			name: "non critical component ignored",
			setup: func() {
				UpdateComponent(ComponentReconciler, true, "")
				UpdateComponent(ComponentConnector, true, "")
				UpdateComponent(ComponentWatcher, false, "inotify limit")
			},
			want: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth()
			tt.setup()

			readiness := GetReadiness()
			assert.Equal(t, tt.want, readiness.Status)
			assert.Equal(t, tt.message, readiness.Message)
		})
	}
}

func TestSetCriticalComponents(t *testing.T) {
	resetHealth()
	SetCriticalComponents(ComponentWatcher)

	UpdateComponent(ComponentWatcher, true, "")
	assert.Equal(t, "ready", GetReadiness().Status)
}

func TestHandlers(t *testing.T) {
	resetHealth()
	UpdateComponent(ComponentReconciler, true, "")

	rec := httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "not registered", body.Components[ComponentConnector])
}
