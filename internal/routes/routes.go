package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
)

// NewRouter wires health/metrics endpoints and the device API.
func NewRouter(h *Handlers, metrics *metrics.Metrics, started time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Message: "streak service healthy",
			Data: map[string]interface{}{
				"uptime_seconds": int(time.Since(started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("PUT /v1/devices/{id}", h.RegisterDevice)
	mux.HandleFunc("POST /v1/devices/{id}/foreground", h.Foreground)
	mux.HandleFunc("POST /v1/devices/{id}/celebration/dismiss", h.DismissCelebration)
	mux.HandleFunc("POST /v1/devices/{id}/streak/reset", h.ResetStreak)
	mux.HandleFunc("GET /v1/devices/{id}/permission", h.PermissionStatus)
	mux.HandleFunc("POST /v1/devices/{id}/permission", h.AnswerPermission)
	mux.HandleFunc("POST /v1/devices/{id}/permission/request", h.RequestPermission)
	mux.HandleFunc("PUT /v1/devices/{id}/preferences", h.UpdatePreferences)
	mux.HandleFunc("GET /v1/devices/{id}/notifications", h.ListPending)
	mux.HandleFunc("POST /v1/devices/{id}/notifications/quiz", h.ScheduleQuiz)
	mux.HandleFunc("POST /v1/devices/{id}/notifications/streak", h.ScheduleStreak)
	mux.HandleFunc("DELETE /v1/devices/{id}/notifications/{type}", h.CancelNotifications)
	return mux
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := envelope{Success: false, Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}
