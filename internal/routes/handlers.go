package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/services"
)

// DeviceRegistry stores what devices report about themselves.
type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, device models.Device) error
	SetPermission(ctx context.Context, deviceID string, status models.AuthorizationStatus) error
	AnswerPermission(ctx context.Context, deviceID string, granted bool) error
}

// Handlers serves the device API on top of the per-device sessions.
type Handlers struct {
	sessions          *services.Sessions
	devices           DeviceRegistry
	validate          *validator.Validate
	logger            *slog.Logger
	permissionTimeout time.Duration
}

func NewHandlers(sessions *services.Sessions, devices DeviceRegistry, logger *slog.Logger, permissionTimeout time.Duration) *Handlers {
	if permissionTimeout <= 0 {
		permissionTimeout = 30 * time.Second
	}
	return &Handlers{
		sessions:          sessions,
		devices:           devices,
		validate:          validator.New(),
		logger:            logger,
		permissionTimeout: permissionTimeout,
	}
}

type registerDeviceRequest struct {
	Token      string `json:"token" validate:"required,max=4096"`
	Platform   string `json:"platform" validate:"required,oneof=ios android web"`
	Permission string `json:"permission" validate:"omitempty,oneof=notDetermined denied authorized restricted"`
}

type foregroundRequest struct {
	CurrentStreak int    `json:"current_streak" validate:"gte=0"`
	Onboarded     bool   `json:"onboarded"`
	AudienceTag   string `json:"audience_tag" validate:"max=32"`
	DisplayName   string `json:"display_name" validate:"max=64"`
}

type permissionAnswerRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

type preferencesRequest struct {
	QuizEnabled              *bool `json:"quiz_enabled" validate:"required"`
	StreakCelebrationEnabled *bool `json:"streak_celebration_enabled" validate:"required"`
}

type quizScheduleRequest struct {
	AudienceTag string `json:"audience_tag" validate:"required,max=32"`
	DisplayName string `json:"display_name" validate:"max=64"`
}

type streakScheduleRequest struct {
	CurrentStreak int `json:"current_streak" validate:"gte=0"`
}

func (h *Handlers) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var req registerDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}

	device := models.Device{ID: deviceID, Token: req.Token, Platform: req.Platform}
	if err := h.devices.RegisterDevice(r.Context(), device); err != nil {
		h.logger.Error("failed to register device", slog.String("device_id", deviceID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to register device", nil)
		return
	}
	if req.Permission != "" {
		status := models.ParseAuthorizationStatus(req.Permission)
		if err := h.devices.SetPermission(r.Context(), deviceID, status); err != nil {
			h.logger.Error("failed to store permission", slog.String("device_id", deviceID), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to store permission", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "device registered", Data: device})
}

func (h *Handlers) Foreground(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var req foregroundRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.sessions.Get(deviceID).Foreground(r.Context(), services.ForegroundInput{
		TrackingState: services.TrackingState{CurrentStreak: req.CurrentStreak, Onboarded: req.Onboarded},
		AudienceTag:   req.AudienceTag,
		DisplayName:   req.DisplayName,
	})
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: res})
}

func (h *Handlers) DismissCelebration(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Get(deviceID).Reconciler.Dismiss(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record celebration", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "celebration dismissed"})
}

func (h *Handlers) ResetStreak(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Get(deviceID).Reconciler.Reset(r.Context()); err != nil {
		h.logger.Error("failed to reset streak", slog.String("device_id", deviceID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to reset streak", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "streak reset"})
}

func (h *Handlers) PermissionStatus(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	status := h.sessions.Get(deviceID).Gate.CheckStatus(r.Context())
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": string(status)}})
}

func (h *Handlers) AnswerPermission(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var req permissionAnswerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.devices.AnswerPermission(r.Context(), deviceID, *req.Granted); err != nil {
		h.logger.Error("failed to store permission answer", slog.String("device_id", deviceID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to store permission answer", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "permission recorded"})
}

// RequestPermission long-polls until the device answers the prompt.
func (h *Handlers) RequestPermission(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.permissionTimeout)
	defer cancel()

	granted := h.sessions.Get(deviceID).Gate.RequestAuthorization(ctx)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]bool{"granted": granted}})
}

func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var req preferencesRequest
	if !h.decode(w, r, &req) {
		return
	}

	toggles := models.FeatureToggles{
		QuizEnabled:              *req.QuizEnabled,
		StreakCelebrationEnabled: *req.StreakCelebrationEnabled,
	}
	if err := h.sessions.Get(deviceID).Prefs.SetToggles(r.Context(), toggles); err != nil {
		h.logger.Error("failed to store preferences", slog.String("device_id", deviceID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to store preferences", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toggles})
}

func (h *Handlers) ListPending(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	pending, err := h.sessions.Get(deviceID).Scheduler.Pending(r.Context())
	if err != nil {
		h.logger.Error("failed to list pending notifications", slog.String("device_id", deviceID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list notifications", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: pending})
}

func (h *Handlers) ScheduleQuiz(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var req quizScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	res := h.sessions.Get(deviceID).Scheduler.ScheduleQuizNotifications(r.Context(), req.AudienceTag, req.DisplayName)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: res})
}

func (h *Handlers) ScheduleStreak(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var req streakScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	res := h.sessions.Get(deviceID).Scheduler.ScheduleStreakNotification(r.Context(), req.CurrentStreak)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: res})
}

func (h *Handlers) CancelNotifications(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	typ := models.NotificationType(r.PathValue("type"))
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown notification type %q", typ), nil)
		return
	}

	n, err := h.sessions.Get(deviceID).Scheduler.CancelNotifications(r.Context(), typ)
	if err != nil {
		h.logger.Error("failed to cancel notifications", slog.String("device_id", deviceID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to cancel notifications", nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]int{"cancelled": n}})
}

func (h *Handlers) deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := h.validate.Var(id, "required,max=128,printascii,excludesall=0x7C/ "); err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id", nil)
		return "", false
	}
	return id, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusUnprocessableEntity, "validation failed", verrs)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}
