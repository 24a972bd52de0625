package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

// AuthorizationGate fronts the device's notification permission. Scheduling
// is best effort, so every failure here reads as "not authorized".
type AuthorizationGate struct {
	center   NotificationCenter
	deviceID string
	logger   *slog.Logger
}

func NewAuthorizationGate(center NotificationCenter, deviceID string, logger *slog.Logger) *AuthorizationGate {
	return &AuthorizationGate{
		center:   center,
		deviceID: deviceID,
		logger:   logger,
	}
}

// CheckStatus reads the current permission without prompting.
func (g *AuthorizationGate) CheckStatus(ctx context.Context) models.AuthorizationStatus {
	status, err := g.center.CheckPermission(ctx)
	if err != nil {
		g.logger.Warn("failed to read notification permission",
			slog.String("device_id", g.deviceID), slog.Any("error", err))
		return models.AuthorizationNotDetermined
	}
	return status
}

// Authorized reports whether scheduling may proceed.
func (g *AuthorizationGate) Authorized(ctx context.Context) bool {
	return g.CheckStatus(ctx) == models.AuthorizationAuthorized
}

// RequestAuthorization prompts the user and blocks until they answer or ctx
// ends. It reports whether permission was granted.
func (g *AuthorizationGate) RequestAuthorization(ctx context.Context) bool {
	granted, err := g.center.RequestPermission(ctx)
	if err != nil {
		g.logger.Warn("notification permission request failed",
			slog.String("device_id", g.deviceID), slog.Any("error", err))
		return false
	}
	g.logger.Info("notification permission answered",
		slog.String("device_id", g.deviceID), slog.Bool("granted", granted))
	return granted
}
