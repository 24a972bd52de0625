package services

import (
	"context"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

// PushPayload is the fully rendered payload handed to a provider.
type PushPayload struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
	// DataOnly sends a silent message the app handles itself, with no
	// visible notification.
	DataOnly bool
}

// PushProvider represents a downstream push provider (FCM, OneSignal, etc).
type PushProvider interface {
	Name() string
	Send(ctx context.Context, payload *PushPayload) (models.DeliveryResult, error)
}

// NotificationCenter is one device's notification subsystem: the pending
// request list and the permission state.
type NotificationCenter interface {
	Submit(ctx context.Context, req models.NotificationRequest) error
	ListPending(ctx context.Context) ([]models.NotificationRequest, error)
	Cancel(ctx context.Context, ids []string) error
	CancelAll(ctx context.Context) error
	CheckPermission(ctx context.Context) (models.AuthorizationStatus, error)
	RequestPermission(ctx context.Context) (bool, error)
}

// PreferenceStore is one device's durable settings.
type PreferenceStore interface {
	LastShownStreakDay(ctx context.Context) (int, error)
	SetLastShownStreakDay(ctx context.Context, day int) error
	Toggles(ctx context.Context) (models.FeatureToggles, error)
	SetToggles(ctx context.Context, toggles models.FeatureToggles) error
}

// DeviceDirectory resolves registered devices and tracks tokens the provider
// rejected.
type DeviceDirectory interface {
	Device(ctx context.Context, deviceID string) (models.Device, error)
	IsTokenSuppressed(ctx context.Context, token string) (bool, error)
	SuppressToken(ctx context.Context, token string, ttl time.Duration) error
}

// DueSource hands out notifications whose fire time has passed. A claimed
// notification is no longer pending.
type DueSource interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.DueNotification, error)
}

// Presenter surfaces in-app UI on the device.
type Presenter interface {
	ShowQuiz(ctx context.Context, deviceID string, msg models.MessageVariant) error
	ShowCelebration(ctx context.Context, deviceID string, view CelebrationView) error
}
