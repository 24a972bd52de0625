package models

import (
	"strings"
	"time"
)

// NotificationType tags a scheduled notification. It is also the id prefix,
// which is what lets a whole type be cancelled without tracking ids.
type NotificationType string

const (
	NotificationQuiz              NotificationType = "quiz"
	NotificationStreakCelebration NotificationType = "streakCelebration"
)

// Payload keys carried by every request and echoed back on tap.
const (
	PayloadType      = "type"
	PayloadMessageID = "messageId"
	PayloadStreak    = "streak"
)

// IDPrefix is the identifier prefix shared by every request of the type.
func (t NotificationType) IDPrefix() string {
	return string(t) + "_"
}

// Owns reports whether a request identifier belongs to the type.
func (t NotificationType) Owns(id string) bool {
	return strings.HasPrefix(id, t.IDPrefix())
}

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationQuiz, NotificationStreakCelebration:
		return true
	default:
		return false
	}
}

// NotificationRequest is a pending device notification.
type NotificationRequest struct {
	ID      string            `json:"id"`
	FireAt  time.Time         `json:"fire_at"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Payload map[string]string `json:"payload"`
}

// Type returns the request's type tag from its payload.
func (r NotificationRequest) Type() NotificationType {
	return NotificationType(r.Payload[PayloadType])
}

// AuthorizationStatus mirrors the device's notification permission state.
type AuthorizationStatus string

const (
	AuthorizationNotDetermined AuthorizationStatus = "notDetermined"
	AuthorizationDenied        AuthorizationStatus = "denied"
	AuthorizationAuthorized    AuthorizationStatus = "authorized"
	AuthorizationRestricted    AuthorizationStatus = "restricted"
)

// ParseAuthorizationStatus maps unknown values to notDetermined.
func ParseAuthorizationStatus(raw string) AuthorizationStatus {
	switch s := AuthorizationStatus(raw); s {
	case AuthorizationDenied, AuthorizationAuthorized, AuthorizationRestricted:
		return s
	default:
		return AuthorizationNotDetermined
	}
}

// DueNotification is a pending request whose fire time has passed, together
// with the device it belongs to.
type DueNotification struct {
	DeviceID string
	Request  NotificationRequest
}
