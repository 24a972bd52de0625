package models

import "strings"

// Device is a registered app install that can receive scheduled notifications.
type Device struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// PlatformCategory normalizes a platform string to one of the supported categories.
func PlatformCategory(platform string) string {
	switch strings.ToLower(platform) {
	case "android", "ios":
		return "mobile"
	case "web":
		return "web"
	default:
		return "unknown"
	}
}

// FeatureToggles are the per-device switches for each notification feature.
type FeatureToggles struct {
	QuizEnabled              bool `json:"quiz_enabled"`
	StreakCelebrationEnabled bool `json:"streak_celebration_enabled"`
}

// DefaultToggles is what a device gets before it has stored any preference.
func DefaultToggles() FeatureToggles {
	return FeatureToggles{QuizEnabled: true, StreakCelebrationEnabled: true}
}

// DeliveryResult is the provider's verdict for one pushed request.
type DeliveryResult struct {
	RequestID string `json:"request_id"`
	Token     string `json:"token"`
	Provider  string `json:"provider"`
	Delivered bool   `json:"delivered"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
