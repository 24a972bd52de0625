package models

import "time"

// TapEvent is published by the API gateway when the user opens a delivered
// notification. Identifier and Payload are the values the request was
// submitted with.
type TapEvent struct {
	DeviceID   string            `json:"device_id"`
	Identifier string            `json:"identifier"`
	Payload    map[string]string `json:"payload"`
	TappedAt   time.Time         `json:"tapped_at"`
}

// Type is the payload's type tag, or empty when the payload carries none.
func (e TapEvent) Type() NotificationType {
	if e.Payload == nil {
		return ""
	}
	return NotificationType(e.Payload[PayloadType])
}
