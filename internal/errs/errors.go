package errs

import "errors"

var (
	// ErrDeviceNotFound indicates the device never registered a push token.
	ErrDeviceNotFound = errors.New("device not found")
)
