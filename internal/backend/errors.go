package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend lookups.
var (
	// ErrSessionNotFound indicates the identity backend knows no such session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound indicates the identity backend knows no such user.
	ErrUserNotFound = errors.New("user not found")

	// ErrCounterpartyNotFound indicates no counterparty record exists.
	ErrCounterpartyNotFound = errors.New("counterparty not found")

	// ErrUnavailable indicates the backend could not be reached, including
	// circuit breaker rejections.
	ErrUnavailable = errors.New("backend unavailable")
)

// VersionRequirement describes the minimum supported app version.
type VersionRequirement struct {
	MinVersion string `json:"minVersion"`
	StoreLink  string `json:"storeLink,omitempty"`
}

// UnsupportedVersionError is returned when an installation runs an app
// version below the supported minimum.
type UnsupportedVersionError struct {
	InstallationID string
	Requirement    VersionRequirement
}

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("installation %s: app version below minimum %s",
		e.InstallationID, e.Requirement.MinVersion)
}
