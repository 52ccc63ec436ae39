package driver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures for the caller.
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindQuota   ErrorKind = "quota"
	KindTimeout ErrorKind = "timeout"
	KindUnknown ErrorKind = "unknown"
)

// Error is returned by drivers for every failed completion. Kind is decided
// from structured provider data at the point of failure.
//
// Message must never include API keys.
type Error struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Status     string
	Reason     string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed (%s): status %d: %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed (%s): %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when err is not a driver error.
func KindOf(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) && derr.Kind != "" {
		return derr.Kind
	}
	return KindUnknown
}
