package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrAccessDenied    = errors.New("device not found or access denied")
	ErrDeviceNotFound  = errors.New("device not found or inactive")
	ErrDuplicateDevice = errors.New("device already registered")
	ErrNoTelemetry     = errors.New("no telemetry for device")
	ErrInvalidPayload  = errors.New("invalid telemetry payload")
	ErrInvalidRange    = errors.New("start date is after end date")
	ErrInvalidInput    = errors.New("invalid input")
)

// MissingFieldError reports a required ingestion field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// StorageError wraps a failed round trip to the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
