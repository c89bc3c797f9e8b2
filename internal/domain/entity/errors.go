package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvoiceNotFound is returned when no invoice matches an identity
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrCaptureCancelled is returned when the capture provider yields no file
	ErrCaptureCancelled = errors.New("capture cancelled")
)

// ValidationError reports a field-level problem detected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UploadError reports an attachment transport or storage failure.
type UploadError struct {
	URI   string
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.URI, e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// RemoteError reports a rejected or unreachable create/update/list call.
type RemoteError struct {
	Op    string
	Cause error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Cause)
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// SyncError wraps an UploadError or RemoteError for callers of the
// synchronization flow.
type SyncError struct {
	Op    string
	Cause error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("synchronization failed during %s: %v", e.Op, e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
