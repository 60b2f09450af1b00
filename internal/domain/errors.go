package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnexpectedValue marks a wire value outside a known enumeration.
	ErrUnexpectedValue = errors.New("unexpected value")

	ErrVerificationRequired = errors.New("connection must be verified before saving")
	ErrFieldsLocked         = errors.New("form is locked")
	ErrBusy                 = errors.New("operation already in progress")
	ErrCardLocked           = errors.New("card is not editable")
	ErrNotEditing           = errors.New("card is not being edited")
	ErrClosed               = errors.New("flow is closed")
	ErrNotFound             = errors.New("not found")
	ErrNotRestorable        = errors.New("only successful full backups can be restored")
	ErrNotDownloadable      = errors.New("only successful S3 backups can be downloaded")
	ErrRestoreInFlight      = errors.New("restore already requested for this backup")
)

// UnexpectedValue reports an enumeration value the client does not know.
func UnexpectedValue(kind, value string) error {
	return fmt.Errorf("%w: %s %q", ErrUnexpectedValue, kind, value)
}

// ValidationError carries every rule violation of a draft in rule order.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// First returns the violation shown to the user.
func (e *ValidationError) First() string {
	if len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0]
}

// AsValidation turns violations into an error, or nil when there are none.
func AsValidation(violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// RemoteError is a failure reported by the backup API.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// CapabilityError is returned when the backup API refuses a backup.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	if e.Reason == "" {
		return "backups are not allowed for this connection"
	}
	return e.Reason
}
