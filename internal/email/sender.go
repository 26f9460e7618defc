// Package email delivers sequence emails over SMTP and classifies delivery
// failures into transient and permanent ones. The dispatch worker retries
// transient failures and gives up immediately on permanent ones.
package email

import (
	"context"
	"errors"
	"fmt"
)

// Vars carries template substitution values, keyed by placeholder name.
type Vars map[string]string

// Sender delivers a single sequence email and returns the provider message
// id. Implementations must respect ctx cancellation.
type Sender interface {
	SendSequenceEmail(ctx context.Context, templateID, toEmail string, vars Vars) (messageID string, err error)
}

// PermanentError marks a delivery failure that retrying cannot fix, such as
// a rejected recipient address or a missing template.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent delivery failure: %s: %v", e.Reason, e.Err)
	}
	return "permanent delivery failure: " + e.Reason
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a permanent delivery failure.
func Permanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// NoopSender accepts every email without delivering it. Used when
// EMAIL_ENABLED is false and in tests.
type NoopSender struct{}

func (NoopSender) SendSequenceEmail(ctx context.Context, templateID, toEmail string, vars Vars) (string, error) {
	if _, err := lookupTemplate(templateID); err != nil {
		return "", err
	}
	return "noop-" + templateID, nil
}
