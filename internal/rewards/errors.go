package rewards

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidState        = errors.New("invalid_state")
	ErrExpired             = errors.New("expired")
	ErrAlreadyUsed         = errors.New("already_used")
	ErrOutOfStock          = errors.New("out_of_stock")
	ErrInsufficientInputs  = errors.New("insufficient_inputs")
	ErrExternalTimeout     = errors.New("external_timeout")
	ErrExternalFailure     = errors.New("external_failure")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
	ErrQuotaExceeded       = errors.New("quota_exceeded")
)

// InsufficientInputsError names the shortfall of a rejected forge.
type InsufficientInputsError struct {
	Required          int
	Available         int
	MissingCategories []string
}

func (e *InsufficientInputsError) Error() string {
	msg := fmt.Sprintf("%s: need %d, have %d", ErrInsufficientInputs.Error(), e.Required, e.Available)
	if len(e.MissingCategories) > 0 {
		msg += " (missing " + strings.Join(e.MissingCategories, ",") + ")"
	}
	return msg
}

func (e *InsufficientInputsError) Unwrap() error {
	return ErrInsufficientInputs
}

// codedErrors is ordered most specific first; ErrInvalidState comes last because it is
// joined with ErrExpired or ErrAlreadyUsed on consumption.
var codedErrors = []error{
	ErrInvalidRequest,
	ErrNotFound,
	ErrExpired,
	ErrAlreadyUsed,
	ErrOutOfStock,
	ErrInsufficientInputs,
	ErrExternalTimeout,
	ErrExternalFailure,
	ErrConcurrencyConflict,
	ErrQuotaExceeded,
	ErrInvalidState,
}

// Code returns the wire code of err, or "internal_error" for anything outside the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range codedErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}

// Retryable reports whether the caller may try the same request again later.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrExternalTimeout),
		errors.Is(err, ErrExternalFailure),
		errors.Is(err, ErrQuotaExceeded):
		return true
	default:
		return false
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an external error as not worth another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// StateError reports an invalid state transition together with its specific reason, so callers
// can match either ErrInvalidState or the reason.
func StateError(reason error) error {
	return fmt.Errorf("%w: %w", reason, ErrInvalidState)
}
