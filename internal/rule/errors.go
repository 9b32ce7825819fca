package rule

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or out-of-range config value.
type ValidationError struct {
	Variant string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Variant, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Variant, e.Field, e.Message)
}

// CompatibilityError reports a trigger/action pair outside the matrix.
type CompatibilityError struct {
	Trigger TriggerKind
	Action  ActionKind
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("action %s cannot run on trigger %s", e.Action, e.Trigger)
}

var (
	ErrUnknownTrigger = errors.New("unknown trigger kind")
	ErrUnknownAction  = errors.New("unknown action kind")
)

func invalid(variant any, field, format string, args ...any) *ValidationError {
	return &ValidationError{Variant: fmt.Sprint(variant), Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError or
// CompatibilityError, i.e. a user-correctable input problem.
func IsValidation(err error) bool {
	var ve *ValidationError
	var ce *CompatibilityError
	return errors.As(err, &ve) || errors.As(err, &ce)
}
