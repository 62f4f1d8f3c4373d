package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Business-rule failures. Terminal for the current call: the caller must not
// retry without new input.
var (
	ErrMenuNotFound        = errors.New("menu not found")
	ErrMenuNotAvailable    = errors.New("menu is not accepting orders")
	ErrMenuSoldOut         = errors.New("menu quantity exhausted")
	ErrOrderDeadlinePassed = errors.New("order deadline has passed")
	ErrDuplicateOrder      = errors.New("an active order already exists for this menu")
	ErrOrderNotFound       = errors.New("order not found")
	ErrUnauthorized        = errors.New("order belongs to another user")
	ErrAlreadyCancelled    = errors.New("order is already cancelled")
	ErrSequenceExhausted   = errors.New("daily order sequence exhausted")
)

// Transient failures. The calling layer may retry the whole operation; the
// service itself never does.
var (
	ErrAllocation = errors.New("sequence allocation failed")
	ErrInternal   = errors.New("storage failure")
)

// Store-level sentinels surfaced by OrderStore implementations.
var (
	ErrDuplicateActiveOrder = errors.New("active order already stored for user and menu")
	ErrNotFound             = errors.New("order row not found")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors enumerates every offending field in one failure.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	ok := errors.As(err, &v)
	return v, ok
}

func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
