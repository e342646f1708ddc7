package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Error kinds. Every typed error below unwraps to one of them.
var (
	ErrValidation    = errors.New("validation failed")
	ErrQuotaExceeded = errors.New("monthly quota exceeded")
	ErrPermission    = errors.New("permission denied")
	ErrNotFound      = errors.New("order not found")
)

// errTerminal rejects every mutation of a cancelled order.
var errTerminal = &PermissionError{Reason: "order is cancelled (terminal state)"}

// ValidationError describes input the caller can correct.
type ValidationError struct {
	Message string
	// MissingCodes lists every requested product code with no catalog entry.
	MissingCodes []string
}

func (e *ValidationError) Error() string {
	if len(e.MissingCodes) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.MissingCodes, ", "))
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// QuotaExceededError is returned when an order would push the owner's
// monthly weight over the ceiling.
type QuotaExceededError struct {
	LimitKg     decimal.Decimal
	CurrentKg   decimal.Decimal
	RequestedKg decimal.Decimal
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly weight limit of %s kg exceeded: %s kg already ordered, %s kg requested",
		e.LimitKg.String(), e.CurrentKg.String(), e.RequestedKg.String())
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// PermissionError is returned when the actor may not perform the operation
// on the order in its current state or at the current time.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return "permission denied: " + e.Reason }

func (e *PermissionError) Unwrap() error { return ErrPermission }

// NotFoundError covers both missing orders and orders the actor may not see.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("order %s not found", e.OrderID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
