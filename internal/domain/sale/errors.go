package sale

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for checkout input.
var (
	ErrNoActor              = errors.New("authenticated user required")
	ErrEmptyItems           = errors.New("invalid items payload: at least one item is required")
	ErrInvalidPaymentMethod = errors.New("invalid payment method: must be one of cash, card, mobile")
	ErrNotFound             = errors.New("sale not found")
)

// InputError describes a malformed request field. It is returned before any
// transaction is opened.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError indicates a medicine that does not exist or is inactive.
// Name is set when the row exists.
type UnavailableError struct {
	MedicineID int64
	Name       string
}

func (e *UnavailableError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("Medicine %s is inactive and cannot be sold", e.Name)
	}
	return fmt.Sprintf("Medicine %d not found or inactive", e.MedicineID)
}

// ExpiredError indicates a medicine whose expiry date has passed.
type ExpiredError struct {
	MedicineID int64
	Name       string
	ExpiryDate time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("Cannot sell expired medicine: %s (expired %s)", e.Name, e.ExpiryDate.Format(time.DateOnly))
}

// InsufficientStockError indicates a request for more units than available.
type InsufficientStockError struct {
	MedicineID int64
	Name       string
	Requested  int64
	Available  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough stock for %s. Requested: %d, Available: %d", e.Name, e.Requested, e.Available)
}

// IsRejection reports whether err is a client-correctable checkout rejection
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	var (
		inputErr   *InputError
		unavailErr *UnavailableError
		expiredErr *ExpiredError
		stockErr   *InsufficientStockError
	)
	switch {
	case errors.Is(err, ErrEmptyItems), errors.Is(err, ErrInvalidPaymentMethod):
		return true
	case errors.As(err, &inputErr), errors.As(err, &unavailErr),
		errors.As(err, &expiredErr), errors.As(err, &stockErr):
		return true
	default:
		return false
	}
}
