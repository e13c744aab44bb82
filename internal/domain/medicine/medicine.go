package medicine

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested medicine does not exist.
var ErrNotFound = errors.New("medicine not found")

// Medicine is a sellable inventory unit.
type Medicine struct {
	ID         int64
	BrandName  string
	Strength   string
	Quantity   int64
	SellPrice  decimal.Decimal
	BuyPrice   decimal.Decimal
	ExpiryDate time.Time
	Active     bool
}

// DisplayName returns the brand name followed by the strength, e.g.
// "Napa 500mg".
func (m Medicine) DisplayName() string {
	return strings.TrimSpace(m.BrandName + " " + m.Strength)
}

// ExpiredOn reports whether the expiry date is strictly before the calendar
// day of today. Time of day is ignored on both sides.
func (m Medicine) ExpiredOn(today time.Time) bool {
	return Day(m.ExpiryDate).Before(Day(today))
}

// Day truncates t to its calendar date in t's own location and returns it as
// midnight UTC, so dates from different locations compare by date only.
func Day(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// ListFilter narrows a catalog listing.
type ListFilter struct {
	// Query matches brand names case-insensitively. Empty matches all.
	Query string
}

// Repository defines catalog operations on medicines. Quantity changes made
// by checkout go through the sale store, never through this interface.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Medicine, error)
	GetByID(ctx context.Context, id int64) (*Medicine, error)
	Upsert(ctx context.Context, m *Medicine) error
}
