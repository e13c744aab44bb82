package sale

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// toDecimal converts an untyped scalar (as decoded from a request) to a
// decimal. Supported inputs are decimals, Go integer and float kinds, and
// numeric strings. ok is false for nil, empty, non-numeric or non-finite
// values.
func toDecimal(v any) (d decimal.Decimal, ok bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return *x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// NormalizeMoney returns v as a non-negative amount, or fallback when v is
// absent, non-numeric or negative. It never fails.
func NormalizeMoney(v any, fallback decimal.Decimal) decimal.Decimal {
	d, ok := toDecimal(v)
	if !ok || d.IsNegative() {
		return fallback
	}
	return d
}

// NormalizeQuantity returns v truncated to a non-negative integer, or
// fallback when v is absent, non-numeric, negative or out of range.
func NormalizeQuantity(v any, fallback int64) int64 {
	d, ok := toDecimal(v)
	if !ok || d.IsNegative() {
		return fallback
	}
	d = d.Truncate(0)
	if d.GreaterThan(maxInt64) {
		return fallback
	}
	return d.IntPart()
}

// MaxQuantity is the largest quantity a single line may request. It matches
// the INTEGER range of the quantity columns.
const MaxQuantity = math.MaxInt32

var (
	maxInt64    = decimal.NewFromInt(math.MaxInt64)
	maxQuantity = decimal.NewFromInt(MaxQuantity)
)

// ParseMoney validates an optional non-negative amount. Absent values yield
// zero; malformed or negative values yield an *InputError.
func ParseMoney(field string, v any) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, ok := toDecimal(v)
	if !ok {
		return decimal.Zero, &InputError{Field: field, Reason: "must be a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &InputError{Field: field, Reason: "must not be negative"}
	}
	return d, nil
}

// ParseQuantity validates a required positive integer not above MaxQuantity.
func ParseQuantity(field string, v any) (int64, error) {
	return parsePositiveInt(field, v, maxQuantity)
}

// ParseID validates a required positive integer identifier.
func ParseID(field string, v any) (int64, error) {
	return parsePositiveInt(field, v, maxInt64)
}

func parsePositiveInt(field string, v any, limit decimal.Decimal) (int64, error) {
	if v == nil {
		return 0, &InputError{Field: field, Reason: "is required"}
	}
	d, ok := toDecimal(v)
	if !ok || !d.IsInteger() {
		return 0, &InputError{Field: field, Reason: "must be a positive integer"}
	}
	if !d.IsPositive() {
		return 0, &InputError{Field: field, Reason: "must be a positive integer"}
	}
	if d.GreaterThan(limit) {
		return 0, &InputError{Field: field, Reason: "must not exceed " + limit.String()}
	}
	return d.IntPart(), nil
}
