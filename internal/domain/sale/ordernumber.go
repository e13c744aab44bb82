package sale

import (
	"fmt"
	"regexp"
	"time"
)

// orderNumberPattern matches identifiers produced by OrderNumber. Sequences
// past 9999 widen beyond four digits.
var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{4,}$`)

// OrderNumber returns the human-readable identifier for the next sale of the
// calendar day of now, given how many sales that day already has:
// ORD-YYYYMMDD-NNNN with a 1-based, zero-padded sequence.
//
// countToday must be read in the same transaction that inserts the sale,
// after LockOrderSequence, or concurrent checkouts can collide.
func OrderNumber(countToday int, now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), countToday+1)
}

// ValidOrderNumber reports whether s has the shape produced by OrderNumber.
func ValidOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}

// dayBounds returns the start of the calendar day of t in loc and the start
// of the following day.
func dayBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	t = t.In(loc)
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
