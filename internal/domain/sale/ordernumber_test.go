package sale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "ORD-20260307-0001", OrderNumber(0, now))
	assert.Equal(t, "ORD-20260307-0042", OrderNumber(41, now))
	assert.Equal(t, "ORD-20260307-10000", OrderNumber(9999, now))

	for _, n := range []string{OrderNumber(0, now), OrderNumber(9999, now)} {
		assert.True(t, ValidOrderNumber(n), n)
	}
	assert.False(t, ValidOrderNumber("ORD-2026037-0001"))
	assert.False(t, ValidOrderNumber("INV-20260307-0001"))
}

func TestDayBounds(t *testing.T) {
	dhaka := time.FixedZone("BDT", 6*60*60)
	// 20:00 UTC is already the next day in Dhaka.
	start, end := dayBounds(time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC), dhaka)

	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, dhaka), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
