package sale

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

// StockPolicy selects how repeated lines for one medicine are checked
// against the available quantity.
type StockPolicy string

const (
	// StockAggregate sums the quantities of all lines for a medicine before
	// comparing with the available quantity.
	StockAggregate StockPolicy = "aggregate"
	// StockPerLine checks each line on its own against the full available
	// quantity, as the legacy checkout did.
	StockPerLine StockPolicy = "per_line"
)

// ParseStockPolicy maps a configuration value to a StockPolicy. Empty means
// StockAggregate.
func ParseStockPolicy(s string) (StockPolicy, error) {
	switch p := StockPolicy(s); p {
	case "":
		return StockAggregate, nil
	case StockAggregate, StockPerLine:
		return p, nil
	default:
		return "", errors.Errorf("unknown stock policy %q", s)
	}
}

// StockValidator locks the medicines of a checkout and verifies that every
// line can be sold.
type StockValidator struct {
	Policy StockPolicy
}

// Validate locks the distinct medicines referenced by lines for the rest of
// the transaction, then checks each line in input order. The first failing
// line is reported as *UnavailableError, *ExpiredError or
// *InsufficientStockError.
func (v StockValidator) Validate(ctx context.Context, tx Tx, lines []Line, today time.Time) ([]PricedLine, error) {
	rows, err := tx.LockMedicines(ctx, medicineIDs(lines))
	if err != nil {
		return nil, errors.Wrap(err, "lock medicines")
	}
	return v.Check(rows, lines, today)
}

// Check runs the line checks against an already locked snapshot.
func (v StockValidator) Check(rows map[int64]medicine.Medicine, lines []Line, today time.Time) ([]PricedLine, error) {
	var claimed map[int64]int64
	if v.Policy != StockPerLine {
		claimed = make(map[int64]int64, len(lines))
	}

	priced := make([]PricedLine, 0, len(lines))
	for _, l := range lines {
		m, ok := rows[l.MedicineID]
		if !ok {
			return nil, &UnavailableError{MedicineID: l.MedicineID}
		}
		if !m.Active {
			return nil, &UnavailableError{MedicineID: m.ID, Name: m.DisplayName()}
		}
		if m.ExpiredOn(today) {
			return nil, &ExpiredError{MedicineID: m.ID, Name: m.DisplayName(), ExpiryDate: m.ExpiryDate}
		}

		// claimed never exceeds m.Quantity, so the subtraction cannot wrap.
		prev := claimed[m.ID]
		if l.Quantity <= 0 || l.Quantity > m.Quantity-prev {
			return nil, &InsufficientStockError{
				MedicineID: m.ID,
				Name:       m.DisplayName(),
				Requested:  addCapped(prev, l.Quantity),
				Available:  m.Quantity,
			}
		}
		if claimed != nil {
			claimed[m.ID] = prev + l.Quantity
		}
		priced = append(priced, PricedLine{Medicine: m, Quantity: l.Quantity})
	}
	return priced, nil
}

// medicineIDs returns the distinct medicine ids of lines in ascending order,
// so concurrent checkouts acquire row locks in the same order.
func medicineIDs(lines []Line) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.MedicineID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// stockDemand sums requested quantities per medicine, saturating at
// math.MaxInt64.
func stockDemand(lines []Line) map[int64]int64 {
	demand := make(map[int64]int64, len(lines))
	for _, l := range lines {
		demand[l.MedicineID] = addCapped(demand[l.MedicineID], l.Quantity)
	}
	return demand
}

// addCapped adds two non-negative quantities, saturating at math.MaxInt64.
func addCapped(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}
