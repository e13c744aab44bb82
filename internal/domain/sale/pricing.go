package sale

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

var hundred = decimal.NewFromInt(100)

// Default pricing parameters.
var (
	DefaultTaxRate         = decimal.NewFromInt(5)
	DefaultMaxDiscountRate = decimal.NewFromInt(10)
)

// Totals holds the computed amounts of a sale. Values are exact; use Rounded
// for presentation.
type Totals struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	TaxRate   decimal.Decimal // percent
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Balance   decimal.Decimal
	Change    decimal.Decimal
	Status    Status
}

// Rounded returns a copy with every monetary value rounded to 2 decimals.
func (t Totals) Rounded() Totals {
	t.Subtotal = t.Subtotal.Round(2)
	t.Discount = t.Discount.Round(2)
	t.TaxAmount = t.TaxAmount.Round(2)
	t.Total = t.Total.Round(2)
	t.Paid = t.Paid.Round(2)
	t.Balance = t.Balance.Round(2)
	t.Change = t.Change.Round(2)
	return t
}

// PricedLine pairs a locked medicine row with the requested quantity.
type PricedLine struct {
	Medicine medicine.Medicine
	Quantity int64
}

// Pricing computes sale totals from server-side prices. Both rates are
// percentages and come from server configuration only.
type Pricing struct {
	TaxRate         decimal.Decimal
	MaxDiscountRate decimal.Decimal
}

// Compute prices every line at the medicine's current sell price, caps the
// discount at MaxDiscountRate percent of the subtotal, applies tax to the
// discounted base and settles the payment into balance or change.
func (p Pricing) Compute(lines []PricedLine, discount, paid decimal.Decimal) (Totals, []Item) {
	items := make([]Item, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		unit := l.Medicine.SellPrice
		lineTotal := unit.Mul(decimal.NewFromInt(l.Quantity))
		items[i] = Item{
			MedicineID: l.Medicine.ID,
			Name:       l.Medicine.DisplayName(),
			Quantity:   l.Quantity,
			UnitPrice:  unit,
			LineTotal:  lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}

	maxDiscount := subtotal.Mul(p.MaxDiscountRate).Div(hundred)
	effDiscount := decimal.Min(NormalizeMoney(discount, decimal.Zero), maxDiscount)

	base := subtotal.Sub(effDiscount)
	tax := base.Mul(p.TaxRate).Div(hundred)
	total := base.Add(tax)

	t := Totals{
		Subtotal:  subtotal,
		Discount:  effDiscount,
		TaxRate:   p.TaxRate,
		TaxAmount: tax,
		Total:     total,
		Paid:      NormalizeMoney(paid, decimal.Zero),
		Balance:   decimal.Zero,
		Change:    decimal.Zero,
	}
	switch {
	case t.Paid.LessThan(total):
		t.Balance = total.Sub(t.Paid)
	case t.Paid.GreaterThan(total):
		t.Change = t.Paid.Sub(total)
	}

	// A sub-cent residue cannot be collected, so it does not keep a sale open.
	t.Status = StatusPaid
	if t.Balance.Round(2).IsPositive() {
		t.Status = StatusPending
	}
	return t, items
}
