package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

// PaymentMethod enumerates the accepted ways to pay for a sale.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
)

// Valid reports whether p is one of the accepted payment methods.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentMobile:
		return true
	default:
		return false
	}
}

// Status is derived from the balance due after payment.
type Status string

const (
	StatusPaid    Status = "Paid"
	StatusPending Status = "Pending"
)

// Line is one requested (medicine, quantity) pair of a checkout.
type Line struct {
	MedicineID int64
	Quantity   int64
}

// CreateRequest holds the input for a checkout.
type CreateRequest struct {
	// Actor is the authenticated user ringing up the sale.
	Actor         string
	PaymentMethod PaymentMethod
	Discount      decimal.Decimal
	Paid          decimal.Decimal
	Items         []Line
}

// Sale is the persisted header of one checkout.
type Sale struct {
	ID            int64
	OrderNumber   string
	CreatedBy     string
	PaymentMethod PaymentMethod
	Totals        Totals
	Active        bool
	CreatedAt     time.Time
	Items         []Item
}

// Item is one medicine line of a sale. UnitPrice is a snapshot of the
// medicine's sell price at sale time.
type Item struct {
	MedicineID int64
	Name       string
	Quantity   int64
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
}

// Receipt is the result of a committed checkout. Monetary values are rounded
// to cents.
type Receipt struct {
	ID            int64
	OrderNumber   string
	Status        Status
	PaymentMethod PaymentMethod
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Balance       decimal.Decimal
	Change        decimal.Decimal
	Items         []Item
	CreatedAt     time.Time
}

// NewReceipt presents a sale, rounding every monetary value to 2 decimals.
func NewReceipt(s *Sale) *Receipt {
	t := s.Totals.Rounded()
	items := make([]Item, len(s.Items))
	for i, it := range s.Items {
		items[i] = Item{
			MedicineID: it.MedicineID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.Round(2),
			LineTotal:  it.LineTotal.Round(2),
		}
	}
	return &Receipt{
		ID:            s.ID,
		OrderNumber:   s.OrderNumber,
		Status:        t.Status,
		PaymentMethod: s.PaymentMethod,
		Subtotal:      t.Subtotal,
		Discount:      t.Discount,
		TaxRate:       t.TaxRate,
		TaxAmount:     t.TaxAmount,
		Total:         t.Total,
		Paid:          t.Paid,
		Balance:       t.Balance,
		Change:        t.Change,
		Items:         items,
		CreatedAt:     s.CreatedAt,
	}
}

// Store runs checkout work inside one database transaction.
type Store interface {
	// InTx begins a transaction, calls fn and commits when fn returns nil.
	// Any error from fn rolls the transaction back and is returned as is.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations a checkout performs inside its transaction.
type Tx interface {
	// LockMedicines fetches the medicines with the given ids and holds an
	// exclusive row lock on each until the transaction ends. Missing ids are
	// absent from the result.
	LockMedicines(ctx context.Context, ids []int64) (map[int64]medicine.Medicine, error)
	// LockOrderSequence serializes order numbering for the calendar day.
	LockOrderSequence(ctx context.Context, day time.Time) error
	// CountSales returns the number of sales created in [from, to).
	CountSales(ctx context.Context, from, to time.Time) (int, error)
	// InsertSale persists the header and returns its id.
	InsertSale(ctx context.Context, s *Sale) (int64, error)
	// InsertItems persists all line items of a sale in one batch.
	InsertItems(ctx context.Context, saleID int64, items []Item) error
	// DecrementStock subtracts qty from an active medicine. It returns an
	// *InsufficientStockError when the row is inactive or holds less than qty
	// and a plain error when qty is not positive.
	DecrementStock(ctx context.Context, medicineID, qty int64) error
}

// Repository reads committed sales.
type Repository interface {
	GetByOrderNumber(ctx context.Context, orderNumber string) (*Sale, error)
}
