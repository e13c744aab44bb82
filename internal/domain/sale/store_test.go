package sale

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

// memStore is an in-memory Store. A transaction holds the store mutex from
// begin to commit/rollback, which serializes checkouts at least as strictly
// as row locks on the touched medicines.
type memStore struct {
	mu        sync.Mutex
	medicines map[int64]medicine.Medicine
	sales     []Sale
	items     map[int64][]Item
	nextID    int64

	// failAt makes the named Tx operation return errInjected.
	failAt string
	// lockDelay is slept while holding the lock, widening race windows.
	lockDelay time.Duration
	// lockedDays records the days passed to LockOrderSequence.
	lockedDays []time.Time
}

var errInjected = errors.New("injected failure")

func newMemStore(meds ...medicine.Medicine) *memStore {
	s := &memStore{
		medicines: make(map[int64]medicine.Medicine, len(meds)),
		items:     make(map[int64][]Item),
	}
	for _, m := range meds {
		s.medicines[m.ID] = m
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		medicines: maps.Clone(s.medicines),
		items:     make(map[int64][]Item),
		nextID:    s.nextID,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.medicines = tx.medicines
	s.sales = append(s.sales, tx.sales...)
	maps.Copy(s.items, tx.items)
	s.nextID = tx.nextID
	return nil
}

func (s *memStore) quantity(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.medicines[id].Quantity
}

func (s *memStore) committedSales() []Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sale(nil), s.sales...)
}

type memTx struct {
	store     *memStore
	medicines map[int64]medicine.Medicine
	sales     []Sale
	items     map[int64][]Item
	nextID    int64
}

func (t *memTx) fail(op string) error {
	if t.store.failAt == op {
		return errInjected
	}
	return nil
}

func (t *memTx) LockMedicines(_ context.Context, ids []int64) (map[int64]medicine.Medicine, error) {
	if err := t.fail("lock"); err != nil {
		return nil, err
	}
	if t.store.lockDelay > 0 {
		time.Sleep(t.store.lockDelay)
	}
	out := make(map[int64]medicine.Medicine, len(ids))
	for _, id := range ids {
		if m, ok := t.medicines[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (t *memTx) LockOrderSequence(_ context.Context, day time.Time) error {
	if err := t.fail("sequence"); err != nil {
		return err
	}
	t.store.lockedDays = append(t.store.lockedDays, day)
	return nil
}

func (t *memTx) CountSales(_ context.Context, from, to time.Time) (int, error) {
	if err := t.fail("count"); err != nil {
		return 0, err
	}
	n := 0
	for _, sl := range t.store.sales {
		if !sl.CreatedAt.Before(from) && sl.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertSale(_ context.Context, sl *Sale) (int64, error) {
	if err := t.fail("insert_sale"); err != nil {
		return 0, err
	}
	for _, existing := range t.store.sales {
		if existing.OrderNumber == sl.OrderNumber {
			return 0, errors.Errorf("duplicate order number %s", sl.OrderNumber)
		}
	}
	t.nextID++
	stored := *sl
	stored.ID = t.nextID
	t.sales = append(t.sales, stored)
	return t.nextID, nil
}

func (t *memTx) InsertItems(_ context.Context, saleID int64, items []Item) error {
	if err := t.fail("insert_items"); err != nil {
		return err
	}
	t.items[saleID] = append([]Item(nil), items...)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, medicineID, qty int64) error {
	if err := t.fail("decrement"); err != nil {
		return err
	}
	if qty <= 0 {
		return errors.Errorf("non-positive decrement %d", qty)
	}
	m, ok := t.medicines[medicineID]
	if !ok || !m.Active || m.Quantity < qty {
		return &InsufficientStockError{
			MedicineID: medicineID,
			Name:       m.DisplayName(),
			Requested:  qty,
			Available:  m.Quantity,
		}
	}
	m.Quantity -= qty
	t.medicines[medicineID] = m
	return nil
}

// Test fixtures.

var (
	testNow   = time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)
	today     = medicine.Day(testNow)
	yesterday = today.AddDate(0, 0, -1)
	nextYear  = today.AddDate(1, 0, 0)
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newMedicine(id int64, brand string, qty int64, price string) medicine.Medicine {
	return medicine.Medicine{
		ID:         id,
		BrandName:  brand,
		Strength:   "500mg",
		Quantity:   qty,
		SellPrice:  d(price),
		BuyPrice:   d(price).Div(decimal.NewFromInt(2)),
		ExpiryDate: nextYear,
		Active:     true,
	}
}
