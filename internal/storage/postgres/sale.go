package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
)

// orderSequenceLock is the advisory lock namespace for per-day order
// numbering. The second lock key is the day as YYYYMMDD.
const orderSequenceLock int32 = 0x5041_4c45

const (
	setLockTimeoutSQL = `SELECT set_config('lock_timeout', $1, true)`

	lockMedicinesSQL = `SELECT ` + medicineColumns + ` FROM medicines
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	lockOrderSequenceSQL = `SELECT pg_advisory_xact_lock($1, $2)`

	countSalesSQL = `SELECT count(*) FROM sales WHERE created_at >= $1 AND created_at < $2`

	insertSaleSQL = `INSERT INTO sales
		(order_number, created_by, payment_method, subtotal, discount, tax_rate, tax_amount,
		 total, paid, balance, change_given, status, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	decrementStockSQL = `UPDATE medicines SET quantity = quantity - $1, updated_at = now()
		WHERE id = $2 AND is_active AND $1 > 0 AND quantity >= $1`

	stockLevelSQL = `SELECT brand_name, strength, quantity FROM medicines WHERE id = $1`

	getSaleSQL = `SELECT id, order_number, created_by, payment_method, subtotal, discount, tax_rate,
		tax_amount, total, paid, balance, change_given, status, is_active, created_at
		FROM sales WHERE order_number = $1`

	getSaleItemsSQL = `SELECT si.medicine_id, m.brand_name, m.strength, si.quantity, si.unit_price, si.line_total
		FROM sale_items si JOIN medicines m ON m.id = si.medicine_id
		WHERE si.sale_id = $1 ORDER BY si.id`
)

var saleItemColumns = []string{"sale_id", "medicine_id", "quantity", "unit_price", "line_total"}

var (
	_ sale.Store      = (*SaleStore)(nil)
	_ sale.Repository = (*SaleStore)(nil)
	_ sale.Tx         = (*saleTx)(nil)
)

// SaleStore runs checkouts in READ COMMITTED transactions and reads committed
// sales.
type SaleStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewSaleStore returns a SaleStore that uses the given pool. A positive
// lockTimeout bounds every lock wait inside a checkout transaction.
func NewSaleStore(pool *pgxpool.Pool, lockTimeout time.Duration) *SaleStore {
	return &SaleStore{pool: pool, lockTimeout: lockTimeout}
}

// InTx implements sale.Store.
func (s *SaleStore) InTx(ctx context.Context, fn func(ctx context.Context, tx sale.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, setLockTimeoutSQL, timeout); err != nil {
			return errors.Wrap(err, "set lock timeout")
		}
	}

	if err := fn(ctx, &saleTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// GetByOrderNumber implements sale.Repository.
func (s *SaleStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*sale.Sale, error) {
	var (
		sl     sale.Sale
		method string
		status string
	)
	err := s.pool.QueryRow(ctx, getSaleSQL, orderNumber).Scan(
		&sl.ID, &sl.OrderNumber, &sl.CreatedBy, &method,
		&sl.Totals.Subtotal, &sl.Totals.Discount, &sl.Totals.TaxRate, &sl.Totals.TaxAmount,
		&sl.Totals.Total, &sl.Totals.Paid, &sl.Totals.Balance, &sl.Totals.Change,
		&status, &sl.Active, &sl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get sale %q", orderNumber)
	}
	sl.PaymentMethod = sale.PaymentMethod(method)
	sl.Totals.Status = sale.Status(status)

	rows, err := s.pool.Query(ctx, getSaleItemsSQL, sl.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "get items of sale %q", orderNumber)
	}
	sl.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (sale.Item, error) {
		var (
			it       sale.Item
			brand    string
			strength string
		)
		err := row.Scan(&it.MedicineID, &brand, &strength, &it.Quantity, &it.UnitPrice, &it.LineTotal)
		it.Name = medicine.Medicine{BrandName: brand, Strength: strength}.DisplayName()
		return it, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan items of sale %q", orderNumber)
	}
	return &sl, nil
}

type saleTx struct {
	tx pgx.Tx
}

func (t *saleTx) LockMedicines(ctx context.Context, ids []int64) (map[int64]medicine.Medicine, error) {
	rows, err := t.tx.Query(ctx, lockMedicinesSQL, ids)
	if err != nil {
		return nil, classify(err, "select medicines for update")
	}
	list, err := pgx.CollectRows(rows, scanMedicine)
	if err != nil {
		return nil, classify(err, "select medicines for update")
	}

	out := make(map[int64]medicine.Medicine, len(list))
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}

func (t *saleTx) LockOrderSequence(ctx context.Context, day time.Time) error {
	y, m, d := day.Date()
	key := int32(y*10000 + int(m)*100 + d)
	if _, err := t.tx.Exec(ctx, lockOrderSequenceSQL, orderSequenceLock, key); err != nil {
		return classify(err, "advisory lock")
	}
	return nil
}

func (t *saleTx) CountSales(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, countSalesSQL, from, to).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count sales")
	}
	return n, nil
}

func (t *saleTx) InsertSale(ctx context.Context, s *sale.Sale) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, insertSaleSQL,
		s.OrderNumber, s.CreatedBy, string(s.PaymentMethod),
		s.Totals.Subtotal, s.Totals.Discount, s.Totals.TaxRate, s.Totals.TaxAmount,
		s.Totals.Total, s.Totals.Paid, s.Totals.Balance, s.Totals.Change,
		string(s.Totals.Status), s.Active, s.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "insert sale %s", s.OrderNumber)
	}
	return id, nil
}

func (t *saleTx) InsertItems(ctx context.Context, saleID int64, items []sale.Item) error {
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{"sale_items"}, saleItemColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{saleID, it.MedicineID, it.Quantity, it.UnitPrice, it.LineTotal}, nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "copy sale items")
	}
	if int(n) != len(items) {
		return errors.Errorf("copied %d of %d sale items", n, len(items))
	}
	return nil
}

func (t *saleTx) DecrementStock(ctx context.Context, medicineID, qty int64) error {
	if qty <= 0 {
		return errors.Errorf("decrement stock of medicine %d by non-positive %d", medicineID, qty)
	}
	tag, err := t.tx.Exec(ctx, decrementStockSQL, qty, medicineID)
	if err != nil {
		return classify(err, "decrement stock")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	stockErr := &sale.InsufficientStockError{MedicineID: medicineID, Requested: qty}
	var brand, strength string
	err = t.tx.QueryRow(ctx, stockLevelSQL, medicineID).Scan(&brand, &strength, &stockErr.Available)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(err, "read stock level")
	}
	stockErr.Name = medicine.Medicine{BrandName: brand, Strength: strength}.DisplayName()
	return stockErr
}
