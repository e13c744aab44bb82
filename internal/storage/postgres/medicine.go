package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

const medicineColumns = `id, brand_name, strength, quantity, sell_price, buy_price, expiry_date, is_active`

const (
	listMedicinesSQL = `SELECT ` + medicineColumns + ` FROM medicines
		WHERE is_active AND ($1 = '' OR brand_name ILIKE '%' || $1 || '%' ESCAPE '\')
		ORDER BY brand_name, strength`

	getMedicineByIDSQL = `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`

	upsertMedicineSQL = `INSERT INTO medicines
		(brand_name, strength, quantity, sell_price, buy_price, expiry_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (brand_name, strength) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			sell_price = EXCLUDED.sell_price,
			buy_price = EXCLUDED.buy_price,
			expiry_date = EXCLUDED.expiry_date,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING id`
)

// likeEscaper makes user input match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var _ medicine.Repository = (*MedicineRepository)(nil)

// MedicineRepository implements medicine.Repository backed by PostgreSQL.
type MedicineRepository struct {
	pool *pgxpool.Pool
}

// NewMedicineRepository returns a MedicineRepository that uses the given pool.
func NewMedicineRepository(pool *pgxpool.Pool) *MedicineRepository {
	return &MedicineRepository{pool: pool}
}

// List returns active medicines matching filter, ordered by name.
func (r *MedicineRepository) List(ctx context.Context, filter medicine.ListFilter) ([]medicine.Medicine, error) {
	rows, err := r.pool.Query(ctx, listMedicinesSQL, likeEscaper.Replace(filter.Query))
	if err != nil {
		return nil, errors.Wrap(err, "list medicines")
	}
	return pgx.CollectRows(rows, scanMedicine)
}

// GetByID returns a single medicine, active or not.
func (r *MedicineRepository) GetByID(ctx context.Context, id int64) (*medicine.Medicine, error) {
	rows, err := r.pool.Query(ctx, getMedicineByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get medicine %d", id)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMedicine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, medicine.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get medicine %d", id)
	}
	return &m, nil
}

// Upsert inserts m or updates the row with the same brand name and strength,
// then sets m.ID.
func (r *MedicineRepository) Upsert(ctx context.Context, m *medicine.Medicine) error {
	err := r.pool.QueryRow(ctx, upsertMedicineSQL,
		m.BrandName, m.Strength, m.Quantity, m.SellPrice, m.BuyPrice, m.ExpiryDate, m.Active,
	).Scan(&m.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert medicine %q", m.DisplayName())
	}
	return nil
}

func scanMedicine(row pgx.CollectableRow) (medicine.Medicine, error) {
	var m medicine.Medicine
	err := row.Scan(
		&m.ID, &m.BrandName, &m.Strength, &m.Quantity,
		&m.SellPrice, &m.BuyPrice, &m.ExpiryDate, &m.Active,
	)
	return m, err
}
