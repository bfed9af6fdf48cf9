package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads catalog tables.
type Repository interface {
	GetVariant(ctx context.Context, id int64) (*Variant, error)
	ListVariants(ctx context.Context) ([]Variant, error)
	GetColor(ctx context.Context, id int64) (*Color, error)
	ListColors(ctx context.Context) ([]Color, error)
	GetWarehouse(ctx context.Context, id int64) (*Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, brand_name, model_name, battery_kwh, range_km, base_price, is_active
FROM variants WHERE id=$1`, id).Scan(&v.ID, &v.Code, &v.Name, &v.BrandName, &v.ModelName, &v.BatteryKWh, &v.RangeKM, &v.BasePrice, &v.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *repository) ListVariants(ctx context.Context) ([]Variant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, brand_name, model_name, battery_kwh, range_km, base_price, is_active
FROM variants WHERE is_active ORDER BY brand_name, model_name, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.BrandName, &v.ModelName, &v.BatteryKWh, &v.RangeKM, &v.BasePrice, &v.IsActive); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *repository) GetColor(ctx context.Context, id int64) (*Color, error) {
	var c Color
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, hex_code FROM colors WHERE id=$1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.HexCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListColors(ctx context.Context) ([]Color, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, hex_code FROM colors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var colors []Color
	for rows.Next() {
		var c Color
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.HexCode); err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

func (r *repository) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, address FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, address FROM warehouses ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Address); err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}
