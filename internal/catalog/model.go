// Package catalog provides read-only lookups for vehicle variants,
// colors and warehouses. The workflow core never mutates catalog data.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Variant describes a sellable vehicle configuration.
type Variant struct {
	ID         int64           `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	BrandName  string          `json:"brand_name"`
	ModelName  string          `json:"model_name"`
	BatteryKWh float64         `json:"battery_kwh"`
	RangeKM    int             `json:"range_km"`
	BasePrice  decimal.Decimal `json:"base_price"`
	IsActive   bool            `json:"is_active"`
}

// Color is a paint option.
type Color struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	HexCode string `json:"hex_code"`
}

// Warehouse is a physical storage location for vehicle units.
type Warehouse struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ErrNotFound indicates a missing catalog record.
var ErrNotFound = errors.New("catalog: not found")
