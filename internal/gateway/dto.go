package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

type dealerOrderLineRequest struct {
	VariantID   int64           `json:"variant_id" validate:"required"`
	ColorID     int64           `json:"color_id" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

type createDealerOrderRequest struct {
	DealerID int64                    `json:"dealer_id" validate:"required"`
	Notes    string                   `json:"notes"`
	Lines    []dealerOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createCustomerOrderRequest struct {
	CustomerID  int64           `json:"customer_id" validate:"required"`
	VariantID   int64           `json:"variant_id" validate:"required"`
	ColorID     int64           `json:"color_id" validate:"required"`
	UnitID      *int64          `json:"unit_id"`
	TotalAmount decimal.Decimal `json:"total_amount" validate:"required"`
	Notes       string          `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type quoteRequest struct {
	DiscountPct    *decimal.Decimal `json:"discount_pct"`
	DiscountAmount *decimal.Decimal `json:"discount_amount"`
	ValidityDays   int              `json:"validity_days" validate:"min=0"`
	Notes          string           `json:"notes"`
}

type registerUnitRequest struct {
	VIN           string          `json:"vin" validate:"required"`
	ChassisNumber string          `json:"chassis_number" validate:"required"`
	VariantID     int64           `json:"variant_id" validate:"required"`
	ColorID       int64           `json:"color_id" validate:"required"`
	WarehouseID   int64           `json:"warehouse_id" validate:"required"`
	Price         decimal.Decimal `json:"price" validate:"required"`
}

type reserveUnitRequest struct {
	Track   string `json:"track" validate:"required,oneof=dealer customer"`
	OrderID int64  `json:"order_id" validate:"required"`
}

type recordPaymentRequest struct {
	Track     string          `json:"track" validate:"required,oneof=dealer customer"`
	OrderID   int64           `json:"order_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference"`
}

type scheduleDeliveryRequest struct {
	Track         string    `json:"track" validate:"required,oneof=dealer customer"`
	OrderID       int64     `json:"order_id" validate:"required"`
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
	Address       string    `json:"address" validate:"required"`
	Carrier       string    `json:"carrier"`
	Notes         string    `json:"notes"`
}
