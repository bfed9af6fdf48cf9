package quotation

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals holds the computed pricing of a quotation.
type Totals struct {
	TotalPrice     decimal.Decimal
	DiscountPct    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
}

// ComputeTotals prices the line items and applies the header discount.
// When both a percentage and an absolute amount are supplied, the
// percentage wins and the amount is recomputed from it.
func ComputeTotals(lines []LineInput, discountPct, discountAmount *decimal.Decimal) Totals {
	total := decimal.Zero
	for _, line := range lines {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if line.DiscountPct.IsPositive() {
			lineTotal = lineTotal.Sub(lineTotal.Mul(line.DiscountPct).Div(hundred))
		}
		total = total.Add(lineTotal)
	}

	t := Totals{TotalPrice: total}
	switch {
	case discountPct != nil && discountPct.IsPositive():
		t.DiscountPct = *discountPct
		t.DiscountAmount = total.Mul(*discountPct).Div(hundred)
	case discountAmount != nil && discountAmount.IsPositive():
		t.DiscountAmount = *discountAmount
	}
	if t.DiscountAmount.GreaterThan(total) {
		t.DiscountAmount = total
	}
	t.FinalPrice = total.Sub(t.DiscountAmount)
	return t
}
