// Package pricing derives transaction totals. It does no I/O.
//
// Amounts are integer cents. Percentages are exact decimals in [0,100] of any
// scale. Each derived amount is rounded half-up to a whole cent exactly once:
//
//	discount = round(subtotal * discountPct / 100)
//	tax      = round((subtotal - discount) * taxPct / 100)
//	final    = subtotal - discount + tax
package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Line is one priced cart line.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// Total returns the line total in cents.
func (l Line) Total() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// Totals holds the monetary fields of a transaction.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TaxCents      int64 `json:"tax_cents"`
	FinalCents    int64 `json:"final_cents"`
}

// Compute prices lines with a flat discount and tax percentage.
func Compute(lines []Line, discountPct, taxPct decimal.Decimal) (Totals, error) {
	if err := ValidatePercent("discount_percentage", discountPct); err != nil {
		return Totals{}, err
	}
	if err := ValidatePercent("tax_percentage", taxPct); err != nil {
		return Totals{}, err
	}

	var subtotal int64
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Totals{}, invalid("quantity must be positive", map[string]any{"line": i, "quantity": line.Quantity})
		}
		if line.UnitPriceCents < 0 {
			return Totals{}, invalid("unit price must not be negative", map[string]any{"line": i})
		}
		if line.UnitPriceCents > 0 && int64(line.Quantity) > math.MaxInt64/line.UnitPriceCents {
			return Totals{}, invalid("line total overflows", map[string]any{"line": i})
		}
		total := line.Total()
		if subtotal > math.MaxInt64-total {
			return Totals{}, invalid("subtotal overflows", nil)
		}
		subtotal += total
	}

	return derive(subtotal, discountPct, taxPct), nil
}

// Verify recomputes the derived fields of t from its subtotal and reports the
// first field that does not match.
func Verify(t Totals, discountPct, taxPct decimal.Decimal) error {
	if t.SubtotalCents < 0 {
		return fmt.Errorf("subtotal %d is negative", t.SubtotalCents)
	}
	want := derive(t.SubtotalCents, discountPct, taxPct)
	switch {
	case want.DiscountCents != t.DiscountCents:
		return fmt.Errorf("discount %d, want %d", t.DiscountCents, want.DiscountCents)
	case want.TaxCents != t.TaxCents:
		return fmt.Errorf("tax %d, want %d", t.TaxCents, want.TaxCents)
	case want.FinalCents != t.FinalCents:
		return fmt.Errorf("final %d, want %d", t.FinalCents, want.FinalCents)
	}
	return nil
}

// ValidatePercent rejects values outside [0,100].
func ValidatePercent(field string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return invalid(field+" must be between 0 and 100", map[string]any{"field": field, "value": pct.String()})
	}
	return nil
}

func derive(subtotal int64, discountPct, taxPct decimal.Decimal) Totals {
	base := decimal.NewFromInt(subtotal)
	discount := percentOf(base, discountPct)
	taxable := subtotal - discount
	tax := percentOf(decimal.NewFromInt(taxable), taxPct)
	return Totals{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TaxCents:      tax,
		FinalCents:    taxable + tax,
	}
}

// percentOf rounds half away from zero; amounts are never negative here, so
// that is half-up.
func percentOf(amount, pct decimal.Decimal) int64 {
	return amount.Mul(pct).Div(hundred).Round(0).IntPart()
}

func invalid(message string, details map[string]any) error {
	err := pkgerrors.New(pkgerrors.CodeInvalidParameter, message)
	if details != nil {
		err = err.WithDetails(details)
	}
	return err
}
