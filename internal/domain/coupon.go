package domain

import "math"

// DiscountType distinguishes percentage discounts from fixed amounts.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a validated discount code scoped to a plan.
type Coupon struct {
	ID           int64        `json:"couponId"`
	Code         string       `json:"code"`
	DiscountType DiscountType `json:"discountType"`
	Discount     float64      `json:"discount"`
}

// PriceQuote is the deterministic result of applying a coupon to a plan fee.
// All amounts are rounded to cents.
type PriceQuote struct {
	Original float64
	Discount float64
	Final    float64
}

// ComputePrice derives the final price for a plan fee with an optional
// coupon applied. The final price is clamped at zero: a discount larger
// than the fee never produces a negative amount.
func ComputePrice(fee float64, coupon *Coupon) PriceQuote {
	quote := PriceQuote{Original: roundCents(fee), Final: roundCents(fee)}
	if coupon == nil {
		return quote
	}

	var discount float64
	switch coupon.DiscountType {
	case DiscountPercentage:
		discount = fee * (coupon.Discount / 100)
	case DiscountFixed:
		discount = coupon.Discount
	default:
		return quote
	}

	final := fee - discount
	if final < 0 {
		final = 0
	}
	quote.Discount = roundCents(discount)
	quote.Final = roundCents(final)
	return quote
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
