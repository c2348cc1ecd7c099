package domain

import "github.com/shopspring/decimal"

const (
	// FreeShippingAboveCents is the subtotal strictly above which shipping is free.
	FreeShippingAboveCents int64 = 10000
	FlatShippingCents      int64 = 1000
)

var taxRate = decimal.RequireFromString("0.07")

// Pricing is the money breakdown of a cart or order, in cents.
type Pricing struct {
	SubtotalCents int64 `json:"subtotalCents"`
	ShippingCents int64 `json:"shippingCents"`
	TaxCents      int64 `json:"taxCents"`
	TotalCents    int64 `json:"totalCents"`
}

// ComputePricing derives shipping, tax and total from a subtotal. Every place
// that prices a cart or order goes through here.
func ComputePricing(subtotalCents int64) Pricing {
	shipping := FlatShippingCents
	if subtotalCents > FreeShippingAboveCents {
		shipping = 0
	}
	tax := decimal.NewFromInt(subtotalCents).Mul(taxRate).Round(0).IntPart()
	return Pricing{
		SubtotalCents: subtotalCents,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    subtotalCents + shipping + tax,
	}
}

// PriceLines prices a set of lines using their unit prices.
func PriceLines(lines []PricedLine) Pricing {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.PriceCents * int64(l.Quantity)
	}
	return ComputePricing(subtotal)
}
