package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type LineItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Taxable     *bool           `json:"taxable,omitempty"`
	SortOrder   *int            `json:"sort_order,omitempty"`
}

func (i LineItemInput) IsTaxable() bool {
	return i.Taxable == nil || *i.Taxable
}

// Pricing carries the invoice-level inputs of the totals calculation.
// DiscountPercentage wins over DiscountAmount when both are set.
type Pricing struct {
	DiscountPercentage *decimal.Decimal
	DiscountAmount     *decimal.Decimal
	TaxRate            decimal.Decimal
}

type ItemTotals struct {
	Total     decimal.Decimal
	TaxAmount decimal.Decimal
}

type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	Items          []ItemTotals
}

// ComputeTotals prices a set of line items. All amounts are rounded to two
// decimals; total = subtotal - discount + tax.
func ComputeTotals(items []LineItemInput, pricing Pricing) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyLineItems
	}
	if pricing.TaxRate.IsNegative() || pricing.TaxRate.GreaterThan(hundred) {
		return Totals{}, ErrInvalidTaxRate
	}

	out := Totals{Items: make([]ItemTotals, len(items))}
	subtotal := decimal.Zero
	taxableGross := decimal.Zero
	for i, item := range items {
		if !item.Quantity.IsPositive() {
			return Totals{}, ErrInvalidQuantity
		}
		if item.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidUnitPrice
		}
		lineTotal := item.Quantity.Mul(item.UnitPrice).Round(2)
		out.Items[i].Total = lineTotal
		subtotal = subtotal.Add(lineTotal)
		if item.IsTaxable() {
			taxableGross = taxableGross.Add(lineTotal)
		}
	}

	discount := decimal.Zero
	switch {
	case pricing.DiscountPercentage != nil:
		pct := *pricing.DiscountPercentage
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return Totals{}, ErrInvalidDiscount
		}
		discount = subtotal.Mul(pct).Div(hundred).Round(2)
	case pricing.DiscountAmount != nil:
		discount = pricing.DiscountAmount.Round(2)
		if discount.IsNegative() || discount.GreaterThan(subtotal) {
			return Totals{}, ErrInvalidDiscount
		}
	}

	taxable := taxableGross.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(pricing.TaxRate).Div(hundred).Round(2)

	// Per-item tax is the item's share of the invoice tax.
	if taxableGross.IsPositive() {
		for i, item := range items {
			if !item.IsTaxable() {
				continue
			}
			out.Items[i].TaxAmount = tax.Mul(out.Items[i].Total).Div(taxableGross).Round(2)
		}
	}

	out.Subtotal = subtotal
	out.DiscountAmount = discount
	out.TaxableAmount = taxable
	out.TaxAmount = tax
	out.Total = subtotal.Sub(discount).Add(tax)
	return out, nil
}
