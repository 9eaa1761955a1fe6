package dto

import "staysettle/internal/domain/pricing"

type LineItem struct {
	Name   string   `json:"name"`
	Amount MoneyDTO `json:"amount"`
}

type PriceBreakdown struct {
	Nights    int        `json:"nights"`
	Nightly   MoneyDTO   `json:"nightly"`
	Subtotal  MoneyDTO   `json:"subtotal"`
	Fees      []LineItem `json:"fees"`
	Discounts []LineItem `json:"discounts"`
	Total     MoneyDTO   `json:"total"`
}

func MapPriceBreakdown(p pricing.PriceBreakdown) PriceBreakdown {
	out := PriceBreakdown{
		Nights:    p.Nights,
		Nightly:   MapMoney(p.Nightly),
		Subtotal:  MapMoney(p.Subtotal),
		Fees:      make([]LineItem, 0, len(p.Fees)),
		Discounts: make([]LineItem, 0, len(p.Discounts)),
		Total:     MapMoney(p.Total),
	}
	for _, fee := range p.Fees {
		out.Fees = append(out.Fees, LineItem{Name: fee.Name, Amount: MapMoney(fee.Amount)})
	}
	for _, d := range p.Discounts {
		out.Discounts = append(out.Discounts, LineItem{Name: d.Name, Amount: MapMoney(d.Amount)})
	}
	return out
}
