package checkout

import (
	"context"
	"errors"

	"bloomcart-be/internal/storefront"

	"github.com/shopspring/decimal"
)

var ErrDistrictRequired = errors.New("district is required for non-pickup delivery")

// ComputeTotal prices a cart for a delivery mode: shipping is free for pickup,
// otherwise the district's fixed cost. Client-side totals are display hints only;
// anything charged is derived here.
func ComputeTotal(lines []CartLine, mode DeliveryMode, district *storefront.District) (Totals, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}

	shipping := decimal.Zero
	if mode != ModePickup {
		if district == nil {
			return Totals{}, ErrDistrictRequired
		}
		shipping = district.ShippingCost
	}

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}, nil
}

// DistrictLookup is the part of the storefront client pricing needs.
type DistrictLookup interface {
	District(ctx context.Context, id string) (*storefront.District, error)
}

// Pricer re-derives totals server-side from a cart and the district table.
type Pricer struct {
	districts DistrictLookup
}

func NewPricer(districts DistrictLookup) *Pricer {
	return &Pricer{districts: districts}
}

func (p *Pricer) Price(ctx context.Context, lines []CartLine, delivery DeliveryInfo) (Totals, error) {
	var district *storefront.District
	if delivery.Mode != ModePickup {
		if delivery.DistrictID == "" {
			return Totals{}, ErrDistrictRequired
		}
		d, err := p.districts.District(ctx, delivery.DistrictID)
		if err != nil {
			return Totals{}, err
		}
		district = d
	}
	return ComputeTotal(lines, delivery.Mode, district)
}
