package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRouteNotFound is returned when no shipping rates exist for a route.
var ErrRouteNotFound = errors.New("rates: shipping route not found")

// ShippingLegs are the resolved per-leg shipping costs for a route, in
// origin currency.
type ShippingLegs struct {
	Merchant      decimal.Decimal `json:"merchant"`
	International decimal.Decimal `json:"international"`
	Domestic      decimal.Decimal `json:"domestic"`
}

// Total sums all shipping legs.
func (l ShippingLegs) Total() decimal.Decimal {
	return l.Merchant.Add(l.International).Add(l.Domestic)
}

// RouteRates is one row of the shipping rate table. The international leg
// is weight-based; the other legs and the handling charge are flat.
type RouteRates struct {
	OriginCountry      string          `json:"originCountry"`
	DestinationCountry string          `json:"destinationCountry"`
	MerchantAmount     decimal.Decimal `json:"merchantAmount"`
	InternationalBase  decimal.Decimal `json:"internationalBase"`
	InternationalPerKg decimal.Decimal `json:"internationalPerKg"`
	DomesticAmount     decimal.Decimal `json:"domesticAmount"`
	HandlingAmount     decimal.Decimal `json:"handlingAmount"`
}

// RouteSource fetches shipping rate rows from the backing store.
type RouteSource interface {
	GetRouteRates(ctx context.Context, originCountry, destinationCountry string) (RouteRates, error)
}

// Table resolves shipping legs for a route, consulting the cache first.
type Table struct {
	Source RouteSource
	Cache  *Cache
}

// Resolve looks up the route's rates and computes the shipping legs and
// handling charge for the given total chargeable weight.
func (t *Table) Resolve(ctx context.Context, originCountry, destinationCountry string, totalWeightKg decimal.Decimal) (ShippingLegs, decimal.Decimal, error) {
	if t == nil || t.Source == nil {
		return ShippingLegs{}, decimal.Zero, errors.New("rates: shipping table not configured")
	}
	if totalWeightKg.IsNegative() {
		return ShippingLegs{}, decimal.Zero, fmt.Errorf("rates: weight must not be negative, got %s", totalWeightKg)
	}

	key := routeKey(originCountry, destinationCountry)
	var row RouteRates
	found, err := t.Cache.GetJSON(ctx, key, &row)
	if err != nil || !found {
		row, err = t.Source.GetRouteRates(ctx, originCountry, destinationCountry)
		if err != nil {
			return ShippingLegs{}, decimal.Zero, err
		}
		_ = t.Cache.SetJSON(ctx, key, row)
	}

	international := row.InternationalBase.Add(row.InternationalPerKg.Mul(totalWeightKg)).Round(2)
	legs := ShippingLegs{
		Merchant:      row.MerchantAmount,
		International: international,
		Domestic:      row.DomesticAmount,
	}
	return legs, row.HandlingAmount, nil
}

func routeKey(origin, destination string) string {
	return "rates:route:" + origin + ":" + destination
}
