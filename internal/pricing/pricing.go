// Package pricing derives booking amounts from a tractor's per-hectare rate
// and the serviced area. All functions are pure; amounts are in XOF, which has
// no sub-units, so everything rounds to whole francs.
package pricing

import "math"

// CommissionRate is the platform's fixed cut of the total price.
const CommissionRate = 0.10

// SquareMetersPerHectare converts the alternate area input.
const SquareMetersPerHectare = 10000.0

// Quote bundles the derived amounts for one booking.
type Quote struct {
	TotalPrice    int64
	Commission    int64
	OwnerEarnings int64
}

// HectaresFromSquareMeters converts an area given in square meters.
func HectaresFromSquareMeters(sqm float64) float64 {
	return sqm / SquareMetersPerHectare
}

// Total computes the booking price for a rate and area.
func Total(ratePerHectare int64, hectares float64) int64 {
	return int64(math.Round(float64(ratePerHectare) * hectares))
}

// Commission computes the platform fee on a total price.
func Commission(total int64) int64 {
	return int64(math.Round(float64(total) * CommissionRate))
}

// Compute derives the full quote. The identity
// Commission + OwnerEarnings == TotalPrice always holds because earnings are
// defined as the remainder.
func Compute(ratePerHectare int64, hectares float64) Quote {
	total := Total(ratePerHectare, hectares)
	commission := Commission(total)
	return Quote{
		TotalPrice:    total,
		Commission:    commission,
		OwnerEarnings: total - commission,
	}
}
