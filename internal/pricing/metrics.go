// Package pricing computes derived profitability metrics from products and
// scenario goals. Everything here is a pure function of its inputs: the
// state store calls into this package when a derived read occurs, and tests
// can call it directly without any store wiring.
package pricing

import (
	"math"

	"github.com/priceloom/priceloom/internal/model"
)

// Rating buckets for profitability, worst to best.
const (
	RatingUnprofitable = 0
	RatingBelowTarget  = 1
	RatingNearTarget   = 2
	RatingOnTarget     = 3
)

const minutesPerHour = 60

// ProductMetrics are the derived numbers for one product.
type ProductMetrics struct {
	ID            string  `json:"id"`
	Expenses      float64 `json:"expenses"`
	Time          float64 `json:"time"` // total labor minutes
	Profit        float64 `json:"profit"`
	HourlyRate    float64 `json:"hourlyRate"`
	Profitability int     `json:"profitability"`
}

// Metrics computes the derived metrics for a single product. goals may be
// nil when no scenario is selected; the profitability rating is then 0.
func Metrics(p *model.Product, goals *model.Goals) ProductMetrics {
	var expenses float64
	for _, e := range p.Expenses {
		expenses += e.Value
	}

	var minutes float64
	for _, tl := range p.Time {
		minutes += tl.Value
	}

	profit := p.Price - expenses

	// A product with no labor lines has no meaningful rate; dividing
	// would produce Inf or NaN, which encoding/json cannot marshal.
	var hourlyRate float64
	if minutes > 0 {
		hourlyRate = profit / (minutes / minutesPerHour)
	}

	return ProductMetrics{
		ID:            p.ID,
		Expenses:      expenses,
		Time:          minutes,
		Profit:        profit,
		HourlyRate:    hourlyRate,
		Profitability: RateProfitability(hourlyRate, goals),
	}
}

// MetricsForAll computes metrics for every product, keyed by product ID.
func MetricsForAll(products []model.Product, goals *model.Goals) map[string]ProductMetrics {
	result := make(map[string]ProductMetrics, len(products))
	for i := range products {
		result[products[i].ID] = Metrics(&products[i], goals)
	}

	return result
}

// RateProfitability buckets an hourly rate against scenario goals.
//
// Three reference rates are derived from the goals: the minimum viable rate
// (min profit over max hours), the target rate (target profit over target
// hours), and their midpoint blend. The rating counts how many of those
// thresholds the product's hourly rate clears.
func RateProfitability(hourlyRate float64, goals *model.Goals) int {
	if goals == nil || math.IsNaN(hourlyRate) || math.IsInf(hourlyRate, 0) {
		return RatingUnprofitable
	}

	minRate := goals.Profit.Min / goals.Time.MaxHours
	midRate := (goals.Profit.Target/goals.Time.MaxHours + goals.Profit.Min/goals.Time.TargetHours) / 2
	targetRate := goals.Profit.Target / goals.Time.TargetHours

	switch {
	case hourlyRate < minRate:
		return RatingUnprofitable
	case hourlyRate < midRate:
		return RatingBelowTarget
	case hourlyRate < targetRate:
		return RatingNearTarget
	default:
		return RatingOnTarget
	}
}
