package pricing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/priceloom/priceloom/internal/model"
)

// testGoals yields minRate 16, midRate 25.333..., targetRate 40.
func testGoals() *model.Goals {
	return &model.Goals{
		Time:         model.HourGoals{TargetHours: 30, MaxHours: 50},
		Profit:       model.ProfitGoals{Target: 1200, Min: 800},
		TimespanDays: 5,
	}
}

func TestMetrics_Totals(t *testing.T) {
	t.Parallel()

	p := &model.Product{
		ID:    "mug-01",
		Price: 49,
		Expenses: []model.ExpenseLine{
			{ID: "e1", Name: "materials", Value: 25},
			{ID: "e2", Name: "shipping", Value: 10},
		},
		Time: []model.TimeLine{
			{ID: "t1", Name: "throwing", Value: 60},
			{ID: "t2", Name: "glazing", Value: 30},
		},
	}

	m := Metrics(p, testGoals())

	if m.Expenses != 35 {
		t.Errorf("Expenses = %v, want 35", m.Expenses)
	}

	if m.Time != 90 {
		t.Errorf("Time = %v, want 90", m.Time)
	}

	if m.Profit != 14 {
		t.Errorf("Profit = %v, want 14", m.Profit)
	}

	// 14 profit over 1.5 hours.
	if math.Abs(m.HourlyRate-9.333333) > 0.0001 {
		t.Errorf("HourlyRate = %v, want ~9.33", m.HourlyRate)
	}

	if m.Profitability != RatingUnprofitable {
		t.Errorf("Profitability = %d, want %d", m.Profitability, RatingUnprofitable)
	}
}

func TestRateProfitability_Buckets(t *testing.T) {
	t.Parallel()

	goals := testGoals()

	tests := []struct {
		name string
		rate float64
		want int
	}{
		{"below min rate", 10, RatingUnprofitable},
		{"at min rate", 16, RatingBelowTarget},
		{"between min and mid", 20, RatingBelowTarget},
		{"between mid and target", 30, RatingNearTarget},
		{"at target rate", 40, RatingOnTarget},
		{"far above target", 95, RatingOnTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RateProfitability(tt.rate, goals); got != tt.want {
				t.Errorf("RateProfitability(%v) = %d, want %d", tt.rate, got, tt.want)
			}
		})
	}
}

func TestMetrics_NoLaborLines(t *testing.T) {
	t.Parallel()

	// The default state of a freshly added product: a price but no time
	// lines yet.
	p := &model.Product{ID: "p1", Price: 10}

	m := Metrics(p, testGoals())

	if m.HourlyRate != 0 {
		t.Errorf("HourlyRate = %v, want 0 for a product with no labor", m.HourlyRate)
	}

	if m.Profit != 10 {
		t.Errorf("Profit = %v, want 10", m.Profit)
	}

	if m.Profitability != RatingUnprofitable {
		t.Errorf("Profitability = %d, want %d", m.Profitability, RatingUnprofitable)
	}

	// Metrics flow straight into JSON command output; a non-finite rate
	// would make encoding fail.
	if _, err := json.Marshal(m); err != nil {
		t.Errorf("Marshal: %v", err)
	}
}

func TestRateProfitability_DegenerateInputs(t *testing.T) {
	t.Parallel()

	goals := testGoals()

	if got := RateProfitability(math.NaN(), goals); got != RatingUnprofitable {
		t.Errorf("NaN rate = %d, want 0", got)
	}

	// Degenerate goals (zero hours) can still hand callers an Inf rate.
	if got := RateProfitability(math.Inf(1), goals); got != RatingUnprofitable {
		t.Errorf("Inf rate = %d, want 0", got)
	}

	if got := RateProfitability(100, nil); got != RatingUnprofitable {
		t.Errorf("nil goals = %d, want 0", got)
	}
}

func TestMetricsForAll_KeyedByID(t *testing.T) {
	t.Parallel()

	products := []model.Product{
		{ID: "p1", Price: 100, Time: []model.TimeLine{{ID: "t", Value: 60}}},
		{ID: "p2", Price: 10},
	}

	all := MetricsForAll(products, testGoals())
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	if all["p1"].HourlyRate != 100 {
		t.Errorf("p1 HourlyRate = %v, want 100", all["p1"].HourlyRate)
	}

	if all["p1"].Profitability != RatingOnTarget {
		t.Errorf("p1 Profitability = %d, want %d", all["p1"].Profitability, RatingOnTarget)
	}

	// p2 has no labor: infinite rate must not panic and rates 0.
	if all["p2"].Profitability != RatingUnprofitable {
		t.Errorf("p2 Profitability = %d, want 0", all["p2"].Profitability)
	}
}
