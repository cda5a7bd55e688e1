// Package model defines the domain records the sync engine moves around:
// products with their expense and labor lines, planning scenarios with
// profitability goals, and user settings. The engine itself treats these as
// JSON-serializable payloads; only the defensive decoder in this package
// knows their shape.
package model

import "github.com/google/uuid"

// shortIDLen is the number of UUID characters kept for record IDs.
// Short IDs are friendlier in CLI output and match the remote documents
// written by earlier clients.
const shortIDLen = 8

// NewID returns a fresh 8-character record ID.
func NewID() string {
	return uuid.NewString()[:shortIDLen]
}

// ExpenseLine is a single material/overhead cost entry on a product.
type ExpenseLine struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TimeLine is a single labor entry on a product. Value is minutes spent;
// Rating is the maker's 0-3 enjoyment rating for that kind of work.
type TimeLine struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Rating int     `json:"rating"`
}

// Product is one sellable item: its costs, labor, and asking price.
type Product struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Expenses    []ExpenseLine `json:"expenses"`
	Time        []TimeLine    `json:"time"`
	Price       float64       `json:"price"`
}

// HourGoals bounds the hours a maker wants to work in a timespan.
type HourGoals struct {
	TargetHours float64 `json:"targetHours"`
	MaxHours    float64 `json:"maxHours"`
}

// ProfitGoals bounds the profit a maker wants to earn in a timespan.
type ProfitGoals struct {
	Target float64 `json:"target"`
	Min    float64 `json:"min"`
}

// Goals are the profitability targets a scenario is evaluated against.
type Goals struct {
	Time         HourGoals   `json:"time"`
	Profit       ProfitGoals `json:"profit"`
	TimespanDays int         `json:"timespanDays"`
}

// DefaultGoals returns the goals a newly created scenario starts with.
func DefaultGoals() Goals {
	return Goals{
		Time:         HourGoals{TargetHours: 30, MaxHours: 50},
		Profit:       ProfitGoals{Target: 1200, Min: 800},
		TimespanDays: 5,
	}
}

// Scenario is a named production plan: how many of each product to make
// and the goals to rate that plan against. Quantities is keyed by
// product ID.
type Scenario struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Quantities map[string]int `json:"quantities"`
	Goals      Goals          `json:"goals"`
}

// Settings holds per-user preferences synced alongside the inventory.
type Settings struct {
	Username string `json:"username"`
}

// Bundle is the full synced state published as a single remote document
// per user. LastUpdated is the logical timestamp used for last-writer-wins
// conflict resolution and strictly increases on every local publish.
type Bundle struct {
	LastUpdated        int64      `json:"lastUpdated"`
	Products           []Product  `json:"products"`
	Scenarios          []Scenario `json:"scenarios"`
	SelectedScenarioID string     `json:"selectedScenarioId"`
	Settings           Settings   `json:"settings"`
}

// EnsureLineIDs assigns fresh IDs to any expense or time line missing one.
// Remote documents written by older clients predate per-line IDs.
func EnsureLineIDs(products []Product) {
	for pi := range products {
		p := &products[pi]
		for i := range p.Expenses {
			if p.Expenses[i].ID == "" {
				p.Expenses[i].ID = NewID()
			}
		}

		for i := range p.Time {
			if p.Time[i].ID == "" {
				p.Time[i].ID = NewID()
			}
		}
	}
}
