// Package state holds the mutable application state (products, scenarios,
// settings) behind explicit query and command methods, with derived pricing
// metrics recomputed lazily on read and an observer mechanism that fires
// once per mutation batch. Every write carries an origin so a remote-applied
// update is distinguishable from a user edit — the sync engine relies on
// that to avoid republishing state it just received.
package state

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/priceloom/priceloom/internal/model"
	"github.com/priceloom/priceloom/internal/pricing"
)

// Field names one observable piece of state.
type Field string

// Observable fields. The first four are synced to the remote bundle;
// SelectedProduct is ephemeral UI state and never published.
const (
	FieldProducts         Field = "products"
	FieldScenarios        Field = "scenarios"
	FieldSelectedScenario Field = "selectedScenarioId"
	FieldSettings         Field = "settings"
	FieldSelectedProduct  Field = "selectedProductId"
)

// SyncedFields returns the fields included in the published bundle.
func SyncedFields() []Field {
	return []Field{FieldProducts, FieldScenarios, FieldSelectedScenario, FieldSettings}
}

// Origin distinguishes who caused a write.
type Origin int

const (
	// OriginLocal marks a user-originated mutation; the sync engine
	// publishes these.
	OriginLocal Origin = iota
	// OriginRemote marks a write applying a received remote snapshot;
	// republishing it would loop forever.
	OriginRemote
)

// String implements fmt.Stringer for log output.
func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}

	return "local"
}

// Change describes one completed mutation batch.
type Change struct {
	Origin Origin
	Fields []Field
}

// Touched reports whether the batch modified f.
func (c Change) Touched(f Field) bool {
	for _, cf := range c.Fields {
		if cf == f {
			return true
		}
	}

	return false
}

// Observer receives one callback per completed mutation batch.
type Observer func(Change)

type observation struct {
	fields map[Field]bool
	fn     Observer
}

// Store is the reactive state store. All methods are safe for concurrent
// use; observers run synchronously after the outermost batch completes,
// outside the store lock, in registration order.
type Store struct {
	mu sync.Mutex

	products           []model.Product
	scenarios          []model.Scenario
	selectedScenarioID string
	selectedProductID  string
	settings           model.Settings

	// Derived metrics cache: marked dirty on write, recomputed on read.
	metrics      map[string]pricing.ProductMetrics
	metricsDirty bool

	observers []*observation

	batchDepth    int
	batchFields   map[Field]bool
	batchOrigin   Origin
	notifyRunning bool

	logger *slog.Logger
}

// New creates an empty Store.
func New(logger *slog.Logger) *Store {
	return &Store{
		metricsDirty: true,
		batchFields:  make(map[Field]bool),
		logger:       logger,
	}
}

// Observe registers fn for batches touching any of fields. The callback
// fires once per batch, after its synchronous mutations complete, with
// the batch's origin and touched fields. The returned function removes
// exactly this registration and no other.
func (s *Store) Observe(fields []Field, fn Observer) func() {
	obs := &observation{fields: make(map[Field]bool, len(fields)), fn: fn}
	for _, f := range fields {
		obs.fields[f] = true
	}

	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, o := range s.observers {
			if o == obs {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Batch groups several mutations into one observer notification. Batches
// nest; only the outermost completion notifies.
func (s *Store) Batch(fn func()) {
	s.mu.Lock()
	s.batchDepth++
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.batchDepth--
	done := s.batchDepth == 0
	s.mu.Unlock()

	if done {
		s.flushNotifications()
	}
}

// mutate performs one write under the lock, records the touched fields,
// and notifies observers unless a surrounding Batch defers that.
func (s *Store) mutate(origin Origin, fields []Field, fn func()) {
	s.mu.Lock()

	fn()

	s.metricsDirty = true
	s.batchOrigin = origin

	for _, f := range fields {
		s.batchFields[f] = true
	}

	deferred := s.batchDepth > 0
	s.mu.Unlock()

	if !deferred {
		s.flushNotifications()
	}
}

// flushNotifications snapshots and clears the pending batch, then invokes
// matching observers outside the lock so they may read the store.
func (s *Store) flushNotifications() {
	s.mu.Lock()

	if len(s.batchFields) == 0 {
		s.mu.Unlock()
		return
	}

	change := Change{Origin: s.batchOrigin}
	for f := range s.batchFields {
		change.Fields = append(change.Fields, f)
	}

	s.batchFields = make(map[Field]bool)

	var matched []Observer

	for _, obs := range s.observers {
		for _, f := range change.Fields {
			if obs.fields[f] {
				matched = append(matched, obs.fn)
				break
			}
		}
	}
	s.mu.Unlock()

	s.logger.Debug("state change",
		slog.String("origin", change.Origin.String()),
		slog.Int("fields", len(change.Fields)),
		slog.Int("observers", len(matched)),
	)

	for _, fn := range matched {
		fn(change)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Products returns a snapshot copy of all products.
func (s *Store) Products() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneProducts(s.products)
}

// Scenarios returns a snapshot copy of all scenarios.
func (s *Store) Scenarios() []model.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneScenarios(s.scenarios)
}

// Settings returns the current user settings.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// SelectedScenarioID returns the selected scenario ID, or "".
func (s *Store) SelectedScenarioID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedScenarioID
}

// SelectedProductID returns the selected product ID, or "".
func (s *Store) SelectedProductID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedProductID
}

// SelectedScenario returns a copy of the selected scenario, or nil when
// none is selected or the ID is dangling.
func (s *Store) SelectedScenario() *model.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.scenarios {
		if s.scenarios[i].ID == s.selectedScenarioID {
			sc := cloneScenario(&s.scenarios[i])
			return &sc
		}
	}

	return nil
}

// Product returns a copy of the product with the given ID.
func (s *Store) Product(id string) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findProduct(id)
	if p == nil {
		return model.Product{}, fmt.Errorf("state: no product %q", id)
	}

	return cloneProduct(p), nil
}

// Metrics returns the derived per-product pricing metrics, keyed by
// product ID. The cache is recomputed here when any dependency (products,
// scenarios, scenario selection) changed since the last read, so the
// result always reflects the latest state.
func (s *Store) Metrics() map[string]pricing.ProductMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metricsDirty {
		var goals *model.Goals

		for i := range s.scenarios {
			if s.scenarios[i].ID == s.selectedScenarioID {
				g := s.scenarios[i].Goals
				goals = &g

				break
			}
		}

		s.metrics = pricing.MetricsForAll(s.products, goals)
		s.metricsDirty = false
	}

	result := make(map[string]pricing.ProductMetrics, len(s.metrics))
	for k, v := range s.metrics {
		result[k] = v
	}

	return result
}

// Bundle serializes the synced fields plus the given logical timestamp
// into the document published to the remote store.
func (s *Store) Bundle(lastUpdated int64) model.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.Bundle{
		LastUpdated:        lastUpdated,
		Products:           cloneProducts(s.products),
		Scenarios:          cloneScenarios(s.scenarios),
		SelectedScenarioID: s.selectedScenarioID,
		Settings:           s.settings,
	}
}

// ---------------------------------------------------------------------------
// Commands (user-originated)
// ---------------------------------------------------------------------------

// NewProduct appends an empty product and returns its ID.
func (s *Store) NewProduct() string {
	id := model.NewID()

	s.mutate(OriginLocal, []Field{FieldProducts}, func() {
		s.products = append(s.products, model.Product{
			ID:       id,
			Expenses: []model.ExpenseLine{},
			Time:     []model.TimeLine{},
		})
	})

	return id
}

// DeleteProduct removes the product. Deleting the selected product also
// clears the selection, recorded in the same change batch.
func (s *Store) DeleteProduct(id string) {
	s.mutateChecked(OriginLocal, []Field{FieldProducts}, func() bool {
		if s.selectedProductID == id {
			s.selectedProductID = ""
			s.batchFields[FieldSelectedProduct] = true
		}

		for i := range s.products {
			if s.products[i].ID == id {
				s.products = append(s.products[:i], s.products[i+1:]...)
				break
			}
		}

		return true
	})
}

// SetProductName sets the product's display name.
func (s *Store) SetProductName(id, name string) error {
	return s.editProduct(id, func(p *model.Product) { p.Name = name })
}

// SetProductURL sets the product's listing URL.
func (s *Store) SetProductURL(id, url string) error {
	return s.editProduct(id, func(p *model.Product) { p.URL = url })
}

// SetProductDescription sets the product's description.
func (s *Store) SetProductDescription(id, description string) error {
	return s.editProduct(id, func(p *model.Product) { p.Description = description })
}

// SetPrice sets the product's asking price.
func (s *Store) SetPrice(id string, price float64) error {
	return s.editProduct(id, func(p *model.Product) { p.Price = price })
}

// AddExpense appends an expense line to the product and returns the
// line's ID.
func (s *Store) AddExpense(productID, name string, value float64) (string, error) {
	id := model.NewID()

	err := s.editProduct(productID, func(p *model.Product) {
		p.Expenses = append(p.Expenses, model.ExpenseLine{ID: id, Name: name, Value: value})
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// RemoveExpense deletes an expense line from the product.
func (s *Store) RemoveExpense(productID, expenseID string) error {
	return s.editProduct(productID, func(p *model.Product) {
		for i := range p.Expenses {
			if p.Expenses[i].ID == expenseID {
				p.Expenses = append(p.Expenses[:i], p.Expenses[i+1:]...)
				return
			}
		}
	})
}

// AddTime appends a labor line to the product and returns the line's ID.
func (s *Store) AddTime(productID, name string, minutes float64, rating int) (string, error) {
	id := model.NewID()

	err := s.editProduct(productID, func(p *model.Product) {
		p.Time = append(p.Time, model.TimeLine{ID: id, Name: name, Value: minutes, Rating: rating})
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// RemoveTime deletes a labor line from the product.
func (s *Store) RemoveTime(productID, timeID string) error {
	return s.editProduct(productID, func(p *model.Product) {
		for i := range p.Time {
			if p.Time[i].ID == timeID {
				p.Time = append(p.Time[:i], p.Time[i+1:]...)
				return
			}
		}
	})
}

// editProduct runs a structural edit against one product as a
// FieldProducts mutation. Unknown IDs report an error without notifying.
func (s *Store) editProduct(id string, edit func(*model.Product)) error {
	var found bool

	s.mutateChecked(OriginLocal, []Field{FieldProducts}, func() bool {
		p := s.findProduct(id)
		if p == nil {
			return false
		}

		edit(p)
		found = true

		return true
	})

	if !found {
		return fmt.Errorf("state: no product %q", id)
	}

	return nil
}

// NewScenario appends a scenario with default goals and returns its ID.
func (s *Store) NewScenario() string {
	id := model.NewID()

	s.mutate(OriginLocal, []Field{FieldScenarios}, func() {
		s.scenarios = append(s.scenarios, model.Scenario{
			ID:         id,
			Quantities: map[string]int{},
			Goals:      model.DefaultGoals(),
		})
	})

	return id
}

// DeleteScenario removes the scenario. Deleting the selected scenario
// also clears the selection (a synced field).
func (s *Store) DeleteScenario(id string) {
	s.mutateChecked(OriginLocal, []Field{FieldScenarios}, func() bool {
		if s.selectedScenarioID == id {
			s.selectedScenarioID = ""
			s.batchFields[FieldSelectedScenario] = true
		}

		for i := range s.scenarios {
			if s.scenarios[i].ID == id {
				s.scenarios = append(s.scenarios[:i], s.scenarios[i+1:]...)
				break
			}
		}

		return true
	})
}

// SetScenarioName sets the scenario's display name.
func (s *Store) SetScenarioName(id, name string) error {
	return s.editScenario(id, func(sc *model.Scenario) { sc.Name = name })
}

// SetQuantity sets how many of a product the scenario plans to make.
func (s *Store) SetQuantity(scenarioID, productID string, qty int) error {
	return s.editScenario(scenarioID, func(sc *model.Scenario) {
		if sc.Quantities == nil {
			sc.Quantities = map[string]int{}
		}

		sc.Quantities[productID] = qty
	})
}

// SetGoals replaces the scenario's profitability goals.
func (s *Store) SetGoals(scenarioID string, goals model.Goals) error {
	return s.editScenario(scenarioID, func(sc *model.Scenario) { sc.Goals = goals })
}

// editScenario runs a structural edit against one scenario as a
// FieldScenarios mutation.
func (s *Store) editScenario(id string, edit func(*model.Scenario)) error {
	var found bool

	s.mutateChecked(OriginLocal, []Field{FieldScenarios}, func() bool {
		for i := range s.scenarios {
			if s.scenarios[i].ID == id {
				edit(&s.scenarios[i])
				found = true

				return true
			}
		}

		return false
	})

	if !found {
		return fmt.Errorf("state: no scenario %q", id)
	}

	return nil
}

// SelectScenario sets the selected scenario ID (synced).
func (s *Store) SelectScenario(id string) {
	s.mutate(OriginLocal, []Field{FieldSelectedScenario}, func() {
		s.selectedScenarioID = id
	})
}

// SelectProduct sets the selected product ID (ephemeral, never synced).
func (s *Store) SelectProduct(id string) {
	s.mutate(OriginLocal, []Field{FieldSelectedProduct}, func() {
		s.selectedProductID = id
	})
}

// SetSettings replaces the user settings.
func (s *Store) SetSettings(settings model.Settings) {
	s.mutate(OriginLocal, []Field{FieldSettings}, func() {
		s.settings = settings
	})
}

// mutateChecked is mutate for edits that may not apply (unknown ID).
// When fn reports false, nothing was written and observers stay silent.
func (s *Store) mutateChecked(origin Origin, fields []Field, fn func() bool) {
	s.mu.Lock()

	if !fn() {
		s.mu.Unlock()
		return
	}

	s.metricsDirty = true
	s.batchOrigin = origin

	for _, f := range fields {
		s.batchFields[f] = true
	}

	deferred := s.batchDepth > 0
	s.mu.Unlock()

	if !deferred {
		s.flushNotifications()
	}
}

// ---------------------------------------------------------------------------
// Remote apply
// ---------------------------------------------------------------------------

// ApplyRemote overwrites local fields from a decoded remote patch, field
// by field, leaving absent fields unchanged. The resulting observer
// notification carries OriginRemote so the sync engine does not republish
// what it just received.
func (s *Store) ApplyRemote(patch model.BundlePatch) {
	var fields []Field

	s.mutateChecked(OriginRemote, nil, func() bool {
		if patch.Products != nil {
			s.products = cloneProducts(*patch.Products)
			fields = append(fields, FieldProducts)
		}

		if patch.Scenarios != nil {
			s.scenarios = cloneScenarios(*patch.Scenarios)
			fields = append(fields, FieldScenarios)
		}

		if patch.SelectedScenarioID != nil {
			s.selectedScenarioID = *patch.SelectedScenarioID
			fields = append(fields, FieldSelectedScenario)
		}

		if patch.Settings != nil {
			s.settings = *patch.Settings
			fields = append(fields, FieldSettings)
		}

		for _, f := range fields {
			s.batchFields[f] = true
		}

		return len(fields) > 0
	})
}

// ---------------------------------------------------------------------------
// Snapshot helpers
// ---------------------------------------------------------------------------

func (s *Store) findProduct(id string) *model.Product {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i]
		}
	}

	return nil
}

func cloneProduct(p *model.Product) model.Product {
	clone := *p
	clone.Expenses = append([]model.ExpenseLine(nil), p.Expenses...)
	clone.Time = append([]model.TimeLine(nil), p.Time...)

	return clone
}

func cloneProducts(products []model.Product) []model.Product {
	result := make([]model.Product, len(products))
	for i := range products {
		result[i] = cloneProduct(&products[i])
	}

	return result
}

func cloneScenario(sc *model.Scenario) model.Scenario {
	clone := *sc

	clone.Quantities = make(map[string]int, len(sc.Quantities))
	for k, v := range sc.Quantities {
		clone.Quantities[k] = v
	}

	return clone
}

func cloneScenarios(scenarios []model.Scenario) []model.Scenario {
	result := make([]model.Scenario, len(scenarios))
	for i := range scenarios {
		result[i] = cloneScenario(&scenarios[i])
	}

	return result
}
