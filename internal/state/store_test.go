package state

import (
	"log/slog"
	"testing"

	"github.com/priceloom/priceloom/internal/model"
	"github.com/priceloom/priceloom/internal/pricing"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestObserve_FiresOncePerMutation(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))

	var changes []Change

	s.Observe([]Field{FieldProducts}, func(c Change) { changes = append(changes, c) })

	id := s.NewProduct()
	if err := s.SetPrice(id, 25); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}

	for _, c := range changes {
		if c.Origin != OriginLocal {
			t.Errorf("Origin = %v, want local", c.Origin)
		}

		if !c.Touched(FieldProducts) {
			t.Errorf("change did not touch products: %v", c.Fields)
		}
	}
}

func TestObserve_BatchFiresOnce(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))

	var count int

	s.Observe([]Field{FieldProducts, FieldScenarios}, func(Change) { count++ })

	s.Batch(func() {
		id := s.NewProduct()
		_ = s.SetPrice(id, 10)
		_, _ = s.AddExpense(id, "clay", 2)
		s.NewScenario()
	})

	if count != 1 {
		t.Errorf("observer fired %d times for one batch, want 1", count)
	}
}

func TestObserve_FieldFilter(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))

	var productChanges, settingsChanges int

	s.Observe([]Field{FieldProducts}, func(Change) { productChanges++ })
	s.Observe([]Field{FieldSettings}, func(Change) { settingsChanges++ })

	s.SetSettings(model.Settings{Username: "vera"})

	if productChanges != 0 {
		t.Errorf("products observer fired %d times for settings change", productChanges)
	}

	if settingsChanges != 1 {
		t.Errorf("settings observer fired %d times, want 1", settingsChanges)
	}
}

func TestObserve_UnsubscribeExactness(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))

	var a, b, c int

	unsubA := s.Observe([]Field{FieldProducts}, func(Change) { a++ })
	s.Observe([]Field{FieldProducts}, func(Change) { b++ })
	s.Observe([]Field{FieldScenarios}, func(Change) { c++ })

	unsubA()
	unsubA() // second call is a no-op

	s.NewProduct()
	s.NewScenario()

	if a != 0 {
		t.Errorf("unsubscribed observer fired %d times", a)
	}

	if b != 1 {
		t.Errorf("remaining products observer fired %d times, want 1", b)
	}

	if c != 1 {
		t.Errorf("scenarios observer fired %d times, want 1", c)
	}
}

func TestStructuralEdits(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))
	id := s.NewProduct()

	expenseID, err := s.AddExpense(id, "materials", 25)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	if _, err := s.AddTime(id, "assembly", 90, 2); err != nil {
		t.Fatalf("AddTime: %v", err)
	}

	p, err := s.Product(id)
	if err != nil {
		t.Fatalf("Product: %v", err)
	}

	if len(p.Expenses) != 1 || p.Expenses[0].Name != "materials" {
		t.Errorf("expenses = %+v", p.Expenses)
	}

	if len(p.Time) != 1 || p.Time[0].Rating != 2 {
		t.Errorf("time lines = %+v", p.Time)
	}

	if err := s.RemoveExpense(id, expenseID); err != nil {
		t.Fatalf("RemoveExpense: %v", err)
	}

	p, _ = s.Product(id)
	if len(p.Expenses) != 0 {
		t.Errorf("expense not removed: %+v", p.Expenses)
	}

	if err := s.SetPrice("no-such-id", 5); err == nil {
		t.Error("SetPrice on unknown product did not error")
	}
}

func TestMetrics_LazyRecomputeReflectsLatestState(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))

	id := s.NewProduct()
	_ = s.SetPrice(id, 49)
	_, _ = s.AddExpense(id, "materials", 25)
	_, _ = s.AddTime(id, "assembly", 60, 1)

	scenarioID := s.NewScenario()
	s.SelectScenario(scenarioID)

	m := s.Metrics()[id]
	if m.Profit != 24 {
		t.Errorf("Profit = %v, want 24", m.Profit)
	}

	if m.HourlyRate != 24 {
		t.Errorf("HourlyRate = %v, want 24", m.HourlyRate)
	}

	// Default goals: minRate 16, midRate ~25.33 — rate 24 sits between.
	if m.Profitability != pricing.RatingBelowTarget {
		t.Errorf("Profitability = %d, want %d", m.Profitability, pricing.RatingBelowTarget)
	}

	// Change a dependency; the next read must reflect it.
	_ = s.SetPrice(id, 100)

	m = s.Metrics()[id]
	if m.Profit != 75 {
		t.Errorf("Profit after reprice = %v, want 75", m.Profit)
	}

	// Deselecting the scenario removes the goals: rating drops to 0.
	s.SelectScenario("")

	if got := s.Metrics()[id].Profitability; got != pricing.RatingUnprofitable {
		t.Errorf("Profitability without scenario = %d, want 0", got)
	}
}

func TestApplyRemote_OriginAndPartialFields(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))
	s.SetSettings(model.Settings{Username: "before"})

	var remote []Change

	s.Observe(SyncedFields(), func(c Change) {
		if c.Origin == OriginRemote {
			remote = append(remote, c)
		}
	})

	products := []model.Product{{ID: "p1", Price: 12}}
	s.ApplyRemote(model.BundlePatch{Products: &products})

	if len(remote) != 1 {
		t.Fatalf("remote changes = %d, want 1", len(remote))
	}

	if !remote[0].Touched(FieldProducts) || remote[0].Touched(FieldSettings) {
		t.Errorf("touched fields = %v, want products only", remote[0].Fields)
	}

	// Absent fields stay unchanged.
	if s.Settings().Username != "before" {
		t.Errorf("settings overwritten by partial patch: %+v", s.Settings())
	}

	if got := s.Products(); len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("products = %+v, want remote copy", got)
	}
}

func TestApplyRemote_EmptyPatchIsSilent(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))

	var count int

	s.Observe(SyncedFields(), func(Change) { count++ })

	s.ApplyRemote(model.BundlePatch{})

	if count != 0 {
		t.Errorf("empty patch notified %d observers", count)
	}
}

func TestDeleteProduct_ClearsSelection(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))
	id := s.NewProduct()
	s.SelectProduct(id)

	var last Change
	var selectionChanges int

	s.Observe([]Field{FieldSelectedProduct}, func(c Change) {
		last = c
		selectionChanges++
	})

	s.DeleteProduct(id)

	if s.SelectedProductID() != "" {
		t.Error("selection not cleared")
	}

	if selectionChanges != 1 {
		t.Fatalf("selection observer fired %d times, want 1", selectionChanges)
	}

	if !last.Touched(FieldProducts) || !last.Touched(FieldSelectedProduct) {
		t.Errorf("touched fields = %v, want products and selection", last.Fields)
	}

	// Deleting an unselected product leaves the selection alone.
	other := s.NewProduct()
	s.DeleteProduct(other)

	if selectionChanges != 1 {
		t.Errorf("selection observer fired %d times, want 1", selectionChanges)
	}
}

func TestDeleteScenario_ClearsSelection(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))
	id := s.NewScenario()
	s.SelectScenario(id)

	var last Change

	s.Observe(SyncedFields(), func(c Change) { last = c })

	s.DeleteScenario(id)

	if s.SelectedScenarioID() != "" {
		t.Error("selection not cleared")
	}

	if !last.Touched(FieldScenarios) || !last.Touched(FieldSelectedScenario) {
		t.Errorf("touched fields = %v, want scenarios and selection", last.Fields)
	}

	if s.SelectedScenario() != nil {
		t.Error("SelectedScenario returned deleted scenario")
	}
}

func TestBundle_SnapshotsSyncedFields(t *testing.T) {
	t.Parallel()

	s := New(testLogger(t))
	id := s.NewProduct()
	_ = s.SetPrice(id, 30)
	s.SetSettings(model.Settings{Username: "vera"})
	s.SelectProduct(id) // ephemeral, must not appear in the bundle type

	b := s.Bundle(7)
	if b.LastUpdated != 7 {
		t.Errorf("LastUpdated = %d, want 7", b.LastUpdated)
	}

	if len(b.Products) != 1 || b.Products[0].Price != 30 {
		t.Errorf("bundle products = %+v", b.Products)
	}

	if b.Settings.Username != "vera" {
		t.Errorf("bundle settings = %+v", b.Settings)
	}

	// The bundle is a snapshot: later edits do not leak into it.
	_ = s.SetPrice(id, 99)

	if b.Products[0].Price != 30 {
		t.Error("bundle aliases live store state")
	}
}
