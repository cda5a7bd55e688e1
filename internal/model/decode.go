package model

import "encoding/json"

// BundlePatch is a partially-present bundle decoded from a remote document.
// Nil means the field was absent (or malformed and rejected); the caller
// keeps its prior value for such fields.
type BundlePatch struct {
	LastUpdated        *int64
	Products           *[]Product
	Scenarios          *[]Scenario
	SelectedScenarioID *string
	Settings           *Settings
}

// DecodeBundlePatch decodes a schemaless remote document field by field.
// Fields whose shape does not match are rejected individually and returned
// in the second value; a malformed field never discards the rest of the
// document and never produces an error. Products gain missing line IDs.
func DecodeBundlePatch(raw map[string]any) (BundlePatch, []string) {
	var patch BundlePatch

	var rejected []string

	if v, ok := raw["lastUpdated"]; ok {
		if ts, tsOK := decodeTimestamp(v); tsOK {
			patch.LastUpdated = &ts
		} else {
			rejected = append(rejected, "lastUpdated")
		}
	}

	if v, ok := raw["products"]; ok {
		var products []Product
		if decodeField(v, &products) {
			EnsureLineIDs(products)

			patch.Products = &products
		} else {
			rejected = append(rejected, "products")
		}
	}

	if v, ok := raw["scenarios"]; ok {
		var scenarios []Scenario
		if decodeField(v, &scenarios) {
			patch.Scenarios = &scenarios
		} else {
			rejected = append(rejected, "scenarios")
		}
	}

	if v, ok := raw["selectedScenarioId"]; ok {
		if s, strOK := v.(string); strOK {
			patch.SelectedScenarioID = &s
		} else {
			rejected = append(rejected, "selectedScenarioId")
		}
	}

	if v, ok := raw["settings"]; ok {
		var settings Settings
		if decodeField(v, &settings) {
			patch.Settings = &settings
		} else {
			rejected = append(rejected, "settings")
		}
	}

	return patch, rejected
}

// decodeField re-marshals a schemaless sub-value into the typed target.
// Returns false if the value's shape does not match the target.
func decodeField(v any, target any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}

	return json.Unmarshal(data, target) == nil
}

// decodeTimestamp accepts the numeric shapes a JSON timestamp can arrive
// as. Negative timestamps are rejected — logical time never decreases
// below zero.
func decodeTimestamp(v any) (int64, bool) {
	var ts int64

	switch n := v.(type) {
	case float64:
		ts = int64(n)
	case int64:
		ts = n
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, false
		}

		ts = parsed
	default:
		return 0, false
	}

	if ts < 0 {
		return 0, false
	}

	return ts, true
}
