package telemetry

import (
	"encoding/json"
	"fmt"
)

var (
	requiredFields = []string{
		"timestamp", "entity_id", "passenger_count", "total_weight_tons",
		"power_draw_kw", "speed_kmh", "location", "alerts",
	}
	requiredLocationFields = []string{"latitude", "longitude"}
	requiredAlertFields    = []string{"overcrowding", "high_power_draw"}
)

// DecodeRecord parses one JSON record. Every wire field, including the nested
// location and alerts members, must be present; the first missing one is
// reported as a *ValidationError.
func DecodeRecord(data []byte) (Record, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if err := requireKeys(top, "", requiredFields); err != nil {
		return Record{}, err
	}
	nested := []struct {
		name string
		keys []string
	}{
		{"location", requiredLocationFields},
		{"alerts", requiredAlertFields},
	}
	for _, n := range nested {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(top[n.name], &obj); err != nil {
			return Record{}, &ValidationError{Field: n.name, Reason: "not an object"}
		}
		if err := requireKeys(obj, n.name+".", n.keys); err != nil {
			return Record{}, err
		}
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

func requireKeys(m map[string]json.RawMessage, prefix string, keys []string) error {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || string(v) == "null" {
			return &ValidationError{Field: prefix + k, Reason: "missing"}
		}
	}
	return nil
}
