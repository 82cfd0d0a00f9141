package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// ValidationError describes the first check a record failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validator checks records before they leave the process.
type Validator struct {
	log *slog.Logger
}

// NewValidator returns a Validator logging rejections to logger.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{log: logger}
}

// Validate returns nil for a publishable record, otherwise a *ValidationError
// for the first failed check. Checks run in order: required fields,
// passenger range, speed range, derived field consistency.
func (v *Validator) Validate(r Record) error {
	err := check(r)
	if err != nil {
		v.log.Warn("record rejected", "entity_id", r.EntityID, "err", err)
		return err
	}
	return nil
}

func check(r Record) error {
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "missing"}
	}
	if r.EntityID == "" {
		return &ValidationError{Field: "entity_id", Reason: "missing"}
	}
	if !alphanumeric(r.EntityID) {
		return &ValidationError{Field: "entity_id", Reason: fmt.Sprintf("%q is not alphanumeric", r.EntityID)}
	}
	if r.PassengerCount < 0 || r.PassengerCount > MaxPassengers {
		return &ValidationError{
			Field:  "passenger_count",
			Reason: fmt.Sprintf("%d outside [0, %d]", r.PassengerCount, MaxPassengers),
		}
	}
	if math.IsNaN(r.SpeedKmh) || r.SpeedKmh < 0 || r.SpeedKmh > SpeedMaxKmh {
		return &ValidationError{
			Field:  "speed_kmh",
			Reason: fmt.Sprintf("%v outside [0, %v]", r.SpeedKmh, SpeedMaxKmh),
		}
	}

	weight := DeriveWeight(r.PassengerCount)
	// Published weights carry 2 decimals.
	if r.TotalWeightTons != round(weight, 2) {
		return &ValidationError{
			Field:  "total_weight_tons",
			Reason: fmt.Sprintf("%v does not match %d passengers", r.TotalWeightTons, r.PassengerCount),
		}
	}
	power := DerivePower(weight)
	if r.PowerDrawKW != power {
		return &ValidationError{
			Field:  "power_draw_kw",
			Reason: fmt.Sprintf("%v, want %v", r.PowerDrawKW, power),
		}
	}
	if r.Alerts != DeriveAlerts(r.PassengerCount, r.PowerDrawKW) {
		return &ValidationError{Field: "alerts", Reason: "inconsistent with passenger_count and power_draw_kw"}
	}
	return nil
}

func alphanumeric(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
