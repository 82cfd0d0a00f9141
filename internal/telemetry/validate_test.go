package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRecord() Record {
	return NewGenerator(fixedClock{tuesdayPeak}, NewRand(5), WithLocation(time.UTC)).Generate()
}

func TestValidatorAcceptsGeneratedRecords(t *testing.T) {
	v := NewValidator(discardLogger())
	for _, at := range []time.Time{tuesdayPeak, tuesdayOffPeak, saturday} {
		gen := newTestGenerator(at, 11)
		for i := 0; i < 1000; i++ {
			r := gen.Generate()
			if err := v.Validate(r); err != nil {
				t.Fatalf("generated record rejected: %v (%+v)", err, r)
			}
		}
	}
}

func TestValidatorAcceptsEveryPassengerCount(t *testing.T) {
	v := NewValidator(discardLogger())
	base := validRecord()
	for n := 0; n <= MaxPassengers; n++ {
		r := base
		w := DeriveWeight(n)
		r.PassengerCount = n
		r.TotalWeightTons = round(w, 2)
		r.PowerDrawKW = DerivePower(w)
		r.Alerts = DeriveAlerts(n, r.PowerDrawKW)
		if err := v.Validate(r); err != nil {
			t.Errorf("passengers=%d weight=%v rejected: %v", n, r.TotalWeightTons, err)
		}
	}
}

func TestValidatorIdempotent(t *testing.T) {
	v := NewValidator(discardLogger())
	r := validRecord()
	before := r
	for i := 0; i < 3; i++ {
		if err := v.Validate(r); err != nil {
			t.Fatalf("validate #%d: %v", i, err)
		}
	}
	if r != before {
		t.Fatalf("record changed by validation")
	}
}

func TestValidatorRejects(t *testing.T) {
	withPassengers := func(n int) func(*Record) {
		return func(r *Record) {
			r.PassengerCount = n
			w := DeriveWeight(n)
			r.TotalWeightTons = round(w, 2)
			r.PowerDrawKW = DerivePower(w)
			r.Alerts = DeriveAlerts(n, r.PowerDrawKW)
		}
	}
	cases := []struct {
		name   string
		mutate func(*Record)
		field  string
	}{
		{"missing timestamp", func(r *Record) { r.Timestamp = time.Time{} }, "timestamp"},
		{"missing entity", func(r *Record) { r.EntityID = "" }, "entity_id"},
		{"non alphanumeric entity", func(r *Record) { r.EntityID = "A-1" }, "entity_id"},
		{"negative passengers", withPassengers(-1), "passenger_count"},
		{"too many passengers", withPassengers(MaxPassengers + 1), "passenger_count"},
		{"negative speed", func(r *Record) { r.SpeedKmh = -0.01 }, "speed_kmh"},
		{"speed too high", func(r *Record) { r.SpeedKmh = 80.01 }, "speed_kmh"},
		{"weight mismatch", func(r *Record) { r.TotalWeightTons += 1 }, "total_weight_tons"},
		{"power mismatch", func(r *Record) { r.PowerDrawKW += 0.01 }, "power_draw_kw"},
		{"alert set independently", func(r *Record) { r.Alerts.Overcrowding = !r.Alerts.Overcrowding }, "alerts"},
	}
	v := NewValidator(discardLogger())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.mutate(&r)
			err := v.Validate(r)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field=%s, want %s", verr.Field, tc.field)
			}
		})
	}
}

func TestValidatorBoundaryValues(t *testing.T) {
	v := NewValidator(discardLogger())
	for _, n := range []int{0, MaxPassengers} {
		r := validRecord()
		r.PassengerCount = n
		w := DeriveWeight(n)
		r.TotalWeightTons = round(w, 2)
		r.PowerDrawKW = DerivePower(w)
		r.Alerts = DeriveAlerts(n, r.PowerDrawKW)
		for _, speed := range []float64{0, SpeedMaxKmh} {
			r.SpeedKmh = speed
			if err := v.Validate(r); err != nil {
				t.Errorf("passengers=%d speed=%v rejected: %v", n, speed, err)
			}
		}
	}
}

func TestValidatorCheckOrder(t *testing.T) {
	r := validRecord()
	r.PassengerCount = -5
	r.SpeedKmh = 500
	err := NewValidator(discardLogger()).Validate(r)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "passenger_count" {
		t.Fatalf("expected passenger_count to fail first, got %v", err)
	}
}
