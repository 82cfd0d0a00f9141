package telemetry

import (
	"math"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var (
	tuesdayPeak    = time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC)
	tuesdayOffPeak = time.Date(2024, time.January, 9, 13, 30, 0, 0, time.UTC)
	saturday       = time.Date(2024, time.January, 6, 8, 0, 0, 0, time.UTC)
)

func newTestGenerator(at time.Time, seed uint64) *Generator {
	return NewGenerator(fixedClock{at}, NewRand(seed), WithLocation(time.UTC))
}

func TestLoadBand(t *testing.T) {
	cases := []struct {
		at   time.Time
		want Band
	}{
		{tuesdayPeak, PeakBand},
		{tuesdayOffPeak, OffPeakBand},
		{saturday, WeekendBand},
		{time.Date(2024, time.January, 7, 18, 0, 0, 0, time.UTC), WeekendBand},
		{time.Date(2024, time.January, 8, 6, 59, 0, 0, time.UTC), OffPeakBand},
		{time.Date(2024, time.January, 8, 7, 0, 0, 0, time.UTC), PeakBand},
		{time.Date(2024, time.January, 8, 10, 59, 0, 0, time.UTC), PeakBand},
		{time.Date(2024, time.January, 8, 11, 0, 0, 0, time.UTC), OffPeakBand},
		{time.Date(2024, time.January, 12, 17, 0, 0, 0, time.UTC), PeakBand},
		{time.Date(2024, time.January, 12, 20, 59, 0, 0, time.UTC), PeakBand},
		{time.Date(2024, time.January, 12, 21, 0, 0, 0, time.UTC), OffPeakBand},
	}
	for _, tc := range cases {
		if got := LoadBand(tc.at); got != tc.want {
			t.Errorf("LoadBand(%s)=%s, want %s", tc.at.Format(time.RFC1123), got.Name, tc.want.Name)
		}
	}
}

func TestGeneratePassengerBands(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		band Band
	}{
		{"peak", tuesdayPeak, PeakBand},
		{"off-peak", tuesdayOffPeak, OffPeakBand},
		{"weekend", saturday, WeekendBand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newTestGenerator(tc.at, 42)
			for i := 0; i < 500; i++ {
				r := gen.Generate()
				if r.PassengerCount < tc.band.Min || r.PassengerCount > tc.band.Max {
					t.Fatalf("passenger_count %d outside [%d, %d]", r.PassengerCount, tc.band.Min, tc.band.Max)
				}
			}
		})
	}
}

func TestGenerateDerivedFields(t *testing.T) {
	for _, at := range []time.Time{tuesdayPeak, tuesdayOffPeak, saturday} {
		gen := newTestGenerator(at, 7)
		for i := 0; i < 500; i++ {
			r := gen.Generate()
			if r.Alerts.Overcrowding != (r.PassengerCount > OvercrowdingThreshold) {
				t.Fatalf("overcrowding=%v for %d passengers", r.Alerts.Overcrowding, r.PassengerCount)
			}
			if r.Alerts.HighPowerDraw != (r.PowerDrawKW > HighPowerDrawKW) {
				t.Fatalf("high_power_draw=%v for %v kW", r.Alerts.HighPowerDraw, r.PowerDrawKW)
			}
			wantWeight := 135 + float64(r.PassengerCount)*0.065
			if math.Abs(r.TotalWeightTons-wantWeight) > 0.005+1e-9 {
				t.Fatalf("total_weight_tons=%v, want %v", r.TotalWeightTons, wantWeight)
			}
			if r.SpeedKmh < 0 || r.SpeedKmh > SpeedMaxKmh {
				t.Fatalf("speed_kmh %v out of range", r.SpeedKmh)
			}
			b := DefaultBounds
			if r.Location.Latitude < b.MinLat || r.Location.Latitude > b.MaxLat ||
				r.Location.Longitude < b.MinLon || r.Location.Longitude > b.MaxLon {
				t.Fatalf("location %+v outside bounds", r.Location)
			}
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := newTestGenerator(tuesdayPeak, 99)
	b := newTestGenerator(tuesdayPeak, 99)
	for i := 0; i < 20; i++ {
		ra, rb := a.Generate(), b.Generate()
		if ra != rb {
			t.Fatalf("records diverged at %d: %+v vs %+v", i, ra, rb)
		}
	}
}

func TestGenerateTimestampAndID(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2024, time.January, 9, 8, 0, 0, 0, loc)
	r := NewGenerator(fixedClock{at}, NewRand(1), WithLocation(loc)).Generate()

	if r.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not UTC: %v", r.Timestamp.Location())
	}
	if !r.Timestamp.Equal(at) {
		t.Errorf("timestamp=%v, want %v", r.Timestamp, at)
	}
	if len(r.EntityID) != 4 || r.EntityID[0] != 'A' {
		t.Errorf("unexpected entity id %q", r.EntityID)
	}
	if r.PassengerCount < PeakBand.Min {
		t.Errorf("expected peak load in local time, got %d", r.PassengerCount)
	}
}

func TestGenerateCustomBounds(t *testing.T) {
	b := Bounds{MinLat: 51.4, MaxLat: 51.6, MinLon: -0.3, MaxLon: 0.1}
	gen := NewGenerator(fixedClock{saturday}, NewRand(3), WithBounds(b))
	for i := 0; i < 100; i++ {
		l := gen.Generate().Location
		if l.Latitude < b.MinLat || l.Latitude > b.MaxLat || l.Longitude < b.MinLon || l.Longitude > b.MaxLon {
			t.Fatalf("location %+v outside %+v", l, b)
		}
	}
}

func TestDeriveWeightMonotonic(t *testing.T) {
	prev := DeriveWeight(0)
	if prev != EmptyTrainWeightTons {
		t.Fatalf("DeriveWeight(0)=%v, want %v", prev, EmptyTrainWeightTons)
	}
	for n := 1; n <= MaxPassengers; n++ {
		w := DeriveWeight(n)
		if w < prev {
			t.Fatalf("weight decreased at %d: %v < %v", n, w, prev)
		}
		if DeriveWeight(n) != w || DerivePower(w) != DerivePower(DeriveWeight(n)) {
			t.Fatalf("derivation not stable at %d", n)
		}
		prev = w
	}
}

func TestDerivePower(t *testing.T) {
	cases := map[int]float64{
		0:   147.5,
		100: 150.75,
		764: 172.33,
	}
	for passengers, want := range cases {
		if got := DerivePower(DeriveWeight(passengers)); got != want {
			t.Errorf("DerivePower(%d passengers)=%v, want %v", passengers, got, want)
		}
	}
}
