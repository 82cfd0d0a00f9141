package telemetry

import (
	"fmt"
	rand "math/rand/v2"
	"time"
)

// Clock abstracts wall-clock reads so generation can be made deterministic.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Band is an inclusive passenger-count range selected by time of day.
type Band struct {
	Name string
	Min  int
	Max  int
}

// Passenger bands by traffic period.
var (
	WeekendBand = Band{Name: "weekend", Min: 20, Max: 100}
	PeakBand    = Band{Name: "peak", Min: 200, Max: MaxPassengers}
	OffPeakBand = Band{Name: "off_peak", Min: 50, Max: 200}
)

// LoadBand picks the passenger band for t. Peak hours are 07:00-10:59 and
// 17:00-20:59 on weekdays, evaluated in t's location.
func LoadBand(t time.Time) Band {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return WeekendBand
	}
	h := t.Hour()
	if (h >= 7 && h <= 10) || (h >= 17 && h <= 20) {
		return PeakBand
	}
	return OffPeakBand
}

// Generator produces one telemetry record per call.
type Generator struct {
	clock  Clock
	rand   *rand.Rand
	bounds Bounds
	loc    *time.Location
}

// Option configures a Generator.
type Option func(*Generator)

// WithBounds sets the location box records are placed in.
func WithBounds(b Bounds) Option {
	return func(g *Generator) { g.bounds = b }
}

// WithLocation sets the time zone used to select the passenger band.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// NewGenerator creates a generator reading time from clock and randomness from rnd.
// A nil clock uses the system clock; a nil rnd is seeded from the current time.
func NewGenerator(clock Clock, rnd *rand.Rand, opts ...Option) *Generator {
	if clock == nil {
		clock = RealClock{}
	}
	if rnd == nil {
		rnd = NewRand(uint64(time.Now().UnixNano()))
	}
	g := &Generator{clock: clock, rand: rnd, bounds: DefaultBounds, loc: time.Local}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewRand returns a PCG-backed source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed>>1))
}

// Generate returns a fresh record for the current clock reading.
func (g *Generator) Generate() Record {
	now := g.clock.Now()
	passengers := g.passengers(now.In(g.loc))
	weight := DeriveWeight(passengers)
	power := DerivePower(weight)

	return Record{
		Timestamp:       now.UTC(),
		EntityID:        fmt.Sprintf("A%d", 100+g.rand.IntN(900)),
		PassengerCount:  passengers,
		TotalWeightTons: round(weight, 2),
		PowerDrawKW:     power,
		SpeedKmh:        round(g.uniform(0, SpeedMaxKmh), 2),
		Location: Location{
			Latitude:  round(g.uniform(g.bounds.MinLat, g.bounds.MaxLat), 6),
			Longitude: round(g.uniform(g.bounds.MinLon, g.bounds.MaxLon), 6),
		},
		Alerts: DeriveAlerts(passengers, power),
	}
}

func (g *Generator) passengers(t time.Time) int {
	b := LoadBand(t)
	n := b.Min + g.rand.IntN(b.Max-b.Min+1)
	return min(max(n, 0), MaxPassengers)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rand.Float64()*(hi-lo)
}
