// Telemetry record model and the physical constants it is derived from
package telemetry

import (
	"math"
	"time"
)

// Train capacity and alert thresholds.
const (
	MaxPassengers         = 764
	OvercrowdingThreshold = 600
	HighPowerDrawKW       = 150.0
	SpeedMaxKmh           = 80.0
)

// Physical constants used to derive weight and power from passenger load.
const (
	EmptyTrainWeightTons = 135.0
	PassengerWeightTons  = 0.065
	BasePowerKW          = 80.0
	PowerPerTonKW        = 0.5
)

// Record is one telemetry reading as published to the broker.
// Records are values: they are created by the Generator and never mutated.
type Record struct {
	Timestamp       time.Time `json:"timestamp"`
	EntityID        string    `json:"entity_id"`
	PassengerCount  int       `json:"passenger_count"`
	TotalWeightTons float64   `json:"total_weight_tons"`
	PowerDrawKW     float64   `json:"power_draw_kw"`
	SpeedKmh        float64   `json:"speed_kmh"`
	Location        Location  `json:"location"`
	Alerts          Alerts    `json:"alerts"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Alerts are threshold flags derived from the other record fields.
type Alerts struct {
	Overcrowding  bool `json:"overcrowding"`
	HighPowerDraw bool `json:"high_power_draw"`
}

// Bounds is the latitude/longitude box records are placed in.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// DefaultBounds covers the New York metro area.
var DefaultBounds = Bounds{MinLat: 40.7, MaxLat: 40.9, MinLon: -74.1, MaxLon: -73.9}

// DeriveWeight returns the total train weight in tons for a passenger load.
func DeriveWeight(passengers int) float64 {
	return EmptyTrainWeightTons + float64(passengers)*PassengerWeightTons
}

// DerivePower estimates power draw in kW from the total weight, rounded to 2 decimals.
func DerivePower(weightTons float64) float64 {
	return round(BasePowerKW+PowerPerTonKW*weightTons, 2)
}

// DeriveAlerts computes the alert flags for a passenger load and power draw.
func DeriveAlerts(passengers int, powerKW float64) Alerts {
	return Alerts{
		Overcrowding:  passengers > OvercrowdingThreshold,
		HighPowerDraw: powerKW > HighPowerDrawKW,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
