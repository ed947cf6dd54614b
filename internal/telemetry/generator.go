package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// Device kinds produced by the generator.
const (
	KindHelmet = "helmet"
	KindRover  = "rover"
)

// Device holds runtime state for a simulated field device.
type Device struct {
	ID      string
	Kind    string
	Lat     float64
	Lon     float64
	Heading float64
	RSSI    float64
}

// Generator simulates telemetry for a set of field devices.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator. The same seed yields the same walk.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Step moves d one tick and drifts its signal strength.
func (g *Generator) Step(d *Device) {
	d.Lat, d.Lon, d.Heading = g.randomWalk(d.Lat, d.Lon, d.Heading, d.Kind)
	d.RSSI += g.rng.Float64()*6 - 3
	d.RSSI = math.Max(-95, math.Min(-35, d.RSSI))
}

// Position returns the current fix of d.
func (g *Generator) Position(d *Device) Position {
	return Position{
		Latitude:  d.Lat,
		Longitude: d.Lon,
		Heading:   Float(d.Heading),
		Accuracy:  Float(3 + g.rng.Float64()*7),
		Timestamp: g.now(),
		Origin:    "sim",
	}
}

// Reading returns the current signal reading of d.
func (g *Generator) Reading(d *Device) SignalReading {
	return SignalReading{
		HelmetID:  d.ID,
		Latitude:  d.Lat,
		Longitude: d.Lon,
		RSSI:      Float(math.Round(d.RSSI)),
		Timestamp: g.now(),
		Origin:    "sim",
	}
}

// randomWalk turns by up to ±30° and moves at a speed that depends on the
// device kind. The returned heading is the direction of travel.
func (g *Generator) randomWalk(lat, lon, heading float64, kind string) (float64, float64, float64) {
	var speedMin, speedMax float64
	switch kind {
	case KindRover:
		speedMin, speedMax = 2, 6
	default:
		speedMin, speedMax = 0.5, 1.5
	}

	heading = math.Mod(heading+g.rng.Float64()*60-30+360, 360)
	speed := g.rng.Float64()*(speedMax-speedMin) + speedMin // m/s
	rad := heading * math.Pi / 180

	deltaLat := (speed * math.Cos(rad)) / 111000
	deltaLon := (speed * math.Sin(rad)) / (111000 * math.Cos(lat*math.Pi/180))
	return lat + deltaLat, lon + deltaLon, heading
}
