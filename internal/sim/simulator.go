// Simulator driving field devices against the engine
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldops-nav/internal/telemetry"
)

// Target receives simulated traffic. *engine.Engine satisfies it.
type Target interface {
	IngestPosition(ctx context.Context, p telemetry.Position) (telemetry.Position, error)
	IngestSignalReading(ctx context.Context, r telemetry.SignalReading) (telemetry.Sample, error)
}

// Config describes the simulated fleet.
type Config struct {
	Helmets   int
	Rovers    int
	CenterLat float64
	CenterLon float64
	Seed      int64
	Tick      time.Duration
}

// Stats counts what the simulator has sent.
type Stats struct {
	Ticks     int `json:"ticks"`
	Positions int `json:"positions"`
	Readings  int `json:"readings"`
	Errors    int `json:"errors"`
}

// Simulator moves helmets and rovers around a center point. Rovers report
// positions with a heading, helmets report signal readings.
type Simulator struct {
	target  Target
	gen     *telemetry.Generator
	devices []*telemetry.Device
	tick    time.Duration

	mu    sync.Mutex
	stats Stats
}

// New initializes devices at the configured center.
func New(cfg Config, target Target) *Simulator {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	s := &Simulator{
		target: target,
		gen:    telemetry.NewGenerator(cfg.Seed),
		tick:   cfg.Tick,
	}
	for i := 0; i < cfg.Helmets; i++ {
		s.devices = append(s.devices, &telemetry.Device{
			ID:   generateDeviceID(telemetry.KindHelmet, i),
			Kind: telemetry.KindHelmet,
			Lat:  cfg.CenterLat,
			Lon:  cfg.CenterLon,
			RSSI: -55 - float64(i%4)*8,
		})
	}
	for i := 0; i < cfg.Rovers; i++ {
		s.devices = append(s.devices, &telemetry.Device{
			ID:      generateDeviceID(telemetry.KindRover, i),
			Kind:    telemetry.KindRover,
			Lat:     cfg.CenterLat,
			Lon:     cfg.CenterLon,
			Heading: float64(i*90) + 10,
			RSSI:    -60,
		})
	}
	return s
}

func generateDeviceID(kind string, i int) string {
	return fmt.Sprintf("%s-%03d", kind, i+1)
}

// Devices returns the ids of the simulated devices.
func (s *Simulator) Devices() []string {
	ids := make([]string, len(s.devices))
	for i, d := range s.devices {
		ids[i] = d.ID
	}
	return ids
}

// Stats returns the counters so far.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
