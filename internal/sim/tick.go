package sim

import (
	"context"
	"time"

	"fieldops-nav/internal/logging"
	"fieldops-nav/internal/telemetry"
)

// Run ticks until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting simulator", "tick_interval", s.tick, "devices", len(s.devices))
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			log.Info("stopping simulator", "ticks", s.Stats().Ticks)
			return
		}
	}
}

// Tick moves every device once and sends its report.
func (s *Simulator) Tick(ctx context.Context) {
	log := logging.FromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Ticks++
	for _, d := range s.devices {
		s.gen.Step(d)
		switch d.Kind {
		case telemetry.KindRover:
			if _, err := s.target.IngestPosition(ctx, s.gen.Position(d)); err != nil {
				s.stats.Errors++
				log.Error("position rejected", "device_id", d.ID, "err", err)
				continue
			}
			s.stats.Positions++
		default:
			if _, err := s.target.IngestSignalReading(ctx, s.gen.Reading(d)); err != nil {
				s.stats.Errors++
				log.Error("reading rejected", "device_id", d.ID, "err", err)
				continue
			}
			s.stats.Readings++
		}
	}
}
