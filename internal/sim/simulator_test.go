package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldops-nav/internal/telemetry"
)

type mockTarget struct {
	mu        sync.Mutex
	positions []telemetry.Position
	readings  []telemetry.SignalReading
	fail      bool
}

func (m *mockTarget) IngestPosition(_ context.Context, p telemetry.Position) (telemetry.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return telemetry.Position{}, errors.New("rejected")
	}
	m.positions = append(m.positions, p)
	return p, nil
}

func (m *mockTarget) IngestSignalReading(_ context.Context, r telemetry.SignalReading) (telemetry.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return telemetry.Sample{}, errors.New("rejected")
	}
	m.readings = append(m.readings, r)
	return r.Sample(), nil
}

func TestSimulatorTick(t *testing.T) {
	target := &mockTarget{}
	s := New(Config{Helmets: 3, Rovers: 1, CenterLat: 11.495, CenterLon: 77.277, Seed: 1}, target)

	s.Tick(context.Background())
	s.Tick(context.Background())

	if len(target.readings) != 6 || len(target.positions) != 2 {
		t.Fatalf("readings=%d positions=%d", len(target.readings), len(target.positions))
	}
	for _, p := range target.positions {
		if p.Heading == nil {
			t.Errorf("rover position without heading: %+v", p)
		}
	}
	if target.readings[0].HelmetID != "helmet-001" {
		t.Errorf("helmet id = %q", target.readings[0].HelmetID)
	}
	st := s.Stats()
	if st.Ticks != 2 || st.Positions != 2 || st.Readings != 6 || st.Errors != 0 {
		t.Errorf("stats = %+v", st)
	}
	if ids := s.Devices(); len(ids) != 4 || ids[3] != "rover-001" {
		t.Errorf("devices = %v", ids)
	}
}

func TestSimulatorCountsErrors(t *testing.T) {
	s := New(Config{Helmets: 2}, &mockTarget{fail: true})
	s.Tick(context.Background())
	if st := s.Stats(); st.Errors != 2 || st.Readings != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSimulatorRunStops(t *testing.T) {
	target := &mockTarget{}
	s := New(Config{Rovers: 1, Tick: 5 * time.Millisecond}, target)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if s.Stats().Ticks == 0 {
		t.Error("no ticks ran")
	}
}
