package telemetry

import (
	"testing"

	"fieldops-nav/internal/geo"
)

func TestGeneratorStep(t *testing.T) {
	gen := NewGenerator(1)
	d := &Device{ID: "rover-1", Kind: KindRover, Lat: 11.495, Lon: 77.277, Heading: 90, RSSI: -60}

	for i := 0; i < 100; i++ {
		lat, lon := d.Lat, d.Lon
		gen.Step(d)
		moved := geo.DistanceMeters(lat, lon, d.Lat, d.Lon)
		if moved < 1.9 || moved > 6.1 {
			t.Fatalf("step %d moved %.2fm, want 2-6m", i, moved)
		}
		if d.Heading < 0 || d.Heading >= 360 {
			t.Fatalf("heading %v out of range", d.Heading)
		}
		if d.RSSI < -95 || d.RSSI > -35 {
			t.Fatalf("rssi %v out of range", d.RSSI)
		}
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	a, b := NewGenerator(42), NewGenerator(42)
	da := &Device{Kind: KindHelmet, Lat: 48.2, Lon: 16.3, RSSI: -70}
	db := *da
	for i := 0; i < 10; i++ {
		a.Step(da)
		b.Step(&db)
	}
	if da.Lat != db.Lat || da.Lon != db.Lon || da.RSSI != db.RSSI {
		t.Errorf("same seed diverged: %+v vs %+v", *da, db)
	}
}

func TestGeneratorOutputsValidate(t *testing.T) {
	gen := NewGenerator(7)
	d := &Device{ID: "helmet-1", Kind: KindHelmet, Lat: 48.2082, Lon: 16.3738, RSSI: -62.4}
	gen.Step(d)

	pos := gen.Position(d)
	if err := pos.Validate(); err != nil {
		t.Errorf("position invalid: %v", err)
	}
	if pos.Heading == nil {
		t.Error("position missing heading")
	}
	r := gen.Reading(d)
	if err := r.Validate(); err != nil {
		t.Errorf("reading invalid: %v", err)
	}
	if r.HelmetID != "helmet-1" {
		t.Errorf("helmet id = %q", r.HelmetID)
	}
}
