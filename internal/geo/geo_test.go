package geo

import (
	"math"
	"testing"
)

func TestDistanceIdenticalPointsIsZero(t *testing.T) {
	points := [][2]float64{{0, 0}, {11.495456, 77.277199}, {-33.86, 151.21}, {90, 0}, {-90, 180}}
	for _, p := range points {
		if d := DistanceMeters(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("distance from %v to itself = %f", p, d)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{48.2082, 16.3738, 48.2085, 16.3750},
		{11.495050, 77.276972, 11.495456, 77.277199},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{0, 179.9, 0, -179.9},
	}
	for _, p := range pairs {
		ab := DistanceMeters(p[0], p[1], p[2], p[3])
		ba := DistanceMeters(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("asymmetric distance for %v: %f vs %f", p, ab, ba)
		}
		if ab < 0 {
			t.Errorf("negative distance for %v: %f", p, ab)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// one degree of latitude
	d := DistanceMeters(0, 0, 1, 0)
	if math.Abs(d-111195) > 1 {
		t.Errorf("one degree latitude = %f m", d)
	}
	// antimeridian neighbours are close, not half the globe apart
	d = DistanceMeters(0, 179.9, 0, -179.9)
	if d > 23000 {
		t.Errorf("antimeridian distance = %f m", d)
	}
}

func TestInitialBearingCardinal(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := InitialBearing(c.lat1, c.lon1, c.lat2, c.lon2)
			if math.Abs(got-c.want) > 1e-6 {
				t.Fatalf("bearing = %f, want %f", got, c.want)
			}
			if got < 0 || got >= 360 {
				t.Fatalf("bearing %f outside [0,360)", got)
			}
		})
	}
}

func TestInitialBearingCoincidentPoints(t *testing.T) {
	if got := InitialBearing(11.5, 77.2, 11.5, 77.2); got != 0 {
		t.Fatalf("coincident bearing = %f, want 0", got)
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := map[float64]float64{
		0:      0,
		360:    0,
		720:    0,
		-90:    270,
		-450:   270,
		1085:   5,
		359.5:  359.5,
		-1e-15: 0,
		-3600:  0,
	}
	for in, want := range cases {
		got := NormalizeAngle(in)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v)=%v, want %v", in, got, want)
		}
		if got < 0 || got >= 360 {
			t.Errorf("NormalizeAngle(%v)=%v outside [0,360)", in, got)
		}
	}
}

func TestNormalizeSignedDiff(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		180:  180,
		-180: 180,
		181:  -179,
		-181: 179,
		540:  180,
		-710: 10,
		350:  -10,
		1000: -80,
	}
	for in, want := range cases {
		got := NormalizeSignedDiff(in)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeSignedDiff(%v)=%v, want %v", in, got, want)
		}
		if got <= -180 || got > 180 {
			t.Errorf("NormalizeSignedDiff(%v)=%v outside (-180,180]", in, got)
		}
	}
}

func TestClassifyDirection(t *testing.T) {
	cases := []struct {
		heading, bearing float64
		want             Direction
	}{
		{0, 10, Front},
		{0, 350, Front},
		{0, 45, Right},
		{0, 315, Left},
		{0, 180, Back},
		// boundaries
		{0, 15, Front},
		{0, 345, Front},
		{0, 15.0001, Right},
		{0, 90, Right},
		{0, 90.0001, Back},
		{0, 270, Left},
		{0, 269.9999, Back},
		{0, 344.9999, Left},
		// wrap-around on the heading side
		{350, 5, Front},
		{350, 80, Right},
		{10, 300, Left},
		{90, 270, Back},
		{-720, 10, Front},
	}
	for _, c := range cases {
		if got := ClassifyDirection(c.heading, c.bearing); got != c.want {
			t.Errorf("ClassifyDirection(%v, %v)=%s, want %s", c.heading, c.bearing, got, c.want)
		}
	}
}

func TestFormatCoordinates(t *testing.T) {
	got := FormatCoordinates(-33.8688, 151.2093, 4)
	want := "33.868800°S, 151.209300°E (±4.0m)"
	if got != want {
		t.Fatalf("FormatCoordinates = %q, want %q", got, want)
	}
	if got := FormatCoordinates(11.5, -0.25, 0); got != "11.500000°N, 0.250000°W" {
		t.Fatalf("FormatCoordinates without accuracy = %q", got)
	}
	if got := MapsURL(11.5, 77.25); got != "https://www.google.com/maps?q=11.5,77.25" {
		t.Fatalf("MapsURL = %q", got)
	}
}
