package signal

import "testing"

func TestToPercent(t *testing.T) {
	cases := []struct {
		dbm  float64
		want int
	}{
		{-120, 0},
		{-90, 0},
		{-89, 2},
		{-65, 50},
		{-41, 98},
		{-40, 100},
		{-10, 100},
		{-64.9, 50},
	}
	for _, c := range cases {
		if got := ToPercent(c.dbm); got != c.want {
			t.Errorf("ToPercent(%v)=%d, want %d", c.dbm, got, c.want)
		}
	}
}

func TestToDBM(t *testing.T) {
	cases := []struct {
		percent float64
		want    int
	}{
		{-5, -90},
		{0, -90},
		{50, -65},
		{37, -71},
		{100, -40},
		{250, -40},
	}
	for _, c := range cases {
		if got := ToDBM(c.percent); got != c.want {
			t.Errorf("ToDBM(%v)=%d, want %d", c.percent, got, c.want)
		}
	}
}

// The conversion truncates in both directions, so the round trip is only
// bounded, not exact.
func TestRoundTripWithinOnePoint(t *testing.T) {
	for p := 0; p <= 100; p++ {
		got := ToPercent(float64(ToDBM(float64(p))))
		if d := got - p; d < -1 || d > 1 {
			t.Fatalf("round trip of %d%% gave %d%%", p, got)
		}
	}
}

func TestStrengthAndBars(t *testing.T) {
	cases := []struct {
		dbm   float64
		label string
		bars  string
	}{
		{-45, "Excellent", "█████"},
		{-55, "Good", "████░"},
		{-70, "Fair", "███░░"},
		{-75, "Weak", "██░░░"},
		{-95, "Very Weak", "█░░░░"},
	}
	for _, c := range cases {
		if got := Strength(c.dbm); got != c.label {
			t.Errorf("Strength(%v)=%q, want %q", c.dbm, got, c.label)
		}
		if got := Bars(c.dbm); got != c.bars {
			t.Errorf("Bars(%v)=%q, want %q", c.dbm, got, c.bars)
		}
	}
}
