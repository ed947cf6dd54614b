// Package signal converts received signal strength between dBm and a 0-100
// percentage scale.
//
// The mapping is linear between FloorDBM and CeilingDBM. Both directions
// truncate to an integer, so a round trip is lossy: ToPercent(ToDBM(p)) lands
// within one percentage point of p but is not guaranteed to equal it.
package signal

const (
	// FloorDBM maps to 0%.
	FloorDBM = -90
	// CeilingDBM maps to 100%.
	CeilingDBM = -40
)

// ToPercent converts a dBm reading to a percentage in [0,100].
func ToPercent(dbm float64) int {
	if dbm <= FloorDBM {
		return 0
	}
	if dbm >= CeilingDBM {
		return 100
	}
	return int((dbm - FloorDBM) * 100 / (CeilingDBM - FloorDBM))
}

// ToDBM converts a percentage to dBm. The percentage is clamped to [0,100].
func ToDBM(percent float64) int {
	if percent <= 0 {
		return FloorDBM
	}
	if percent >= 100 {
		return CeilingDBM
	}
	return int(FloorDBM + percent*(CeilingDBM-FloorDBM)/100)
}

// Strength returns a human label for a dBm reading.
func Strength(dbm float64) string {
	switch {
	case dbm >= -50:
		return "Excellent"
	case dbm >= -60:
		return "Good"
	case dbm >= -70:
		return "Fair"
	case dbm >= -80:
		return "Weak"
	default:
		return "Very Weak"
	}
}

// Bars renders a dBm reading as five cells, filled from the left.
func Bars(dbm float64) string {
	filled := 1
	switch {
	case dbm >= -50:
		filled = 5
	case dbm >= -60:
		filled = 4
	case dbm >= -70:
		filled = 3
	case dbm >= -80:
		filled = 2
	}
	out := make([]rune, 5)
	for i := range out {
		if i < filled {
			out[i] = '█'
		} else {
			out[i] = '░'
		}
	}
	return string(out)
}
