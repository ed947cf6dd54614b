package geo

import (
	"fmt"
	"math"
)

// FormatCoordinates renders a point as "12.345678°N, 77.000000°E".
// A positive accuracy is appended as "(±4.0m)".
func FormatCoordinates(lat, lon, accuracy float64) string {
	latDir, lonDir := "N", "E"
	if lat < 0 {
		latDir = "S"
	}
	if lon < 0 {
		lonDir = "W"
	}
	s := fmt.Sprintf("%.6f°%s, %.6f°%s", math.Abs(lat), latDir, math.Abs(lon), lonDir)
	if accuracy > 0 {
		s += fmt.Sprintf(" (±%.1fm)", accuracy)
	}
	return s
}

// MapsURL links a point on Google Maps.
func MapsURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%g,%g", lat, lon)
}
