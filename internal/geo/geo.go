// Package geo holds the great-circle math used for navigation: distance,
// initial bearing, angle normalization and a coarse turn classification.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// Direction is a coarse turn instruction relative to the current heading.
type Direction string

const (
	Front Direction = "FRONT"
	Right Direction = "RIGHT"
	Left  Direction = "LEFT"
	Back  Direction = "BACK"
)

const (
	frontToleranceDeg = 15.0
	sideLimitDeg      = 90.0
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// DistanceMeters returns the haversine distance between two points given in
// decimal degrees.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRadians(lat1), toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// rounding can push a a hair outside [0,1] for antipodal points
	a = math.Min(1, math.Max(0, a))
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// InitialBearing returns the forward azimuth in [0,360) from point 1 towards
// point 2. Coincident points yield 0.
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRadians(lat1), toRadians(lat2)
	dLambda := toRadians(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	if x == 0 && y == 0 {
		return 0
	}
	return NormalizeAngle(toDegrees(math.Atan2(y, x)))
}

// NormalizeAngle maps any angle in degrees onto [0,360).
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// -1e-15 + 360 rounds to 360
	if a >= 360 {
		a = 0
	}
	return a
}

// NormalizeSignedDiff maps any angle in degrees onto (-180,180].
func NormalizeSignedDiff(deg float64) float64 {
	a := NormalizeAngle(deg)
	if a > 180 {
		a -= 360
	}
	return a
}

// ClassifyDirection decides which way to turn from heading to reach
// targetBearing. With d the signed difference target-heading:
// [-15,15] is Front, (15,90] Right, [-90,-15) Left and the rest Back.
func ClassifyDirection(heading, targetBearing float64) Direction {
	d := NormalizeSignedDiff(targetBearing - heading)
	switch {
	case d >= -frontToleranceDeg && d <= frontToleranceDeg:
		return Front
	case d > frontToleranceDeg && d <= sideLimitDeg:
		return Right
	case d >= -sideLimitDeg && d < -frontToleranceDeg:
		return Left
	default:
		return Back
	}
}
