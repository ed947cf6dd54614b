// Package nav answers which way the mobile unit should turn to reach the
// current waypoint.
package nav

import (
	"fmt"

	"fieldops-nav/internal/geo"
	"fieldops-nav/internal/telemetry"
	"fieldops-nav/internal/waypoint"
)

// PreconditionError explains why no direction can be computed yet.
type PreconditionError struct {
	Code string
}

func (e *PreconditionError) Error() string {
	return "navigation unavailable: " + e.Code
}

// Is matches any PreconditionError with the same code.
func (e *PreconditionError) Is(target error) bool {
	t, ok := target.(*PreconditionError)
	return ok && t.Code == e.Code
}

var (
	ErrNoWaypoint = &PreconditionError{Code: "no_waypoint"}
	ErrNoPosition = &PreconditionError{Code: "no_position"}
	ErrNoHeading  = &PreconditionError{Code: "no_heading"}
)

// PositionSource yields the most recent position fix.
type PositionSource interface {
	LatestPosition() (telemetry.Position, bool, error)
}

// WaypointSource yields the current destination.
type WaypointSource interface {
	Get() (waypoint.Waypoint, bool)
}

// Observer counts resolutions by outcome. *metrics.Metrics satisfies it.
type Observer interface {
	RecordResolve(result string)
}

// Result is the unrounded outcome of a resolution.
type Result struct {
	Direction      geo.Direction      `json:"direction"`
	Bearing        float64            `json:"bearing"`
	DistanceMeters float64            `json:"distance_m"`
	HeadingDiff    float64            `json:"heading_diff"`
	Heading        float64            `json:"heading"`
	Position       telemetry.Position `json:"position"`
	Waypoint       waypoint.Waypoint  `json:"waypoint"`
}

// Resolver is read-only and safe for concurrent use.
type Resolver struct {
	positions PositionSource
	waypoints WaypointSource
	observer  Observer
}

func NewResolver(positions PositionSource, waypoints WaypointSource, obs Observer) *Resolver {
	return &Resolver{positions: positions, waypoints: waypoints, observer: obs}
}

// Resolve reads the waypoint and the latest position once each and derives
// bearing, distance and turn direction from them.
func (r *Resolver) Resolve() (Result, error) {
	res, err := r.resolve()
	if r.observer != nil {
		outcome := "ok"
		if pe, ok := err.(*PreconditionError); ok {
			outcome = pe.Code
		} else if err != nil {
			outcome = "error"
		}
		r.observer.RecordResolve(outcome)
	}
	return res, err
}

func (r *Resolver) resolve() (Result, error) {
	wp, ok := r.waypoints.Get()
	if !ok {
		return Result{}, ErrNoWaypoint
	}
	pos, ok, err := r.positions.LatestPosition()
	if err != nil {
		return Result{}, fmt.Errorf("nav: latest position: %w", err)
	}
	if !ok {
		return Result{}, ErrNoPosition
	}
	if pos.Heading == nil {
		return Result{}, ErrNoHeading
	}

	heading := geo.NormalizeAngle(*pos.Heading)
	bearing := geo.InitialBearing(pos.Latitude, pos.Longitude, wp.Latitude, wp.Longitude)
	return Result{
		Direction:      geo.ClassifyDirection(heading, bearing),
		Bearing:        bearing,
		DistanceMeters: geo.DistanceMeters(pos.Latitude, pos.Longitude, wp.Latitude, wp.Longitude),
		HeadingDiff:    geo.NormalizeSignedDiff(bearing - heading),
		Heading:        heading,
		Position:       pos,
		Waypoint:       wp,
	}, nil
}
