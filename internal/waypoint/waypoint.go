// Package waypoint holds the single current navigation destination.
package waypoint

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fieldops-nav/internal/errs"
	"fieldops-nav/internal/journal"
	"fieldops-nav/internal/telemetry"
)

// Waypoint is a destination and who set it.
type Waypoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SetBy     string    `json:"set_by"`
	SetAt     time.Time `json:"set_at"`
}

// Registry holds the current waypoint. Readers see either no waypoint or a
// complete one.
type Registry struct {
	mu      sync.RWMutex
	current *Waypoint

	history journal.Log[Waypoint]
	logger  *slog.Logger
	onFail  func(target string)
}

// Options configure a Registry.
type Options struct {
	History journal.Log[Waypoint]
	Logger  *slog.Logger
	// PersistFailed is called with the journal name when a history append
	// fails.
	PersistFailed func(target string)
}

// New restores the current waypoint from the newest history record.
func New(opts Options) (*Registry, error) {
	if opts.History == nil {
		return nil, errors.New("waypoint: history journal required")
	}
	r := &Registry{history: opts.History, logger: opts.Logger, onFail: opts.PersistFailed}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "waypoint")

	last, err := opts.History.LastN(1)
	if err != nil {
		return nil, fmt.Errorf("waypoint: restore: %w", err)
	}
	if len(last) == 1 {
		w := last[0].Record
		r.current = &w
		r.logger.Info("waypoint restored", "latitude", w.Latitude, "longitude", w.Longitude, "set_by", w.SetBy)
	}
	return r, nil
}

// Set replaces the current waypoint. A zero at means now.
func (r *Registry) Set(lat, lon float64, setBy string, at time.Time) (Waypoint, error) {
	if err := telemetry.CheckCoordinates(lat, lon); err != nil {
		return Waypoint{}, err
	}
	setBy = strings.TrimSpace(setBy)
	if setBy == "" {
		return Waypoint{}, errs.Invalid("set_by", "required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	w := Waypoint{Latitude: lat, Longitude: lon, SetBy: setBy, SetAt: at}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &w
	if _, err := r.history.Append(w); err != nil {
		r.logger.Error("waypoint persistence failed",
			"err", &errs.PersistenceError{Op: "append", Target: r.history.Name(), Err: err})
		if r.onFail != nil {
			r.onFail(r.history.Name())
		}
	}
	r.logger.Info("waypoint set", "latitude", lat, "longitude", lon, "set_by", setBy)
	return w, nil
}

// Get returns the current waypoint, if one has been set.
func (r *Registry) Get() (Waypoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return Waypoint{}, false
	}
	return *r.current, true
}

// History returns up to n of the latest waypoints, oldest first.
func (r *Registry) History(n int) ([]journal.Entry[Waypoint], error) {
	return r.history.LastN(n)
}
