package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"fieldops-nav/internal/errs"
	"fieldops-nav/internal/journal"
	"fieldops-nav/internal/logging"
	"fieldops-nav/internal/nav"
	"fieldops-nav/internal/signal"
	"fieldops-nav/internal/state"
	"fieldops-nav/internal/telemetry"
	"fieldops-nav/internal/waypoint"
)

// LatestPosition returns the newest position fix.
func (e *Engine) LatestPosition() (telemetry.Position, bool, error) {
	last, err := e.positions.LastN(1)
	if err != nil || len(last) == 0 {
		return telemetry.Position{}, false, err
	}
	return last[0].Record, true, nil
}

// LatestSignal returns the newest sample carrying a signal strength,
// restricted to sourceID when it is not empty.
func (e *Engine) LatestSignal(sourceID string) (telemetry.Sample, error) {
	entry, ok, err := e.telemetry.LastMatching(func(s telemetry.Sample) bool {
		return s.HasSignal() && (sourceID == "" || s.SourceID == sourceID)
	})
	if err != nil {
		return telemetry.Sample{}, err
	}
	if !ok {
		if sourceID != "" {
			return telemetry.Sample{}, fmt.Errorf("signal for %q: %w", sourceID, errs.ErrNotFound)
		}
		return telemetry.Sample{}, fmt.Errorf("signal: %w", errs.ErrNotFound)
	}
	return entry.Record, nil
}

// DroneCoordinates returns [latitude, longitude, 1, signal percent] from
// the latest position and latest signal. With no position it is all zeros;
// with no signal the last element is 0.
func (e *Engine) DroneCoordinates() ([4]float64, error) {
	pos, ok, err := e.LatestPosition()
	if err != nil || !ok {
		return [4]float64{}, err
	}
	out := [4]float64{pos.Latitude, pos.Longitude, 1, 0}
	s, err := e.LatestSignal("")
	switch {
	case err == nil:
		out[3], _ = s.Fields.Number(telemetry.FieldSignal)
	case !isNotFound(err):
		return [4]float64{}, err
	}
	return out, nil
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }

// SourceSummary aggregates the signal readings of one source.
type SourceSummary struct {
	SourceID string    `json:"source_id"`
	Readings int       `json:"readings"`
	AvgRSSI  float64   `json:"avg_rssi"`
	MinRSSI  float64   `json:"min_rssi"`
	MaxRSSI  float64   `json:"max_rssi"`
	Strength string    `json:"strength"`
	LastSeen time.Time `json:"last_seen"`
}

// SignalSummary scans the whole telemetry journal and aggregates rssi per
// source, sorted by source id.
func (e *Engine) SignalSummary() ([]SourceSummary, error) {
	acc := map[string]*SourceSummary{}
	err := e.telemetry.Scan(func(entry journal.Entry[telemetry.Sample]) error {
		s := entry.Record
		rssi, ok := s.Fields.Number(telemetry.FieldRSSI)
		if !ok {
			return nil
		}
		sum, seen := acc[s.SourceID]
		if !seen {
			sum = &SourceSummary{SourceID: s.SourceID, MinRSSI: math.Inf(1), MaxRSSI: math.Inf(-1)}
			acc[s.SourceID] = sum
		}
		sum.Readings++
		sum.AvgRSSI += rssi
		sum.MinRSSI = math.Min(sum.MinRSSI, rssi)
		sum.MaxRSSI = math.Max(sum.MaxRSSI, rssi)
		if s.Timestamp.After(sum.LastSeen) {
			sum.LastSeen = s.Timestamp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]SourceSummary, 0, len(acc))
	for _, sum := range acc {
		sum.AvgRSSI /= float64(sum.Readings)
		sum.Strength = signal.Strength(sum.AvgRSSI)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

// Record is one history entry of any journal.
type Record struct {
	Seq    uint64 `json:"seq"`
	Record any    `json:"record"`
}

// History returns up to n of the newest records of the journal called log,
// oldest first. A non-empty source keeps only records of that source: the
// sample source, the trigger name, the device id, the waypoint setter or
// the position origin.
func (e *Engine) History(log string, n int, source string) ([]Record, error) {
	if n < 0 {
		return nil, errs.Invalid("n", "must not be negative")
	}
	switch log {
	case LogTelemetry:
		return history(e.telemetry, n, source, func(s telemetry.Sample) string { return s.SourceID })
	case LogPositions:
		return history(e.positions, n, source, func(p telemetry.Position) string { return p.Origin })
	case LogWaypoints:
		return history(e.waypoints, n, source, func(w waypoint.Waypoint) string { return w.SetBy })
	case LogTriggerAudit:
		return history(e.triggerAudit, n, source, func(ev state.TriggerEvent) string { return ev.Name })
	case LogCounterAudit:
		return history(e.counterAudit, n, source, func(ev state.CounterEvent) string { return ev.DeviceID })
	}
	return nil, errs.Invalid("log", "unknown journal %q", log)
}

func history[T any](l journal.Log[T], n int, source string, key func(T) string) ([]Record, error) {
	var entries []journal.Entry[T]
	var err error
	switch {
	case source == "":
		entries, err = l.LastN(n)
	case n == 1:
		var e journal.Entry[T]
		var ok bool
		e, ok, err = l.LastMatching(func(r T) bool { return key(r) == source })
		if ok {
			entries = append(entries, e)
		}
	case n > 0:
		entries, err = lastNMatching(l, n, func(r T) bool { return key(r) == source })
	}
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = Record{Seq: e.Seq, Record: e.Record}
	}
	return out, nil
}

// ringStartCap bounds the initial ring allocation; n comes from callers.
const ringStartCap = 256

// lastNMatching keeps a ring of the newest n matches while scanning. The ring
// grows with the matches found, not with n.
func lastNMatching[T any](l journal.Log[T], n int, match func(T) bool) ([]journal.Entry[T], error) {
	ring := make([]journal.Entry[T], 0, min(n, ringStartCap))
	next := 0
	err := l.Scan(func(e journal.Entry[T]) error {
		if !match(e.Record) {
			return nil
		}
		if len(ring) < n {
			ring = append(ring, e)
			return nil
		}
		ring[next] = e
		next = (next + 1) % n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append(ring[next:], ring[:next]...), nil
}

// Health reports key counts and journal statistics.
type Health struct {
	Triggers int                      `json:"triggers"`
	Devices  int                      `json:"devices"`
	Journals map[string]journal.Stats `json:"journals"`
	Waypoint bool                     `json:"waypoint_set"`
}

func (e *Engine) Health() Health {
	tr, dv := e.state.Counts()
	_, wp := e.registry.Get()
	return Health{
		Triggers: tr,
		Devices:  dv,
		Waypoint: wp,
		Journals: map[string]journal.Stats{
			LogTelemetry:    e.telemetry.Stats(),
			LogPositions:    e.positions.Stats(),
			LogWaypoints:    e.waypoints.Stats(),
			LogTriggerAudit: e.triggerAudit.Stats(),
			LogCounterAudit: e.counterAudit.Stats(),
		},
	}
}

// SetTrigger sets or clears the trigger called name.
func (e *Engine) SetTrigger(ctx context.Context, name string, active bool, setBy, origin string) (state.Trigger, error) {
	defer e.observe("set_trigger", time.Now())
	t, err := e.state.SetTrigger(name, active, setBy, origin)
	if err == nil {
		logging.FromContext(ctx).Debug("trigger stored", "name", t.Name, "active", t.Active)
	}
	return t, err
}

func (e *Engine) GetTrigger(name string) state.Trigger { return e.state.GetTrigger(name) }

// SetDeviceCounters replaces the counters of deviceID.
func (e *Engine) SetDeviceCounters(ctx context.Context, deviceID string, counters []state.Counter, origin string) (state.DeviceCounters, error) {
	defer e.observe("set_counters", time.Now())
	d, err := e.state.SetDeviceCounters(deviceID, counters, origin)
	if err == nil {
		logging.FromContext(ctx).Debug("counters stored", "device_id", d.DeviceID)
	}
	return d, err
}

func (e *Engine) GetDeviceCounters(deviceID string) state.DeviceCounters {
	return e.state.GetDeviceCounters(deviceID)
}

// Reset clears keyed state. Callers confirm before calling.
func (e *Engine) Reset(scope state.Scope, by string) state.ResetResult {
	return e.state.ResetAll(scope, by)
}

// SetWaypoint replaces the current destination.
func (e *Engine) SetWaypoint(lat, lon float64, setBy string, at time.Time) (waypoint.Waypoint, error) {
	defer e.observe("set_waypoint", time.Now())
	return e.registry.Set(lat, lon, setBy, at)
}

func (e *Engine) GetWaypoint() (waypoint.Waypoint, bool) { return e.registry.Get() }

// ResolveNavigation computes the turn toward the current waypoint.
func (e *Engine) ResolveNavigation() (nav.Result, error) {
	defer e.observe("resolve", time.Now())
	return e.resolver.Resolve()
}

// Conversion is the result of converting a signal value.
type Conversion struct {
	DBM      int    `json:"rssi"`
	Percent  int    `json:"signal"`
	Strength string `json:"strength"`
	Bars     string `json:"bars"`
}

// ConvertFromDBM converts a dBm value to percent.
func ConvertFromDBM(dbm float64) Conversion {
	return Conversion{
		DBM:      int(dbm),
		Percent:  signal.ToPercent(dbm),
		Strength: signal.Strength(dbm),
		Bars:     signal.Bars(dbm),
	}
}

// ConvertFromPercent converts a percentage to dBm.
func ConvertFromPercent(pct float64) Conversion {
	dbm := signal.ToDBM(pct)
	return Conversion{
		DBM:      dbm,
		Percent:  int(math.Max(0, math.Min(100, pct))),
		Strength: signal.Strength(float64(dbm)),
		Bars:     signal.Bars(float64(dbm)),
	}
}
