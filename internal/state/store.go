// Package state keeps the latest trigger flags and device counters.
//
// Every mutation runs in one critical section that updates memory, appends
// an audit event and rewrites the snapshot. Memory is authoritative: when
// the journal or snapshot write fails the change stays applied and the
// failure is logged and counted.
package state

import (
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"fieldops-nav/internal/errs"
	"fieldops-nav/internal/journal"
)

// DefaultCounterNames shape the zeroed report of an unknown device.
var DefaultCounterNames = []string{"button_1", "button_2", "button_3"}

// Observer receives persistence diagnostics. *metrics.Metrics satisfies it.
type Observer interface {
	RecordPersistFailure(target string)
	SetStateKeys(mapName string, n int)
}

// Options configure a Store.
type Options struct {
	SnapshotPath    string
	TriggerAudit    journal.Log[TriggerEvent]
	CounterAudit    journal.Log[CounterEvent]
	DefaultCounters []string
	Logger          *slog.Logger
	Observer        Observer
	Now             func() time.Time
}

// Store is the keyed state. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	triggers map[string]Trigger
	devices  map[string]DeviceCounters

	path           string
	triggerAudit   journal.Log[TriggerEvent]
	counterAudit   journal.Log[CounterEvent]
	defaultCounter []string
	logger         *slog.Logger
	observer       Observer
	now            func() time.Time
}

// Open loads the snapshot at opts.SnapshotPath. A missing or unreadable
// snapshot starts the store empty and is replaced right away.
func Open(opts Options) (*Store, error) {
	if opts.SnapshotPath == "" {
		return nil, errors.New("state: snapshot path required")
	}
	if opts.TriggerAudit == nil || opts.CounterAudit == nil {
		return nil, errors.New("state: audit journals required")
	}
	s := &Store{
		triggers:       map[string]Trigger{},
		devices:        map[string]DeviceCounters{},
		path:           opts.SnapshotPath,
		triggerAudit:   opts.TriggerAudit,
		counterAudit:   opts.CounterAudit,
		defaultCounter: opts.DefaultCounters,
		logger:         opts.Logger,
		observer:       opts.Observer,
		now:            opts.Now,
	}
	if len(s.defaultCounter) == 0 {
		s.defaultCounter = DefaultCounterNames
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "state")
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	snap, err := readSnapshot(s.path)
	switch {
	case err == nil:
		s.triggers, s.devices = snap.Triggers, snap.Devices
		s.logger.Info("state restored", "triggers", len(s.triggers), "devices", len(s.devices))
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("no state snapshot, starting empty", "path", s.path)
		s.persistSnapshot()
	default:
		s.logger.Warn("unreadable state snapshot, starting empty", "path", s.path, "err", err)
		s.persistSnapshot()
	}
	s.reportKeys()
	return s, nil
}

// SetTrigger creates or overwrites the trigger called name.
func (s *Store) SetTrigger(name string, active bool, setBy, origin string) (Trigger, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Trigger{}, errs.Invalid("name", "required")
	}
	if setBy == "" {
		setBy = "unknown"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := Trigger{Name: name, Active: active, SetAt: s.now(), SetBy: setBy}
	s.triggers[name] = t
	if _, err := s.triggerAudit.Append(TriggerEvent{
		Name: name, Active: active, SetBy: setBy, Origin: origin, At: t.SetAt,
	}); err != nil {
		s.persistFailed("append", s.triggerAudit.Name(), err)
	}
	s.persistSnapshot()
	s.reportKeys()
	s.logger.Info("trigger set", "name", name, "active", active, "set_by", setBy, "origin", origin)
	return t, nil
}

// GetTrigger returns the trigger called name, or an inactive trigger that
// was never set.
func (s *Store) GetTrigger(name string) Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.triggers[name]; ok {
		return t
	}
	return Trigger{Name: name}
}

// Triggers returns every trigger sorted by name.
func (s *Store) Triggers() []Trigger {
	s.mu.RLock()
	out := slices.Collect(maps.Values(s.triggers))
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDeviceCounters replaces the counters of deviceID wholesale.
func (s *Store) SetDeviceCounters(deviceID string, counters []Counter, origin string) (DeviceCounters, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return DeviceCounters{}, errs.Invalid("device_id", "required")
	}
	seen := make(map[string]bool, len(counters))
	for _, c := range counters {
		if strings.TrimSpace(c.Name) == "" {
			return DeviceCounters{}, errs.Invalid("counters", "empty counter name")
		}
		if seen[c.Name] {
			return DeviceCounters{}, errs.Invalid("counters", "duplicate counter %q", c.Name)
		}
		seen[c.Name] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := DeviceCounters{
		DeviceID:   deviceID,
		Counters:   append([]Counter(nil), counters...),
		LastUpdate: s.now(),
	}
	s.devices[deviceID] = d
	if _, err := s.counterAudit.Append(CounterEvent{
		DeviceID: deviceID, Counters: d.Counters, Origin: origin, At: d.LastUpdate,
	}); err != nil {
		s.persistFailed("append", s.counterAudit.Name(), err)
	}
	s.persistSnapshot()
	s.reportKeys()
	s.logger.Info("device counters set", "device_id", deviceID, "counters", len(counters), "origin", origin)
	return d.clone(), nil
}

// GetDeviceCounters returns the counters of deviceID, or the default
// counters zeroed when the device has never reported.
func (s *Store) GetDeviceCounters(deviceID string) DeviceCounters {
	s.mu.RLock()
	d, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if ok {
		return d.clone()
	}
	zero := make([]Counter, len(s.defaultCounter))
	for i, name := range s.defaultCounter {
		zero[i] = Counter{Name: name}
	}
	return DeviceCounters{DeviceID: deviceID, Counters: zero}
}

// Devices returns every device report sorted by device id.
func (s *Store) Devices() []DeviceCounters {
	s.mu.RLock()
	out := make([]DeviceCounters, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Counts returns the number of triggers and devices held.
func (s *Store) Counts() (triggers, devices int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triggers), len(s.devices)
}

// ResetAll clears the maps selected by scope. It does not ask for
// confirmation.
func (s *Store) ResetAll(scope Scope, by string) ResetResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := ResetResult{Scope: scope}
	at := s.now()
	if scope.triggers() {
		res.Triggers = true
		res.TriggersCleared = len(s.triggers)
		s.triggers = map[string]Trigger{}
		if _, err := s.triggerAudit.Append(TriggerEvent{SetBy: by, At: at, Reset: true}); err != nil {
			s.persistFailed("append", s.triggerAudit.Name(), err)
		}
	}
	if scope.counters() {
		res.Counters = true
		res.DevicesCleared = len(s.devices)
		s.devices = map[string]DeviceCounters{}
		if _, err := s.counterAudit.Append(CounterEvent{Origin: by, At: at, Reset: true}); err != nil {
			s.persistFailed("append", s.counterAudit.Name(), err)
		}
	}
	s.persistSnapshot()
	s.reportKeys()
	s.logger.Warn("state reset", "scope", scope, "by", by,
		"triggers_cleared", res.TriggersCleared, "devices_cleared", res.DevicesCleared)
	return res
}

// persistSnapshot must be called with mu held.
func (s *Store) persistSnapshot() {
	snap := snapshot{
		Version:  snapshotVersion,
		SavedAt:  s.now(),
		Triggers: s.triggers,
		Devices:  s.devices,
	}
	if err := writeSnapshot(s.path, snap); err != nil {
		s.persistFailed("write", "snapshot", err)
	}
}

func (s *Store) persistFailed(op, target string, err error) {
	s.logger.Error("state persistence failed", "err", &errs.PersistenceError{Op: op, Target: target, Err: err})
	if s.observer != nil {
		s.observer.RecordPersistFailure(target)
	}
}

func (s *Store) reportKeys() {
	if s.observer == nil {
		return
	}
	s.observer.SetStateKeys("triggers", len(s.triggers))
	s.observer.SetStateKeys("devices", len(s.devices))
}
