package state

import (
	"fmt"
	"strings"
	"time"
)

// Trigger is a named flag a field device polls. The zero SetAt means the
// trigger has never been set.
type Trigger struct {
	Name   string    `json:"name"`
	Active bool      `json:"active"`
	SetAt  time.Time `json:"set_at,omitzero"`
	SetBy  string    `json:"set_by,omitempty"`
}

// Counter is one named integer reported by a device.
type Counter struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// DeviceCounters is the latest counter report of one device. Counters keep
// the order the device sent them in.
type DeviceCounters struct {
	DeviceID   string    `json:"device_id"`
	Counters   []Counter `json:"counters"`
	LastUpdate time.Time `json:"last_update,omitzero"`
}

// Value returns the counter called name.
func (d DeviceCounters) Value(name string) (int64, bool) {
	for _, c := range d.Counters {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

func (d DeviceCounters) clone() DeviceCounters {
	d.Counters = append([]Counter(nil), d.Counters...)
	return d
}

// TriggerEvent is the audit record of a trigger change or a trigger reset.
type TriggerEvent struct {
	Name   string    `json:"name,omitempty"`
	Active bool      `json:"active"`
	SetBy  string    `json:"set_by"`
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
	Reset  bool      `json:"reset,omitempty"`
}

// CounterEvent is the audit record of a counter report or a counter reset.
type CounterEvent struct {
	DeviceID string    `json:"device_id,omitempty"`
	Counters []Counter `json:"counters,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	At       time.Time `json:"at"`
	Reset    bool      `json:"reset,omitempty"`
}

// Scope selects what ResetAll clears.
type Scope string

const (
	ScopeTriggers Scope = "triggers"
	ScopeCounters Scope = "counters"
	ScopeAll      Scope = "all"
)

// ParseScope accepts the scope names used by field tooling. An empty string
// means all.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "triggers", "variables":
		return ScopeTriggers, nil
	case "counters", "buttons":
		return ScopeCounters, nil
	}
	return "", fmt.Errorf("unknown reset scope %q", s)
}

func (s Scope) triggers() bool { return s == ScopeTriggers || s == ScopeAll }
func (s Scope) counters() bool { return s == ScopeCounters || s == ScopeAll }

// ResetResult reports what a reset cleared.
type ResetResult struct {
	Scope           Scope `json:"scope"`
	Triggers        bool  `json:"triggers"`
	Counters        bool  `json:"counters"`
	TriggersCleared int   `json:"triggers_cleared"`
	DevicesCleared  int   `json:"devices_cleared"`
}
