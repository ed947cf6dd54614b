// Telemetry records accepted from field devices.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"fieldops-nav/internal/errs"
)

// Well-known field names carried by signal samples.
const (
	FieldRSSI      = "rssi"      // dBm
	FieldSignal    = "signal"    // percent
	FieldLatitude  = "latitude"  // degrees
	FieldLongitude = "longitude" // degrees
)

// SampleTableName is the GreptimeDB table mirrored samples land in. It
// defaults to "field_telemetry" and can be overridden with GREPTIMEDB_TABLE.
var SampleTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "field_telemetry"
}()

// Fields holds the named metrics of a sample. Values are float64 or string.
type Fields map[string]any

// Number returns the numeric value of name.
func (f Fields) Number(name string) (float64, bool) {
	switch v := f[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	}
	return 0, false
}

// Text returns the string value of name.
func (f Fields) Text(name string) (string, bool) {
	s, ok := f[name].(string)
	return s, ok
}

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// normalized copies f with every number stored as float64, rejecting any
// other value type.
func (f Fields) normalized() (Fields, error) {
	out := make(Fields, len(f))
	for k, v := range f {
		if strings.TrimSpace(k) == "" {
			return nil, errs.Invalid("fields", "empty field name")
		}
		switch v.(type) {
		case string:
			out[k] = v
			continue
		}
		n, ok := f.Number(k)
		if !ok {
			return nil, errs.Invalid("fields."+k, "must be a number or a string, got %T", v)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, errs.Invalid("fields."+k, "must be finite")
		}
		out[k] = n
	}
	return out, nil
}

// Sample is one immutable telemetry record.
type Sample struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Fields    Fields    `json:"fields"`
	Timestamp time.Time `json:"ts"`
	Origin    string    `json:"origin,omitempty"`
}

// HasSignal reports whether the sample carries a signal strength.
func (s Sample) HasSignal() bool {
	_, rssi := s.Fields.Number(FieldRSSI)
	_, pct := s.Fields.Number(FieldSignal)
	return rssi || pct
}

// Normalize validates s and returns a copy with numeric fields as float64.
func (s Sample) Normalize() (Sample, error) {
	if strings.TrimSpace(s.SourceID) == "" {
		return Sample{}, errs.Invalid("source_id", "required")
	}
	fields, err := s.Fields.normalized()
	if err != nil {
		return Sample{}, err
	}
	s.Fields = fields
	return s, nil
}

// Position is a location fix from the mobile unit.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"ts"`
	Origin    string    `json:"origin,omitempty"`
}

// Validate checks coordinates, optional values and the timestamp.
func (p Position) Validate() error {
	if err := CheckCoordinates(p.Latitude, p.Longitude); err != nil {
		return err
	}
	for name, v := range map[string]*float64{
		"heading":  p.Heading,
		"accuracy": p.Accuracy,
		"altitude": p.Altitude,
		"speed":    p.Speed,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return errs.Invalid(name, "must be finite")
		}
	}
	if p.Accuracy != nil && *p.Accuracy < 0 {
		return errs.Invalid("accuracy", "must not be negative")
	}
	if p.Timestamp.IsZero() {
		return errs.Invalid("ts", "required")
	}
	return nil
}

// SignalReading is the reading a wearable sends: where it is and how
// strong the link is, in either unit.
type SignalReading struct {
	HelmetID  string    `json:"helmet_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	RSSI      *float64  `json:"rssi,omitempty"`
	Signal    *float64  `json:"signal,omitempty"`
	Timestamp time.Time `json:"ts,omitempty"`
	Origin    string    `json:"origin,omitempty"`
}

func (r SignalReading) Validate() error {
	if strings.TrimSpace(r.HelmetID) == "" {
		return errs.Invalid("helmet_id", "required")
	}
	if err := CheckCoordinates(r.Latitude, r.Longitude); err != nil {
		return err
	}
	if r.RSSI == nil && r.Signal == nil {
		return errs.Invalid("rssi", "one of rssi or signal is required")
	}
	return nil
}

// Sample converts r into a telemetry sample. Unit conversion happens at
// ingestion.
func (r SignalReading) Sample() Sample {
	f := Fields{
		FieldLatitude:  r.Latitude,
		FieldLongitude: r.Longitude,
	}
	if r.RSSI != nil {
		f[FieldRSSI] = *r.RSSI
	}
	if r.Signal != nil {
		f[FieldSignal] = *r.Signal
	}
	return Sample{
		SourceID:  r.HelmetID,
		Fields:    f,
		Timestamp: r.Timestamp,
		Origin:    r.Origin,
	}
}

// CheckCoordinates rejects latitudes outside [-90,90] and longitudes outside
// [-180,180].
func CheckCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return errs.Invalid("latitude", "%v out of range [-90,90]", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return errs.Invalid("longitude", "%v out of range [-180,180]", lon)
	}
	return nil
}

// Float returns a pointer to v, for optional fields.
func Float(v float64) *float64 { return &v }

func (p Position) String() string {
	h := "n/a"
	if p.Heading != nil {
		h = fmt.Sprintf("%.1f", *p.Heading)
	}
	return fmt.Sprintf("%.6f,%.6f heading=%s", p.Latitude, p.Longitude, h)
}
