package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/errs"
	"fieldops-nav/internal/geo"
	"fieldops-nav/internal/state"
	"fieldops-nav/internal/telemetry"
)

type rssiRequest struct {
	HelmetID  string   `json:"helmet_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	RSSI      *float64 `json:"rssi"`
	Signal    *float64 `json:"signal"`
}

func (s *Server) handleRSSI(w http.ResponseWriter, r *http.Request) {
	var req rssiRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude required")
		return
	}
	sample, err := s.Engine.IngestSignalReading(r.Context(), telemetry.SignalReading{
		HelmetID:  req.HelmetID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		RSSI:      req.RSSI,
		Signal:    req.Signal,
		Origin:    clientIP(r),
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	rssi, _ := sample.Fields.Number(telemetry.FieldRSSI)
	pct, _ := sample.Fields.Number(telemetry.FieldSignal)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        sample.ID,
		"rssi":      rssi,
		"signal":    pct,
		"latitude":  *req.Latitude,
		"longitude": *req.Longitude,
	})
}

// coordinatesRequest is a position fix from the mobile unit. Heading may be
// sent as azimuth. Timestamp is in Unix milliseconds.
type coordinatesRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp *int64   `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy"`
	Altitude  *float64 `json:"altitude"`
	Speed     *float64 `json:"speed"`
	Heading   *float64 `json:"heading"`
	Azimuth   *float64 `json:"azimuth"`
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	var req coordinatesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil || req.Timestamp == nil {
		writeError(w, http.StatusBadRequest, "latitude, longitude, and timestamp are required")
		return
	}
	heading := req.Heading
	if heading == nil {
		heading = req.Azimuth
	}
	pos, err := s.Engine.IngestPosition(r.Context(), telemetry.Position{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Heading:   heading,
		Accuracy:  req.Accuracy,
		Altitude:  req.Altitude,
		Speed:     req.Speed,
		Timestamp: time.UnixMilli(*req.Timestamp).UTC(),
		Origin:    clientIP(r),
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"received": map[string]any{
			"latitude":      pos.Latitude,
			"longitude":     pos.Longitude,
			"timestamp":     *req.Timestamp,
			"timestamp_iso": pos.Timestamp.Format(time.RFC3339Nano),
			"heading":       pos.Heading,
			"accuracy":      pos.Accuracy,
			"altitude":      pos.Altitude,
			"speed":         pos.Speed,
		},
	})
}

type telemetryRequest struct {
	SourceID  string           `json:"source_id"`
	Fields    telemetry.Fields `json:"fields"`
	Timestamp *int64           `json:"timestamp"`
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var req telemetryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	sample := telemetry.Sample{SourceID: req.SourceID, Fields: req.Fields, Origin: clientIP(r)}
	if req.Timestamp != nil {
		sample.Timestamp = time.UnixMilli(*req.Timestamp).UTC()
	}
	stored, err := s.Engine.IngestTelemetrySample(r.Context(), sample)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sample": stored})
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	helmetID := r.URL.Query().Get("helmet_id")
	sample, err := s.Engine.LatestSignal(helmetID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			msg := "No RSSI data available"
			if helmetID != "" {
				msg = fmt.Sprintf("No data found for helmet_id %s", helmetID)
			}
			writeError(w, http.StatusNotFound, msg)
			return
		}
		writeEngineError(w, r, err)
		return
	}
	body := map[string]any{
		"helmet_id": sample.SourceID,
		"timestamp": sample.Timestamp.Format(time.RFC3339Nano),
		"client_ip": sample.Origin,
	}
	for _, name := range []string{telemetry.FieldRSSI, telemetry.FieldSignal, telemetry.FieldLatitude, telemetry.FieldLongitude} {
		if v, ok := sample.Fields.Number(name); ok {
			body[name] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDroneCoordinates(w http.ResponseWriter, r *http.Request) {
	coords, err := s.Engine.DroneCoordinates()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(coords)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	log := q.Get("log")
	if log == "" {
		log = engine.LogTelemetry
	}
	n, err := intParam(q.Get("n"), 10)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	recs, err := s.Engine.History(log, n, q.Get("source"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"log":     log,
		"count":   len(recs),
		"records": recs,
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Invalid("n", "must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

func (s *Server) handleSignalSummary(w http.ResponseWriter, r *http.Request) {
	sums, err := s.Engine.SignalSummary()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	for i := range sums {
		sums[i].AvgRSSI = round(sums[i].AvgRSSI, 1)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sums})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dbm, pct := q.Get("dbm"), q.Get("percent")
	if (dbm == "") == (pct == "") {
		writeError(w, http.StatusBadRequest, "exactly one of dbm or percent is required")
		return
	}
	raw, from := dbm, engine.ConvertFromDBM
	if pct != "" {
		raw, from = pct, engine.ConvertFromPercent
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("not a number: %q", raw))
		return
	}
	c := from(v)
	writeJSON(w, http.StatusOK, map[string]any{
		"rssi":     c.DBM,
		"signal":   c.Percent,
		"strength": c.Strength,
		"bars":     c.Bars,
	})
}

type waypointRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	SetBy     string   `json:"set_by"`
	Timestamp *int64   `json:"timestamp"`
}

func (s *Server) handleSetWaypoint(w http.ResponseWriter, r *http.Request) {
	var req waypointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude required")
		return
	}
	setBy := strings.TrimSpace(req.SetBy)
	if setBy == "" {
		setBy = "unknown"
	}
	var at time.Time
	if req.Timestamp != nil {
		at = time.UnixMilli(*req.Timestamp).UTC()
	}
	wp, err := s.Engine.SetWaypoint(*req.Latitude, *req.Longitude, setBy, at)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Safe coordinates set",
		"waypoint": wp,
	})
}

func (s *Server) handleGetWaypoint(w http.ResponseWriter, r *http.Request) {
	wp, ok := s.Engine.GetWaypoint()
	if !ok {
		writeError(w, http.StatusNotFound, "No waypoint set")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"waypoint":  wp,
		"formatted": geo.FormatCoordinates(wp.Latitude, wp.Longitude, 0),
		"maps_url":  geo.MapsURL(wp.Latitude, wp.Longitude),
	})
}

func (s *Server) handleCalculateDirection(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.ResolveNavigation()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	var accuracy float64
	if res.Position.Accuracy != nil {
		accuracy = *res.Position.Accuracy
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"direction": res.Direction,
		"navigation": map[string]any{
			"bearing":      round(res.Bearing, 1),
			"distance":     round(res.DistanceMeters, 2),
			"heading_diff": round(res.HeadingDiff, 1),
		},
		"current_position": map[string]any{
			"latitude":  res.Position.Latitude,
			"longitude": res.Position.Longitude,
			"heading":   round(res.Heading, 1),
			"formatted": geo.FormatCoordinates(res.Position.Latitude, res.Position.Longitude, accuracy),
			"maps_url":  geo.MapsURL(res.Position.Latitude, res.Position.Longitude),
		},
		"waypoint": res.Waypoint,
	})
}

type triggerRequest struct {
	VariableName string `json:"variable_name"`
	Triggered    *bool  `json:"triggered"`
	TriggeredBy  string `json:"triggered_by"`
}

func (s *Server) handleSetTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	active := true
	if req.Triggered != nil {
		active = *req.Triggered
	}
	t, err := s.Engine.SetTrigger(r.Context(), req.VariableName, active, req.TriggeredBy, clientIP(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerBody(t))
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("variable_name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "variable_name is required")
		return
	}
	writeJSON(w, http.StatusOK, triggerBody(s.Engine.GetTrigger(name)))
}

// triggerBody renders a trigger; an unset trigger has null timestamp and
// triggered_by.
func triggerBody(t state.Trigger) map[string]any {
	body := map[string]any{
		"variable_name": t.Name,
		"triggered":     t.Active,
		"timestamp":     nil,
		"triggered_by":  nil,
	}
	if !t.SetAt.IsZero() {
		body["timestamp"] = t.SetAt.Format(time.RFC3339Nano)
		body["triggered_by"] = t.SetBy
	}
	return body
}

// handleButtonCount accepts {"device_id": ..., "<counter>": n, ...}. Counters
// keep the order they appear in the body.
func (s *Server) handleButtonCount(w http.ResponseWriter, r *http.Request) {
	deviceID, counters, err := decodeCounters(r.Body)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	d, err := s.Engine.SetDeviceCounters(r.Context(), deviceID, counters, clientIP(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterBody(d))
}

func decodeCounters(body io.Reader) (string, []state.Counter, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	invalid := func(err error) error {
		return &errs.ValidationError{Reason: "invalid JSON: " + err.Error()}
	}
	tok, err := dec.Token()
	if err != nil {
		return "", nil, invalid(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", nil, errs.Invalid("body", "must be a JSON object")
	}
	var deviceID string
	var counters []state.Counter
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, invalid(err)
		}
		key := tok.(string)
		if key == "device_id" {
			if err := dec.Decode(&deviceID); err != nil {
				return "", nil, errs.Invalid("device_id", "must be a string")
			}
			continue
		}
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return "", nil, errs.Invalid(key, "must be an integer")
		}
		v, err := n.Int64()
		if err != nil {
			return "", nil, errs.Invalid(key, "must be an integer, got %s", n)
		}
		counters = append(counters, state.Counter{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return "", nil, invalid(err)
	}
	return deviceID, counters, nil
}

// counterBody renders a device report with counts keyed by counter name.
func counterBody(d state.DeviceCounters) map[string]any {
	counts := make(map[string]int64, len(d.Counters))
	for _, c := range d.Counters {
		counts[c.Name] = c.Value
	}
	var last any
	if !d.LastUpdate.IsZero() {
		last = d.LastUpdate.Format(time.RFC3339Nano)
	}
	return map[string]any{
		"device_id":   d.DeviceID,
		"counts":      counts,
		"last_update": last,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if name := q.Get("variable_name"); name != "" {
		writeJSON(w, http.StatusOK, triggerBody(s.Engine.GetTrigger(name)))
		return
	}
	if id := q.Get("device_id"); id != "" {
		writeJSON(w, http.StatusOK, counterBody(s.Engine.GetDeviceCounters(id)))
		return
	}
	st := s.Engine.State()
	variables := map[string]any{}
	for _, t := range st.Triggers() {
		body := triggerBody(t)
		delete(body, "variable_name")
		variables[t.Name] = body
	}
	devices := map[string]any{}
	for _, d := range st.Devices() {
		body := counterBody(d)
		delete(body, "device_id")
		devices[d.DeviceID] = body
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variables":     variables,
		"button_counts": devices,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("confirm") != "yes" {
		writeError(w, http.StatusBadRequest, "Please add ?confirm=yes to confirm data reset")
		return
	}
	scope, err := state.ParseScope(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.Engine.Reset(scope, clientIP(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("IoT data reset successfully (type: %s)", res.Scope),
		"reset": map[string]any{
			"variables":     res.Triggers,
			"button_counts": res.Counters,
		},
		"cleared": map[string]int{
			"variables":     res.TriggersCleared,
			"button_counts": res.DevicesCleared,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.Engine.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"service":         "fieldops-nav",
		"variables_count": h.Triggers,
		"devices_count":   h.Devices,
		"waypoint_set":    h.Waypoint,
		"journals":        h.Journals,
		"timestamp":       s.now().Format(time.RFC3339Nano),
	})
}
