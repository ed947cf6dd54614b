package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	e, err := engine.Open(engine.Options{DataDir: t.TempDir(), Logger: logger, Metrics: m})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	s := NewServer(e, m, logger)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: response is not a JSON object: %q", method, path, w.Body.String())
	}
	return w.Code, out
}

func TestNavigationFlow(t *testing.T) {
	_, h := newTestServer(t)

	code, body := do(t, h, http.MethodGet, "/calculate-direction", "")
	if code != http.StatusConflict || body["code"] != "no_waypoint" {
		t.Fatalf("no waypoint: %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodGet, "/waypoint", "")
	if code != http.StatusNotFound {
		t.Fatalf("GET /waypoint = %d, want 404", code)
	}

	code, body = do(t, h, http.MethodPost, "/safe-coordinates", `{"latitude":1,"longitude":0,"set_by":"mobile_app"}`)
	if code != http.StatusOK {
		t.Fatalf("set waypoint: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/calculate-direction", "")
	if code != http.StatusConflict || body["code"] != "no_position" {
		t.Fatalf("no position: %d %v", code, body)
	}

	ts := time.Now().UnixMilli()
	pos := `{"latitude":0,"longitude":0,"timestamp":` + jsonInt(ts) + `}`
	if code, body = do(t, h, http.MethodPost, "/coordinates", pos); code != http.StatusOK {
		t.Fatalf("post position: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/calculate-direction", "")
	if code != http.StatusConflict || body["code"] != "no_heading" {
		t.Fatalf("no heading: %d %v", code, body)
	}

	pos = `{"latitude":0,"longitude":0,"azimuth":360,"accuracy":4,"timestamp":` + jsonInt(ts+1000) + `}`
	if code, body = do(t, h, http.MethodPost, "/coordinates", pos); code != http.StatusOK {
		t.Fatalf("post position: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/calculate-direction", "")
	if code != http.StatusOK {
		t.Fatalf("calculate: %d %v", code, body)
	}
	if body["direction"] != "FRONT" {
		t.Errorf("direction = %v", body["direction"])
	}
	navBody := body["navigation"].(map[string]any)
	if navBody["bearing"] != 0.0 || navBody["heading_diff"] != 0.0 {
		t.Errorf("navigation = %v", navBody)
	}
	if d := navBody["distance"].(float64); d < 111000 || d > 111400 {
		t.Errorf("distance = %v", d)
	}
	current := body["current_position"].(map[string]any)
	if h := current["heading"]; h != 0.0 {
		t.Errorf("heading = %v, want normalized 0", h)
	}
	if got := current["formatted"]; got != "0.000000°N, 0.000000°E (±4.0m)" {
		t.Errorf("formatted = %v", got)
	}
	if got := current["maps_url"]; got != "https://www.google.com/maps?q=0,0" {
		t.Errorf("maps_url = %v", got)
	}

	code, body = do(t, h, http.MethodGet, "/waypoint", "")
	if code != http.StatusOK || body["waypoint"].(map[string]any)["set_by"] != "mobile_app" {
		t.Errorf("GET /waypoint = %d %v", code, body)
	}
	if body["formatted"] != "1.000000°N, 0.000000°E" || body["maps_url"] != "https://www.google.com/maps?q=1,0" {
		t.Errorf("GET /waypoint links = %v %v", body["formatted"], body["maps_url"])
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestCoordinatesValidation(t *testing.T) {
	_, h := newTestServer(t)
	tests := map[string]string{
		"missing timestamp": `{"latitude":1,"longitude":2}`,
		"unknown field":     `{"latitude":1,"longitude":2,"timestamp":1,"bogus":true}`,
		"latitude range":    `{"latitude":91,"longitude":2,"timestamp":1}`,
		"not json":          `lat=1`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			code, out := do(t, h, http.MethodPost, "/coordinates", body)
			if code != http.StatusBadRequest || out["status"] != "error" {
				t.Errorf("got %d %v", code, out)
			}
		})
	}
}

func TestSignalRoutes(t *testing.T) {
	_, h := newTestServer(t)

	code, _ := do(t, h, http.MethodGet, "/get-signal", "")
	if code != http.StatusNotFound {
		t.Fatalf("empty get-signal = %d", code)
	}

	code, body := do(t, h, http.MethodPost, "/rssi", `{"helmet_id":"helmet-1","latitude":11.49,"longitude":77.27,"rssi":-65}`)
	if code != http.StatusOK || body["signal"] != 50.0 {
		t.Fatalf("post rssi: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodPost, "/rssi", `{"helmet_id":"helmet-2","latitude":11.49,"longitude":77.27,"signal":100}`)
	if code != http.StatusOK || body["rssi"] != -40.0 {
		t.Fatalf("post signal: %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodPost, "/rssi", `{"helmet_id":"helmet-3","latitude":11.49,"longitude":77.27}`)
	if code != http.StatusBadRequest {
		t.Errorf("reading without signal = %d", code)
	}

	code, body = do(t, h, http.MethodGet, "/get-signal?helmet_id=helmet-1", "")
	if code != http.StatusOK || body["rssi"] != -65.0 {
		t.Errorf("per-helmet signal: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/get-signal", "")
	if code != http.StatusOK || body["helmet_id"] != "helmet-2" {
		t.Errorf("latest signal: %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodGet, "/get-signal?helmet_id=nobody", "")
	if code != http.StatusNotFound {
		t.Errorf("unknown helmet = %d", code)
	}

	code, body = do(t, h, http.MethodGet, "/signal-summary", "")
	if code != http.StatusOK || len(body["sources"].([]any)) != 2 {
		t.Errorf("summary: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/history?log=telemetry&n=1&source=helmet-1", "")
	if code != http.StatusOK || body["count"] != 1.0 {
		t.Errorf("history: %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodGet, "/history?log=nope", "")
	if code != http.StatusBadRequest {
		t.Errorf("unknown log = %d", code)
	}
}

func TestHistoryHugeCount(t *testing.T) {
	_, h := newTestServer(t)
	do(t, h, http.MethodPost, "/rssi", `{"helmet_id":"h1","latitude":1,"longitude":2,"rssi":-60}`)
	code, body := do(t, h, http.MethodGet, "/history?log=telemetry&n=9000000000000000000&source=h1", "")
	if code != http.StatusOK || body["count"] != 1.0 {
		t.Errorf("history: %d %v", code, body)
	}
}

func TestDroneCoordinates(t *testing.T) {
	_, h := newTestServer(t)
	get := func() []float64 {
		req := httptest.NewRequest(http.MethodGet, "/get-coordinates-drone", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		var out []float64
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v (%q)", err, w.Body.String())
		}
		return out
	}
	if got := get(); len(got) != 4 || got[0] != 0 || got[2] != 0 {
		t.Fatalf("empty = %v", got)
	}
	do(t, h, http.MethodPost, "/coordinates", `{"latitude":11.5,"longitude":77.3,"heading":10,"timestamp":1700000000000}`)
	do(t, h, http.MethodPost, "/rssi", `{"helmet_id":"h","latitude":11.5,"longitude":77.3,"signal":40}`)
	got := get()
	if got[0] != 11.5 || got[1] != 77.3 || got[2] != 1 || got[3] != 40 {
		t.Errorf("coordinates = %v", got)
	}
}

func TestTriggerRoutes(t *testing.T) {
	_, h := newTestServer(t)

	code, body := do(t, h, http.MethodGet, "/iot/trigger?variable_name=navigate", "")
	if code != http.StatusOK || body["triggered"] != false || body["timestamp"] != nil || body["triggered_by"] != nil {
		t.Fatalf("default trigger: %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodGet, "/iot/trigger", "")
	if code != http.StatusBadRequest {
		t.Errorf("missing variable_name = %d", code)
	}

	code, body = do(t, h, http.MethodPost, "/iot/trigger", `{"variable_name":"navigate"}`)
	if code != http.StatusOK || body["triggered"] != true || body["triggered_by"] != "unknown" {
		t.Fatalf("set trigger: %d %v", code, body)
	}
	do(t, h, http.MethodPost, "/iot/trigger", `{"variable_name":"navigate","triggered":false,"triggered_by":"app"}`)
	code, body = do(t, h, http.MethodGet, "/iot/status?variable_name=navigate", "")
	if code != http.StatusOK || body["triggered"] != false || body["triggered_by"] != "app" {
		t.Errorf("status: %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodPost, "/iot/trigger", `{"triggered":true}`)
	if code != http.StatusBadRequest {
		t.Errorf("missing name = %d", code)
	}
}

func TestButtonCountsAndReset(t *testing.T) {
	_, h := newTestServer(t)

	code, body := do(t, h, http.MethodGet, "/iot/status?device_id=esp32_001", "")
	counts := body["counts"].(map[string]any)
	if code != http.StatusOK || counts["button_1"] != 0.0 || len(counts) != 3 || body["last_update"] != nil {
		t.Fatalf("default counters: %d %v", code, body)
	}

	code, body = do(t, h, http.MethodPost, "/iot/button-count", `{"device_id":"esp32_001","button_1":5,"button_2":3,"button_3":7}`)
	if code != http.StatusOK || body["counts"].(map[string]any)["button_3"] != 7.0 {
		t.Fatalf("button count: %d %v", code, body)
	}
	for name, payload := range map[string]string{
		"fraction":  `{"device_id":"d","button_1":1.5}`,
		"no device": `{"button_1":1}`,
		"array":     `[1,2]`,
	} {
		if code, _ := do(t, h, http.MethodPost, "/iot/button-count", payload); code != http.StatusBadRequest {
			t.Errorf("%s: code = %d", name, code)
		}
	}

	do(t, h, http.MethodPost, "/iot/trigger", `{"variable_name":"alarm"}`)
	code, body = do(t, h, http.MethodGet, "/iot/health", "")
	if code != http.StatusOK || body["variables_count"] != 1.0 || body["devices_count"] != 1.0 {
		t.Fatalf("health: %d %v", code, body)
	}

	if code, _ := do(t, h, http.MethodPost, "/iot/reset", ""); code != http.StatusBadRequest {
		t.Errorf("unconfirmed reset = %d", code)
	}
	if code, _ := do(t, h, http.MethodPost, "/iot/reset?confirm=yes&type=everything", ""); code != http.StatusBadRequest {
		t.Errorf("bad type = %d", code)
	}
	code, body = do(t, h, http.MethodPost, "/iot/reset?confirm=yes&type=buttons", "")
	reset := body["reset"].(map[string]any)
	if code != http.StatusOK || reset["button_counts"] != true || reset["variables"] != false {
		t.Fatalf("reset: %d %v", code, body)
	}
	_, body = do(t, h, http.MethodGet, "/iot/status", "")
	if len(body["button_counts"].(map[string]any)) != 0 || len(body["variables"].(map[string]any)) != 1 {
		t.Errorf("status after reset: %v", body)
	}
}

func TestTelemetryAndConvert(t *testing.T) {
	_, h := newTestServer(t)

	code, body := do(t, h, http.MethodPost, "/telemetry", `{"source_id":"rover-1","fields":{"rssi":-90,"mode":"auto"}}`)
	if code != http.StatusOK {
		t.Fatalf("telemetry: %d %v", code, body)
	}
	fields := body["sample"].(map[string]any)["fields"].(map[string]any)
	if fields["signal"] != 0.0 || fields["mode"] != "auto" {
		t.Errorf("fields = %v", fields)
	}
	code, _ = do(t, h, http.MethodPost, "/telemetry", `{"source_id":"rover-1","fields":{"armed":true}}`)
	if code != http.StatusBadRequest {
		t.Errorf("bool field = %d", code)
	}

	code, body = do(t, h, http.MethodGet, "/convert?dbm=-40", "")
	if code != http.StatusOK || body["signal"] != 100.0 || body["strength"] != "Excellent" {
		t.Errorf("convert dbm: %d %v", code, body)
	}
	code, body = do(t, h, http.MethodGet, "/convert?percent=0", "")
	if code != http.StatusOK || body["rssi"] != -90.0 {
		t.Errorf("convert percent: %d %v", code, body)
	}
	if code, _ := do(t, h, http.MethodGet, "/convert?dbm=1&percent=2", ""); code != http.StatusBadRequest {
		t.Errorf("both units = %d", code)
	}
}

func TestMetricsRoute(t *testing.T) {
	_, h := newTestServer(t)
	do(t, h, http.MethodPost, "/iot/trigger", `{"variable_name":"alarm"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("fieldops_")) {
		t.Errorf("metrics: %d %q", w.Code, w.Body.String())
	}
}
