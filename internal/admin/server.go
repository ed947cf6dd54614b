// Package admin exposes the engine over HTTP using the routes field devices
// already speak.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/errs"
	"fieldops-nav/internal/logging"
	"fieldops-nav/internal/metrics"
	"fieldops-nav/internal/nav"
)

type Server struct {
	Engine  *engine.Engine
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	mux     *http.ServeMux
	now     func() time.Time
}

func NewServer(e *engine.Engine, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Engine:  e,
		Metrics: m,
		Logger:  logger,
		mux:     http.NewServeMux(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /rssi", s.handleRSSI)
	s.mux.HandleFunc("POST /coordinates", s.handleCoordinates)
	s.mux.HandleFunc("POST /telemetry", s.handleTelemetry)
	s.mux.HandleFunc("GET /get-signal", s.handleGetSignal)
	s.mux.HandleFunc("GET /get-coordinates-drone", s.handleDroneCoordinates)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("GET /signal-summary", s.handleSignalSummary)
	s.mux.HandleFunc("GET /convert", s.handleConvert)

	s.mux.HandleFunc("POST /safe-coordinates", s.handleSetWaypoint)
	s.mux.HandleFunc("GET /waypoint", s.handleGetWaypoint)
	s.mux.HandleFunc("GET /calculate-direction", s.handleCalculateDirection)

	s.mux.HandleFunc("POST /iot/trigger", s.handleSetTrigger)
	s.mux.HandleFunc("GET /iot/trigger", s.handleGetTrigger)
	s.mux.HandleFunc("POST /iot/button-count", s.handleButtonCount)
	s.mux.HandleFunc("GET /iot/status", s.handleStatus)
	s.mux.HandleFunc("POST /iot/reset", s.handleReset)
	s.mux.HandleFunc("GET /iot/health", s.handleHealth)

	if s.Metrics != nil {
		s.mux.Handle("GET /metrics", s.Metrics.Handler())
	}
}

// Handler returns the routed handler with request logging attached.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.Logger.With("method", r.Method, "path", r.URL.Path, "remote", clientIP(r))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r.WithContext(logging.NewContext(r.Context(), l)))
		l.Debug("request", "status", rec.status, "duration", time.Since(start))
	})
}

// HTTPServer builds the listener configuration for addr.
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON writes body with status "ok" merged in.
func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["status"]; !ok {
		body["status"] = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "message": message})
}

// writeEngineError maps engine errors onto status codes.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *nav.PreconditionError
	switch {
	case errs.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pe):
		writeJSON(w, http.StatusConflict, map[string]any{
			"status": "error", "code": pe.Code, "message": pe.Error(),
		})
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logging.FromContext(r.Context()).Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes the request body into target, rejecting unknown fields.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return &errs.ValidationError{Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
