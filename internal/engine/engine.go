// Package engine wires the journals, keyed state, waypoint registry and
// navigation resolver behind one set of operations.
package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fieldops-nav/internal/journal"
	"fieldops-nav/internal/metrics"
	"fieldops-nav/internal/nav"
	"fieldops-nav/internal/sink"
	"fieldops-nav/internal/state"
	"fieldops-nav/internal/telemetry"
	"fieldops-nav/internal/waypoint"
)

// Storage backends.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// DefaultMirrorTimeout bounds a mirror write when Options leaves it unset.
const DefaultMirrorTimeout = 2 * time.Second

// Journal handles accepted by History.
const (
	LogTelemetry    = "telemetry"
	LogPositions    = "positions"
	LogWaypoints    = "waypoints"
	LogTriggerAudit = "trigger_audit"
	LogCounterAudit = "counter_audit"
)

// LogNames lists every journal handle.
var LogNames = []string{LogTelemetry, LogPositions, LogWaypoints, LogTriggerAudit, LogCounterAudit}

// Options configure an Engine.
type Options struct {
	DataDir         string
	Backend         string
	SyncWrites      bool
	DefaultCounters []string
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	// Mirror receives every accepted telemetry sample after it is journaled.
	Mirror sink.SampleWriter
	// MirrorTimeout bounds each mirror write. Zero means DefaultMirrorTimeout.
	MirrorTimeout time.Duration
	Now           func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	telemetry    journal.Log[telemetry.Sample]
	positions    journal.Log[telemetry.Position]
	waypoints    journal.Log[waypoint.Waypoint]
	triggerAudit journal.Log[state.TriggerEvent]
	counterAudit journal.Log[state.CounterEvent]

	state    *state.Store
	registry *waypoint.Registry
	resolver *nav.Resolver

	mirror        sink.SampleWriter
	mirrorTimeout time.Duration
	metrics       *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	db      *sql.DB
	closers []func() error
}

// Open creates dataDir if needed and restores all state from it.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, errors.New("engine: data dir required")
	}
	if opts.Backend == "" {
		opts.Backend = BackendJSONL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = DefaultMirrorTimeout
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		mirror:        opts.Mirror,
		mirrorTimeout: opts.MirrorTimeout,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if err := e.openJournals(opts); err != nil {
		e.Close()
		return nil, err
	}

	var err error
	e.state, err = state.Open(state.Options{
		SnapshotPath:    filepath.Join(opts.DataDir, "state.json"),
		TriggerAudit:    e.triggerAudit,
		CounterAudit:    e.counterAudit,
		DefaultCounters: opts.DefaultCounters,
		Logger:          opts.Logger,
		Observer:        opts.Metrics,
		Now:             opts.Now,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.registry, err = waypoint.New(waypoint.Options{
		History:       e.waypoints,
		Logger:        opts.Logger,
		PersistFailed: opts.Metrics.RecordPersistFailure,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.resolver = nav.NewResolver(e, e.registry, opts.Metrics)
	e.logger.Info("engine ready", "data_dir", opts.DataDir, "backend", opts.Backend)
	return e, nil
}

func (e *Engine) openJournals(opts Options) error {
	var err error
	switch opts.Backend {
	case BackendJSONL:
		if e.telemetry, err = openFileLog[telemetry.Sample](e, opts, LogTelemetry); err != nil {
			return err
		}
		if e.positions, err = openFileLog[telemetry.Position](e, opts, LogPositions); err != nil {
			return err
		}
		if e.waypoints, err = openFileLog[waypoint.Waypoint](e, opts, LogWaypoints); err != nil {
			return err
		}
		if e.triggerAudit, err = openFileLog[state.TriggerEvent](e, opts, LogTriggerAudit); err != nil {
			return err
		}
		if e.counterAudit, err = openFileLog[state.CounterEvent](e, opts, LogCounterAudit); err != nil {
			return err
		}
	case BackendSQLite:
		e.db, err = journal.OpenSQLite(filepath.Join(opts.DataDir, "fieldops.db"))
		if err != nil {
			return err
		}
		if e.telemetry, err = openSQLiteLog[telemetry.Sample](e, opts, LogTelemetry); err != nil {
			return err
		}
		if e.positions, err = openSQLiteLog[telemetry.Position](e, opts, LogPositions); err != nil {
			return err
		}
		if e.waypoints, err = openSQLiteLog[waypoint.Waypoint](e, opts, LogWaypoints); err != nil {
			return err
		}
		if e.triggerAudit, err = openSQLiteLog[state.TriggerEvent](e, opts, LogTriggerAudit); err != nil {
			return err
		}
		if e.counterAudit, err = openSQLiteLog[state.CounterEvent](e, opts, LogCounterAudit); err != nil {
			return err
		}
	default:
		return fmt.Errorf("engine: unknown storage backend %q", opts.Backend)
	}
	return nil
}

func logOptions(opts Options, name string) journal.Options {
	return journal.Options{
		Name:     name,
		Sync:     opts.SyncWrites,
		Logger:   opts.Logger,
		Observer: opts.Metrics,
	}
}

func openFileLog[T any](e *Engine, opts Options, name string) (journal.Log[T], error) {
	l, err := journal.OpenFile[T](filepath.Join(opts.DataDir, name+".jsonl"), logOptions(opts, name))
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, l.Close)
	return l, nil
}

func openSQLiteLog[T any](e *Engine, opts Options, name string) (journal.Log[T], error) {
	l, err := journal.NewSQLiteLog[T](e.db, logOptions(opts, name))
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, l.Close)
	return l, nil
}

// Close releases every journal.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
		e.db = nil
	}
	return errors.Join(errs...)
}

// TelemetryLog exposes the telemetry journal for replay.
func (e *Engine) TelemetryLog() journal.Log[telemetry.Sample] { return e.telemetry }

// State exposes the keyed state.
func (e *Engine) State() *state.Store { return e.state }

func (e *Engine) observe(op string, start time.Time) {
	e.metrics.ObserveLatency(op, time.Since(start).Seconds())
}
