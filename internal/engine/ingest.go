package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fieldops-nav/internal/errs"
	"fieldops-nav/internal/geo"
	"fieldops-nav/internal/logging"
	"fieldops-nav/internal/signal"
	"fieldops-nav/internal/telemetry"
)

// Ingest kinds used in metrics.
const (
	kindSample   = "sample"
	kindSignal   = "signal"
	kindPosition = "position"
)

// IngestTelemetrySample validates s, fills in its id and timestamp, derives
// the missing signal unit and appends it to the telemetry journal. The
// mirror, if any, is written after the journal within MirrorTimeout; its
// failure does not fail the call.
func (e *Engine) IngestTelemetrySample(ctx context.Context, s telemetry.Sample) (telemetry.Sample, error) {
	defer e.observe("ingest_sample", time.Now())
	return e.ingestSample(ctx, s, kindSample)
}

// IngestSignalReading stores a wearable's signal reading as a telemetry
// sample. Readings do not move the mobile unit's position.
func (e *Engine) IngestSignalReading(ctx context.Context, r telemetry.SignalReading) (telemetry.Sample, error) {
	defer e.observe("ingest_signal", time.Now())
	if err := r.Validate(); err != nil {
		e.metrics.RecordRejected(kindSignal)
		return telemetry.Sample{}, err
	}
	return e.ingestSample(ctx, r.Sample(), kindSignal)
}

func (e *Engine) ingestSample(ctx context.Context, s telemetry.Sample, kind string) (telemetry.Sample, error) {
	s, err := s.Normalize()
	if err != nil {
		e.metrics.RecordRejected(kind)
		return telemetry.Sample{}, err
	}
	if err := normalizeSignal(s.Fields); err != nil {
		e.metrics.RecordRejected(kind)
		return telemetry.Sample{}, err
	}
	s.ID = uuid.NewString()
	if s.Timestamp.IsZero() {
		s.Timestamp = e.now()
	}

	entry, err := e.telemetry.Append(s)
	if err != nil {
		return telemetry.Sample{}, err
	}
	e.metrics.RecordIngest(kind)
	logging.FromContext(ctx).Debug("sample ingested",
		"seq", entry.Seq, "source_id", s.SourceID, "fields", len(s.Fields), "origin", s.Origin)

	if e.mirror != nil {
		mctx, cancel := context.WithTimeout(ctx, e.mirrorTimeout)
		err := e.mirror.Write(mctx, s)
		cancel()
		if err != nil {
			e.metrics.RecordPersistFailure("mirror")
			e.logger.Error("mirror write failed",
				"err", &errs.PersistenceError{Op: "mirror", Target: s.ID, Err: err})
		}
	}
	return s, nil
}

// normalizeSignal derives signal (percent) from rssi (dBm) or the other way
// round when only one is present.
func normalizeSignal(f telemetry.Fields) error {
	rssi, hasRSSI := f.Number(telemetry.FieldRSSI)
	pct, hasPct := f.Number(telemetry.FieldSignal)
	if _, isText := f.Text(telemetry.FieldRSSI); isText {
		return errs.Invalid(telemetry.FieldRSSI, "must be a number")
	}
	if _, isText := f.Text(telemetry.FieldSignal); isText {
		return errs.Invalid(telemetry.FieldSignal, "must be a number")
	}
	switch {
	case hasRSSI && !hasPct:
		f[telemetry.FieldSignal] = float64(signal.ToPercent(rssi))
	case hasPct && !hasRSSI:
		f[telemetry.FieldRSSI] = float64(signal.ToDBM(pct))
	}
	return nil
}

// IngestPosition appends a position fix with its heading normalized to
// [0,360).
func (e *Engine) IngestPosition(ctx context.Context, p telemetry.Position) (telemetry.Position, error) {
	defer e.observe("ingest_position", time.Now())
	if err := p.Validate(); err != nil {
		e.metrics.RecordRejected(kindPosition)
		return telemetry.Position{}, err
	}
	if p.Heading != nil {
		p.Heading = telemetry.Float(geo.NormalizeAngle(*p.Heading))
	}
	entry, err := e.positions.Append(p)
	if err != nil {
		return telemetry.Position{}, err
	}
	e.metrics.RecordIngest(kindPosition)
	logging.FromContext(ctx).Debug("position ingested", "seq", entry.Seq, "position", p.String())
	return p, nil
}
