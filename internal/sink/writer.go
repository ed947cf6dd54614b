// Package sink forwards telemetry samples to external destinations.
package sink

import (
	"context"
	"errors"

	"fieldops-nav/internal/telemetry"
)

// SampleWriter accepts telemetry samples.
type SampleWriter interface {
	Write(ctx context.Context, s telemetry.Sample) error
}

type batchWriter interface {
	WriteBatch(ctx context.Context, samples []telemetry.Sample) error
}

// MultiWriter fans samples out to several writers. Every writer is tried;
// the errors are joined.
type MultiWriter struct {
	writers []SampleWriter
}

// NewMultiWriter creates a MultiWriter. Nil writers are dropped.
func NewMultiWriter(ws ...SampleWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Len is the number of downstream writers.
func (mw *MultiWriter) Len() int { return len(mw.writers) }

func (mw *MultiWriter) Write(ctx context.Context, s telemetry.Sample) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends samples to all writers, in one call where supported.
func (mw *MultiWriter) WriteBatch(ctx context.Context, samples []telemetry.Sample) error {
	var errs []error
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(ctx, samples); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, s := range samples {
			if err := w.Write(ctx, s); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}
