package sink

import (
	"context"
	"time"

	"fieldops-nav/internal/journal"
	"fieldops-nav/internal/telemetry"
)

// ReplayOptions control a replay.
type ReplayOptions struct {
	// Speed >0 reproduces the recorded spacing divided by Speed. Speed <= 0
	// replays without delay.
	Speed float64
	// SourceID restricts the replay to one source when set.
	SourceID string
}

// Replay writes every sample of src to w in journal order and returns how
// many were written.
func Replay(ctx context.Context, src journal.Log[telemetry.Sample], w SampleWriter, opts ReplayOptions) (int, error) {
	var (
		prev time.Time
		n    int
	)
	err := src.Scan(func(e journal.Entry[telemetry.Sample]) error {
		s := e.Record
		if opts.SourceID != "" && s.SourceID != opts.SourceID {
			return nil
		}
		if !prev.IsZero() && opts.Speed > 0 {
			diff := s.Timestamp.Sub(prev)
			if opts.Speed != 1 {
				diff = time.Duration(float64(diff) / opts.Speed)
			}
			if err := sleep(ctx, diff); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(ctx, s); err != nil {
			return err
		}
		n++
		prev = s.Timestamp
		return nil
	})
	return n, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
