package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"fieldops-nav/internal/telemetry"
)

// JSONWriter prints one JSON object per sample.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter writes to w, or to STDOUT when w is nil.
func NewJSONWriter(w io.Writer) *JSONWriter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONWriter{enc: json.NewEncoder(w)}
}

func (w *JSONWriter) Write(_ context.Context, s telemetry.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(s)
}

func (w *JSONWriter) WriteBatch(ctx context.Context, samples []telemetry.Sample) error {
	for _, s := range samples {
		if err := w.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
