package main

import (
	"io"
	"log/slog"

	"fieldops-nav/internal/config"
	"fieldops-nav/internal/sink"
)

// newMirror returns the GreptimeDB mirror, or nil when no endpoint is set.
func newMirror(gc config.GreptimeConfig, logger *slog.Logger) (sink.SampleWriter, error) {
	if gc.Endpoint == "" {
		return nil, nil
	}
	w, err := sink.NewGreptimeWriter(gc.Endpoint, gc.Database, gc.Table, logger)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// newReplayWriter picks GreptimeDB when an endpoint is configured and
// printOnly is off, JSON lines on out otherwise.
func newReplayWriter(gc config.GreptimeConfig, printOnly bool, out io.Writer, logger *slog.Logger) (sink.SampleWriter, error) {
	if printOnly || gc.Endpoint == "" {
		return sink.NewJSONWriter(out), nil
	}
	return newMirror(gc, logger)
}
