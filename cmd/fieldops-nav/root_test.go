package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/state"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"GREPTIMEDB_ENDPOINT", "FIELDOPS_DATA_DIR", "FIELDOPS_STORAGE_BACKEND", "FIELDOPS_ADDR"} {
		t.Setenv(k, "")
	}
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	out, err := run(t, "convert", "--dbm", "-65")
	if err != nil {
		t.Fatal(err)
	}
	var c engine.Conversion
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if c.Percent != 50 || c.Strength != "Fair" {
		t.Errorf("conversion = %+v", c)
	}

	if _, err := run(t, "convert"); err == nil {
		t.Error("convert without a value should fail")
	}
	out, err = run(t, "convert", "--percent", "100")
	if err != nil || !strings.Contains(out, `"rssi": -40`) {
		t.Errorf("percent conversion: %q, %v", out, err)
	}
}

func TestTriggerAndResetCommands(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "--data-dir", dir, "trigger", "navigate", "--by", "ops")
	if err != nil {
		t.Fatal(err)
	}
	var tr state.Trigger
	if err := json.Unmarshal([]byte(out), &tr); err != nil || !tr.Active || tr.SetBy != "ops" {
		t.Fatalf("trigger = %+v (%v)", tr, err)
	}

	out, err = run(t, "--data-dir", dir, "trigger", "navigate", "--show")
	if err != nil || !strings.Contains(out, `"active": true`) {
		t.Fatalf("show after restart: %q, %v", out, err)
	}

	if _, err := run(t, "--data-dir", dir, "reset"); err == nil {
		t.Fatal("reset without --yes should fail")
	}
	out, err = run(t, "--data-dir", dir, "reset", "--yes", "--scope", "variables")
	if err != nil {
		t.Fatal(err)
	}
	var res state.ResetResult
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.TriggersCleared != 1 || res.Counters {
		t.Fatalf("reset = %+v (%v)", res, err)
	}

	out, err = run(t, "--data-dir", dir, "history", "--log", "trigger_audit", "-n", "5")
	if err != nil {
		t.Fatal(err)
	}
	var recs []engine.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil || len(recs) != 2 {
		t.Fatalf("history = %q (%v)", out, err)
	}
}

func TestNavigateCommand(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "--data-dir", dir, "navigate"); err == nil || !strings.Contains(err.Error(), "no_waypoint") {
		t.Fatalf("navigate without waypoint: %v", err)
	}
	if _, err := run(t, "--data-dir", dir, "waypoint", "11.495456", "77.277199"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "--data-dir", dir, "waypoint")
	if err != nil || !strings.Contains(out, `"set_by": "cli"`) {
		t.Fatalf("waypoint: %q, %v", out, err)
	}
	if _, err := run(t, "--data-dir", dir, "waypoint", "95", "0"); err == nil {
		t.Error("out of range waypoint accepted")
	}
	if _, err := run(t, "--data-dir", dir, "navigate"); err == nil || !strings.Contains(err.Error(), "no_position") {
		t.Fatalf("navigate without position: %v", err)
	}
}

func TestSimulateThenReplay(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "--data-dir", dir, "--backend", "sqlite", "simulate",
		"--helmets", "2", "--rovers", "1", "--tick", "10ms", "--duration", "100ms")
	if err != nil {
		t.Fatal(err)
	}
	var stats struct{ Ticks, Readings int }
	if err := json.Unmarshal([]byte(out), &stats); err != nil || stats.Ticks == 0 || stats.Readings == 0 {
		t.Fatalf("stats = %q (%v)", out, err)
	}

	out, err = run(t, "--data-dir", dir, "--backend", "sqlite", "replay", "--speed", "0", "--source", "helmet-001")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || !strings.Contains(lines[0], "helmet-001") {
		t.Fatalf("replay output = %q", out)
	}
	for _, l := range lines {
		if strings.Contains(l, "helmet-002") {
			t.Fatalf("source filter ignored: %q", l)
		}
	}

	out, err = run(t, "--data-dir", dir, "--backend", "sqlite", "summary")
	if err != nil || !strings.Contains(out, "helmet-002") {
		t.Errorf("summary = %q, %v", out, err)
	}
}

func TestExplicitMissingConfig(t *testing.T) {
	if _, err := run(t, "--config", "does/not/exist.yaml", "convert", "--dbm", "-50"); err == nil {
		t.Error("explicit missing config accepted")
	}
}
