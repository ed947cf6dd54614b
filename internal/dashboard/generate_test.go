package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	if err := Render(t.TempDir(), Params{Table: "field_telemetry"}); err == nil {
		t.Fatalf("expected error for missing env vars")
	}
}

func TestRenderMissingTable(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")
	if err := Render(t.TempDir(), Params{}); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")

	dir := t.TempDir()
	if err := Render(dir, Params{Table: "helmets"}); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "field-telemetry.json"))
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if !strings.Contains(string(b), "uid1") {
		t.Fatalf("greptime uid not rendered")
	}
	if !strings.Contains(string(b), "FROM helmets") || !strings.Contains(string(b), "LIMIT 500") {
		t.Fatalf("table or limit not rendered")
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("rendered dashboard is not valid JSON: %v", err)
	}
}
