// Package dashboard renders Grafana dashboards for the mirrored telemetry
// table.
package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Params fill the dashboard templates.
type Params struct {
	Table      string
	PointLimit int
}

// Render writes every dashboard template to outDir with the .tmpl suffix
// dropped. Templates read datasource ids from the environment and fail when
// one is unset.
func Render(outDir string, p Params) error {
	if p.Table == "" {
		return fmt.Errorf("dashboard: table name required")
	}
	if p.PointLimit <= 0 {
		p.PointLimit = 500
	}
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	names, err := templates.ReadDir("templates")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, entry := range names {
		name := entry.Name()
		t, err := template.New(name).Funcs(funcMap).ParseFS(templates, "templates/"+name)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(name, ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, p); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
