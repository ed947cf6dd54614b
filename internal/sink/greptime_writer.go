package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"fieldops-nav/internal/telemetry"
)

const defaultGreptimePort = 4001

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeWriter mirrors samples into a GreptimeDB table. Well-known signal
// and coordinate fields get their own columns; the remaining fields travel
// as a JSON document in the extra column.
type GreptimeWriter struct {
	client greptimeClient
	table  string
	logger *slog.Logger
}

// NewGreptimeWriter connects to endpoint ("host" or "host:port").
func NewGreptimeWriter(endpoint, database, tableName string, logger *slog.Logger) (*GreptimeWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime: connect %s: %w", endpoint, err)
	}
	if tableName == "" {
		tableName = telemetry.SampleTableName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GreptimeWriter{client: client, table: tableName, logger: logger.With("sink", "greptime")}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("greptime: invalid port in %q", endpoint)
	}
	return host, port, nil
}

func (w *GreptimeWriter) Write(ctx context.Context, s telemetry.Sample) error {
	return w.WriteBatch(ctx, []telemetry.Sample{s})
}

// WriteBatch inserts samples as one table write.
func (w *GreptimeWriter) WriteBatch(ctx context.Context, samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tbl, err := w.buildTable(samples)
	if err != nil {
		return err
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.logger.Error("write failed", "rows", len(samples), "err", err)
		return fmt.Errorf("greptime: write %s: %w", w.table, err)
	}
	w.logger.Debug("wrote rows", "rows", len(samples))
	return nil
}

var sampleColumns = []string{
	telemetry.FieldRSSI,
	telemetry.FieldSignal,
	telemetry.FieldLatitude,
	telemetry.FieldLongitude,
}

func (w *GreptimeWriter) buildTable(samples []telemetry.Sample) (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, fmt.Errorf("greptime: table: %w", err)
	}
	if err := tbl.AddTagColumn("source_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("sample_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("origin", types.STRING); err != nil {
		return nil, err
	}
	for _, name := range sampleColumns {
		if err := tbl.AddFieldColumn(name, types.FLOAT64); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddFieldColumn("extra", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}

	for _, s := range samples {
		row := []any{s.SourceID, s.ID, s.Origin}
		extra := telemetry.Fields{}
		for k, v := range s.Fields {
			extra[k] = v
		}
		for _, name := range sampleColumns {
			if v, ok := s.Fields.Number(name); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
			delete(extra, name)
		}
		doc := ""
		if len(extra) > 0 {
			b, err := json.Marshal(extra)
			if err != nil {
				return nil, fmt.Errorf("greptime: encode extra fields: %w", err)
			}
			doc = string(b)
		}
		row = append(row, doc, s.Timestamp)
		if err := tbl.AddRow(row...); err != nil {
			return nil, fmt.Errorf("greptime: row %s: %w", s.ID, err)
		}
	}
	return tbl, nil
}
