package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"ats-sim/internal/telemetry"
)

const (
	defaultGreptimePort  = 4001
	greptimeWriteTimeout = 5 * time.Second
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter mirrors published records into a GreptimeDB table.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
	log    *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port") and writes
// into tableName of database.
func NewGreptimeDBWriter(endpoint, database, tableName string, logger *slog.Logger) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GreptimeDBWriter{client: client, table: tableName, log: logger}, nil
}

// Write inserts a single record.
func (w *GreptimeDBWriter) Write(r telemetry.Record) error {
	return w.writeRows([]telemetry.Record{r})
}

func (w *GreptimeDBWriter) writeRows(rows []telemetry.Record) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.buildTable(rows)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), greptimeWriteTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	w.log.Debug("greptime rows written", "table", w.table, "rows", len(rows))
	return nil
}

func (w *GreptimeDBWriter) buildTable(rows []telemetry.Record) (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	columns := []struct {
		name string
		typ  types.ColumnType
		tag  bool
	}{
		{"entity_id", types.STRING, true},
		{"passenger_count", types.INT64, false},
		{"total_weight_tons", types.FLOAT64, false},
		{"power_draw_kw", types.FLOAT64, false},
		{"speed_kmh", types.FLOAT64, false},
		{"latitude", types.FLOAT64, false},
		{"longitude", types.FLOAT64, false},
		{"overcrowding", types.BOOLEAN, false},
		{"high_power_draw", types.BOOLEAN, false},
	}
	for _, c := range columns {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}

	for _, r := range rows {
		err := tbl.AddRow(
			r.EntityID,
			int64(r.PassengerCount),
			r.TotalWeightTons,
			r.PowerDrawKW,
			r.SpeedKmh,
			r.Location.Latitude,
			r.Location.Longitude,
			r.Alerts.Overcrowding,
			r.Alerts.HighPowerDraw,
			r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("add row %s: %w", r.EntityID, err)
		}
	}
	return tbl, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// bare host
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid greptime port %q: %w", portStr, err)
	}
	return host, port, nil
}
