package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// TimescaleSink writes frames into a hypertable keyed by (source, ts).
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(frames []*domain.Frame) error {
	if len(frames) == 0 {
		return nil
	}

	// replays after a crash re-send committed-but-unacked frames; the
	// conflict clause keeps the insert idempotent
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (source, ts, values, fault_type) VALUES ")

	args := make([]any, 0, len(frames)*4)
	for i, f := range frames {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d)", len(args)+1, len(args)+2, len(args)+3, len(args)+4)

		vals, err := json.Marshal(channelsOnly(f))
		if err != nil {
			return fmt.Errorf("marshal values: %w", err)
		}
		var fault any
		if f.Faulted() {
			fault = f.FaultType
		}
		args = append(args, f.Source, f.TS(), vals, fault)
	}

	b.WriteString(" ON CONFLICT (source, ts) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

// channelsOnly drops ts, which already has its own column.
func channelsOnly(f *domain.Frame) map[string]float64 {
	out := make(map[string]float64, len(f.Values))
	for k, v := range f.Values {
		if k == domain.KeyTS {
			continue
		}
		out[k] = v
	}
	return out
}

// InsightStore appends detector insights to a Postgres table.
type InsightStore struct {
	db        *sql.DB
	tableName string
}

func NewInsightStore(db *sql.DB, table string) *InsightStore {
	return &InsightStore{db: db, tableName: table}
}

func (s *InsightStore) Name() string { return "timescaledb-insights" }

func (s *InsightStore) Publish(insights []domain.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.tableName)
	b.WriteString(" (id, ts, event_type, severity, message, metrics, phase) VALUES ")

	args := make([]any, 0, len(insights)*7)
	for i, in := range insights {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)

		metrics, err := json.Marshal(in.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		var phase any
		if in.Phase != "" {
			phase = in.Phase
		}
		args = append(args, in.ID, in.Timestamp, in.EventType, string(in.Severity), in.Message, metrics, phase)
	}

	b.WriteString(" ON CONFLICT (id) DO NOTHING")

	_, err := s.db.Exec(b.String(), args...)
	return err
}

var (
	_ ports.Sink        = (*TimescaleSink)(nil)
	_ ports.InsightSink = (*InsightStore)(nil)
)
