package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	applogger "TradeOrdu/pkg/logger"
)

// DecisionSchema returns the idempotent DDL for the decision table.
func DecisionSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decisions (
            id String,
            cycle_id String,
            ts DateTime64(3),
            symbol LowCardinality(String),
            direction LowCardinality(String),
            strategy_class LowCardinality(String),
            edge_strength Float64,
            consensus_ratio Float64,
            safe UInt8,
            size Float64,
            stop Float64,
            target Float64,
            price Float64,
            agents Array(String)
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, ts, id)`, database),
	}
}

// CHDecisionStore appends reported decisions to ClickHouse and serves
// per-instrument history.
type CHDecisionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHDecisionStore(db *sql.DB, database string, l *applogger.Logger) *CHDecisionStore {
	return &CHDecisionStore{db: db, table: database + ".decisions", l: l}
}

func (s *CHDecisionStore) Name() string { return "clickhouse" }

func (s *CHDecisionStore) Report(ctx context.Context, r models.Report) error {
	rec := recordFromReport(r)
	agents := make([]string, 0, len(r.Decision.Results))
	for _, res := range r.Decision.Results {
		agents = append(agents, res.Agent)
	}
	safe := uint8(0)
	if rec.Safe {
		safe = 1
	}

	q := fmt.Sprintf(`INSERT INTO %s (id, cycle_id, ts, symbol, direction, strategy_class,
        edge_strength, consensus_ratio, safe, size, stop, target, price, agents)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		r.Decision.CycleID,
		rec.Timestamp,
		rec.Symbol,
		string(rec.Direction),
		rec.Class,
		rec.Edge,
		rec.Consensus,
		safe,
		rec.Size,
		rec.Stop,
		rec.Target,
		rec.Price,
		agents,
	)
	if err != nil {
		s.l.Error("clickhouse decision insert error",
			applogger.String("table", s.table),
			applogger.String("symbol", rec.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// History returns up to limit decisions for symbol, newest first.
func (s *CHDecisionStore) History(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error) {
	start := time.Now()
	const qtpl = `
        SELECT id, ts, symbol, direction, strategy_class, edge_strength,
               consensus_ratio, safe, size, stop, target, price
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("decision history: %w", err)
	}
	defer rows.Close()

	out := make([]models.DecisionRecord, 0, limit)
	for rows.Next() {
		var (
			rec  models.DecisionRecord
			dir  string
			safe uint8
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Symbol, &dir, &rec.Class, &rec.Edge,
			&rec.Consensus, &safe, &rec.Size, &rec.Stop, &rec.Target, &rec.Price); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Direction = models.Direction(dir)
		rec.Safe = safe == 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse decision history ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func recordFromReport(r models.Report) models.DecisionRecord {
	d := r.Decision
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return models.DecisionRecord{
		ID:        d.ID,
		Symbol:    d.Symbol,
		Timestamp: ts.UTC(),
		Direction: d.Direction,
		Class:     string(d.Class),
		Edge:      d.Edge,
		Consensus: d.Consensus,
		Safe:      d.Safe,
		Size:      r.Proposal.Size,
		Stop:      r.Proposal.Stop,
		Target:    r.Proposal.Target,
		Price:     r.Price,
	}
}

var _ domrepo.DecisionStore = (*CHDecisionStore)(nil)
