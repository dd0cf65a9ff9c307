// Package decisionlog keeps an append-only audit trail of fused decisions
// and raised alerts. Separate from the plan store on purpose: the audit log
// is write-heavy and disposable, plans are not.
package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quorum/internal/council"
	"quorum/internal/delta"

	_ "modernc.org/sqlite"
)

// DecisionRecord is one audit row. Payload carries the full fused decision
// as JSON so postmortems can replay exactly what the council saw.
type DecisionRecord struct {
	ID         int64   `json:"id"`
	Timestamp  int64   `json:"ts"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Vetoed     bool    `json:"vetoed"`
	Degraded   bool    `json:"degraded"`
	Payload    string  `json:"payload"`
}

// AlertKind tags the alert stream.
type AlertKind string

const (
	AlertStepReady AlertKind = "step_ready"
	AlertDrift     AlertKind = "drift"
)

// AlertRecord is one raised alert.
type AlertRecord struct {
	ID           int64     `json:"id"`
	Timestamp    int64     `json:"ts"`
	PositionID   string    `json:"position_id"`
	Symbol       string    `json:"symbol"`
	Kind         AlertKind `json:"kind"`
	Significance string    `json:"significance,omitempty"`
	Message      string    `json:"message"`
}

// Store wraps the audit database.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewStore opens the audit database at path, creating tables as needed.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log: database path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			score REAL NOT NULL,
			confidence REAL NOT NULL,
			vetoed INTEGER NOT NULL DEFAULT 0,
			degraded INTEGER NOT NULL DEFAULT 0,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_audit_symbol_ts ON decision_audit(symbol, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			position_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			kind TEXT NOT NULL,
			significance TEXT,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("decision log migrate: %w", err)
		}
	}
	return nil
}

// AppendDecision records one fused decision.
func (s *Store) AppendDecision(ctx context.Context, dec council.Decision) error {
	if s == nil || s.db == nil {
		return nil
	}
	payload, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("encode decision payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decision_audit (ts, symbol, action, score, confidence, vetoed, degraded, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dec.CreatedAt.Unix(), dec.Symbol, dec.Action.String(), dec.Score, dec.Confidence,
		boolToInt(dec.Vetoed()), boolToInt(dec.Degraded), string(payload))
	return err
}

// RecentDecisions lists the newest audit rows for one symbol, or all symbols
// when symbol is empty.
func (s *Store) RecentDecisions(ctx context.Context, symbol string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	query := `SELECT id, ts, symbol, action, score, confidence, vetoed, degraded, COALESCE(payload, '')
		FROM decision_audit`
	args := []any{}
	if symbol = strings.TrimSpace(symbol); symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var vetoed, degraded int
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Symbol, &rec.Action, &rec.Score,
			&rec.Confidence, &vetoed, &degraded, &rec.Payload); err != nil {
			return nil, err
		}
		rec.Vetoed = vetoed != 0
		rec.Degraded = degraded != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendAlert records a raised alert.
func (s *Store) AppendAlert(ctx context.Context, rec AlertRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (ts, position_id, symbol, kind, significance, message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.PositionID, rec.Symbol, string(rec.Kind), rec.Significance, rec.Message)
	return err
}

// DriftAlert builds an alert row from a drift report.
func DriftAlert(symbol string, d delta.Delta) AlertRecord {
	return AlertRecord{
		Timestamp:    d.To.Unix(),
		PositionID:   d.PositionID,
		Symbol:       symbol,
		Kind:         AlertDrift,
		Significance: d.Significance.String(),
		Message:      d.Summary,
	}
}

// RecentAlerts lists the newest alerts.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, position_id, symbol, kind, COALESCE(significance, ''), message
		 FROM alerts ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.PositionID, &rec.Symbol, &kind,
			&rec.Significance, &rec.Message); err != nil {
			return nil, err
		}
		rec.Kind = AlertKind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
