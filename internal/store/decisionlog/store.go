package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"alphadesk/internal/store/model"

	"gorm.io/datatypes"
	_ "modernc.org/sqlite"
)

// Store keeps the gate's verdict audit trail in its own SQLite database,
// separate from the portfolio store so audit writes never contend with
// ledger transactions.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// New opens (or creates) the decision log database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
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

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			detail TEXT,
			quantity INTEGER NOT NULL DEFAULT 0,
			price TEXT,
			risk_score INTEGER NOT NULL DEFAULT 0,
			manual INTEGER NOT NULL DEFAULT 0,
			override INTEGER NOT NULL DEFAULT 0,
			executed INTEGER NOT NULL DEFAULT 0,
			breakdown TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_decision_log_trace ON decision_log(trace_id);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_log_created ON decision_log(created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_log_ticker ON decision_log(ticker);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends one verdict. Rows are never updated afterwards.
func (s *Store) Insert(ctx context.Context, decision *model.DecisionModel) error {
	if decision == nil {
		return fmt.Errorf("decision log: nil decision")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("decision log: store is closed")
	}
	if decision.CreatedAt == 0 {
		decision.CreatedAt = time.Now().UnixNano()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO decision_log
			(trace_id, ticker, action, status, reason, detail, quantity, price,
			 risk_score, manual, override, executed, breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.TraceID,
		decision.Ticker,
		decision.Action,
		decision.Status,
		decision.Reason,
		decision.Detail,
		decision.Quantity,
		decision.Price,
		decision.RiskScore,
		boolToInt(decision.Manual),
		boolToInt(decision.Override),
		boolToInt(decision.Executed),
		string(decision.Breakdown),
		decision.CreatedAt,
	)
	if err != nil {
		return err
	}
	decision.ID, _ = res.LastInsertId()
	return nil
}

// ListRecent returns the newest decisions first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]model.DecisionModel, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log: store is closed")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, trace_id, ticker, action, status, reason, detail, quantity, price,
		       risk_score, manual, override, executed, breakdown, created_at
		FROM decision_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DecisionModel
	for rows.Next() {
		var (
			rec                       model.DecisionModel
			reason, detail, price     sql.NullString
			manual, override, execOut int
			breakdown                 sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Ticker, &rec.Action, &rec.Status,
			&reason, &detail, &rec.Quantity, &price, &rec.RiskScore,
			&manual, &override, &execOut, &breakdown, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Reason = reason.String
		rec.Detail = detail.String
		rec.Price = price.String
		rec.Manual = manual != 0
		rec.Override = override != 0
		rec.Executed = execOut != 0
		if breakdown.Valid && breakdown.String != "" {
			rec.Breakdown = datatypes.JSON(breakdown.String)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
