package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"borsatahmin/config"
	"borsatahmin/ml"
	"borsatahmin/trading"
)

// Store persists predictions, training runs and recommendation papers to a
// local sqlite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL,
	horizon     TEXT NOT NULL,
	direction   TEXT NOT NULL,
	prob_up     REAL NOT NULL,
	confidence  REAL NOT NULL,
	price       REAL NOT NULL,
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_symbol ON predictions(symbol, horizon, created_at);

CREATE TABLE IF NOT EXISTS training_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL,
	horizon     TEXT NOT NULL,
	train_rows  INTEGER NOT NULL,
	test_rows   INTEGER NOT NULL,
	accuracy    REAL NOT NULL,
	f1          REAL NOT NULL,
	duration_ms INTEGER NOT NULL,
	model_file  TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	action      TEXT NOT NULL,
	quantity    REAL NOT NULL,
	value       REAL NOT NULL,
	score       REAL NOT NULL,
	confidence  REAL NOT NULL,
	reason      TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recommendations_run ON recommendations(run_id);
`

// Open opens (creating if needed) the database and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SavePrediction appends one prediction row.
func (s *Store) SavePrediction(p *ml.Prediction) error {
	_, err := s.db.Exec(
		`INSERT INTO predictions (symbol, horizon, direction, prob_up, confidence, price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, string(p.Horizon), p.Direction, p.ProbUp, p.Confidence, p.Price, p.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("db: save prediction %s: %w", p.Symbol, err)
	}
	return nil
}

// TrainingRecord summarises one completed training run.
type TrainingRecord struct {
	Symbol    string
	Horizon   string
	Metrics   ml.Metrics
	Duration  time.Duration
	ModelFile string
}

// SaveTraining appends one training log row.
func (s *Store) SaveTraining(r *TrainingRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO training_log (symbol, horizon, train_rows, test_rows, accuracy, f1, duration_ms, model_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Symbol, r.Horizon, r.Metrics.TrainRows, r.Metrics.TestRows,
		r.Metrics.Accuracy, r.Metrics.F1, r.Duration.Milliseconds(), r.ModelFile, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("db: save training %s: %w", r.Symbol, err)
	}
	return nil
}

// SaveRecommendations stores a full paper under one run id, atomically.
func (s *Store) SaveRecommendations(runID string, recs []trading.Recommendation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO recommendations (run_id, symbol, action, quantity, value, score, confidence, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("db: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range recs {
		if _, err := stmt.Exec(runID, rec.Symbol, rec.Action, rec.Quantity,
			rec.RecommendedValue, rec.Score, rec.Confidence, rec.Reason, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("db: save recommendation %s: %w", rec.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecentPredictions returns the newest rows for a symbol, latest first.
func (s *Store) RecentPredictions(symbol string, limit int) ([]ml.Prediction, error) {
	rows, err := s.db.Query(
		`SELECT symbol, horizon, direction, prob_up, confidence, price, created_at
		 FROM predictions WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("db: query predictions %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []ml.Prediction
	for rows.Next() {
		var p ml.Prediction
		var horizon string
		if err := rows.Scan(&p.Symbol, &horizon, &p.Direction, &p.ProbUp, &p.Confidence, &p.Price, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("db: scan prediction: %w", err)
		}
		if h, herr := config.ParseHorizon(horizon); herr == nil {
			p.Horizon = h
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
