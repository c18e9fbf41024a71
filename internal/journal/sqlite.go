package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/amm-limit-agent/internal/order"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal opens the database at path and runs migrations.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db, now: time.Now}

	if err := j.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}

// Migrate runs database migrations.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT UNIQUE NOT NULL,
			tif TEXT NOT NULL,
			status TEXT NOT NULL,
			route TEXT NOT NULL,
			input_token TEXT NOT NULL,
			output_token TEXT NOT NULL,
			input_amount TEXT NOT NULL,
			limit_rate TEXT NOT NULL,
			filled TEXT NOT NULL DEFAULT '0',
			received TEXT NOT NULL DEFAULT '0',
			settlement TEXT,
			reason TEXT,
			price_checks INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			recorded_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_recorded_at ON outcomes(recorded_at)`,

		`CREATE TABLE IF NOT EXISTS price_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			route TEXT NOT NULL,
			amount TEXT NOT NULL,
			output TEXT NOT NULL,
			rate TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_samples_timestamp ON price_samples(timestamp)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// RecordOutcome upserts the outcome of an order. Amounts are stored as
// decimal text since SQLite integers are signed 64-bit.
func (j *SQLiteJournal) RecordOutcome(ctx context.Context, snap order.Snapshot) error {
	query := `INSERT OR REPLACE INTO outcomes
		(order_id, tif, status, route, input_token, output_token, input_amount, limit_rate,
		 filled, received, settlement, reason, price_checks, created_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		snap.ID,
		snap.TIF.String(),
		snap.Status.String(),
		snap.Route.String(),
		snap.InputToken,
		snap.OutputToken,
		formatUnits(snap.InputAmount),
		snap.LimitRate.String(),
		formatUnits(snap.Filled),
		formatUnits(snap.Received),
		snap.Settlement,
		snap.Reason,
		snap.PriceChecks,
		snap.CreatedAt,
		j.now(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}

	return nil
}

const outcomeColumns = `id, order_id, tif, status, route, input_token, output_token, input_amount,
	limit_rate, filled, received, settlement, reason, price_checks, created_at, recorded_at`

// ListOutcomes returns the most recent outcomes, newest first.
// A non-positive limit returns all rows.
func (j *SQLiteJournal) ListOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + outcomeColumns + ` FROM outcomes ORDER BY recorded_at DESC, id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var outcomes []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *o)
	}

	return outcomes, rows.Err()
}

// GetOutcome returns the outcome of one order, or nil if none was recorded.
func (j *SQLiteJournal) GetOutcome(ctx context.Context, orderID string) (*Outcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM outcomes WHERE order_id = ?`

	o, err := scanOutcome(j.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOutcome(s scanner) (*Outcome, error) {
	var o Outcome
	var inputAmount, limitRate, filled, received string
	var settlement, reason sql.NullString

	err := s.Scan(
		&o.ID,
		&o.OrderID,
		&o.TIF,
		&o.Status,
		&o.Route,
		&o.InputToken,
		&o.OutputToken,
		&inputAmount,
		&limitRate,
		&filled,
		&received,
		&settlement,
		&reason,
		&o.PriceChecks,
		&o.CreatedAt,
		&o.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan outcome: %w", err)
	}

	if o.InputAmount, err = parseUnits(inputAmount); err != nil {
		return nil, fmt.Errorf("scan outcome %s: input_amount: %w", o.OrderID, err)
	}
	if o.Filled, err = parseUnits(filled); err != nil {
		return nil, fmt.Errorf("scan outcome %s: filled: %w", o.OrderID, err)
	}
	if o.Received, err = parseUnits(received); err != nil {
		return nil, fmt.Errorf("scan outcome %s: received: %w", o.OrderID, err)
	}
	if o.LimitRate, err = decimal.NewFromString(limitRate); err != nil {
		return nil, fmt.Errorf("scan outcome %s: limit_rate: %w", o.OrderID, err)
	}
	o.Settlement = settlement.String
	o.Reason = reason.String

	return &o, nil
}

// RecordSample saves a price sample.
func (j *SQLiteJournal) RecordSample(ctx context.Context, sample Sample) error {
	query := `INSERT INTO price_samples (timestamp, route, amount, output, rate) VALUES (?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		sample.Timestamp,
		sample.Route,
		formatUnits(sample.Amount),
		formatUnits(sample.Output),
		sample.Rate.String(),
	)
	if err != nil {
		return fmt.Errorf("insert price sample: %w", err)
	}

	return nil
}

// ListSamples returns price samples in a time range.
func (j *SQLiteJournal) ListSamples(ctx context.Context, from, to time.Time) ([]Sample, error) {
	query := `SELECT id, timestamp, route, amount, output, rate
		FROM price_samples WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp, id`

	rows, err := j.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query price samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var amount, output, rate string

		if err := rows.Scan(&s.ID, &s.Timestamp, &s.Route, &amount, &output, &rate); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if s.Amount, err = parseUnits(amount); err != nil {
			return nil, fmt.Errorf("scan price sample %d: amount: %w", s.ID, err)
		}
		if s.Output, err = parseUnits(output); err != nil {
			return nil, fmt.Errorf("scan price sample %d: output: %w", s.ID, err)
		}
		if s.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("scan price sample %d: rate: %w", s.ID, err)
		}

		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func formatUnits(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUnits(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

var _ Journal = (*SQLiteJournal)(nil)
