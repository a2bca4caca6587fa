// Package storage persists positions, forecast history and trades. The
// authoritative store is SQLite; a JSON file store per delivery date
// serves as fallback when the database is unavailable.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// ErrNotFound is returned when no row exists for the requested key.
var ErrNotFound = errors.New("storage: not found")

// TradeRecord is one journal row for a submitted order and its outcome.
type TradeRecord struct {
	DeliveryDate  string
	Interval      int
	ContractID    string
	ClientOrderID string
	Side          domain.Side
	QuantityMW    decimal.Decimal
	Price         units.Cents
	Status        string
	CreatedAt     time.Time
}

// Store is the SQLite-backed authoritative store.
type Store struct {
	db *sql.DB
}

// NewStore opens the database with WAL mode and creates the schema.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			delivery_date TEXT PRIMARY KEY,
			intervals TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS forecast_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			delivery_date TEXT NOT NULL,
			interval INTEGER NOT NULL,
			mw TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_date_interval
			ON forecast_history (delivery_date, interval, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			delivery_date TEXT NOT NULL,
			interval INTEGER NOT NULL,
			contract_id TEXT NOT NULL,
			client_order_id TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity_mw TEXT NOT NULL,
			price_cents INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// SavePosition upserts the full position for its delivery date. Interval
// records are stored as one JSON document so load and save stay atomic.
func (s *Store) SavePosition(ctx context.Context, pos *domain.Position) error {
	payload, err := json.Marshal(pos.Intervals)
	if err != nil {
		return fmt.Errorf("failed to marshal intervals: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO positions (delivery_date, intervals, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(delivery_date) DO UPDATE SET intervals=excluded.intervals, updated_at=excluded.updated_at`,
		pos.DeliveryDate, payload, pos.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// LoadPosition returns the position for a delivery date, or ErrNotFound.
func (s *Store) LoadPosition(ctx context.Context, date string) (*domain.Position, error) {
	var payload []byte
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT intervals, updated_at FROM positions WHERE delivery_date = ?", date,
	).Scan(&payload, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	pos := &domain.Position{
		DeliveryDate: date,
		LastUpdated:  time.Unix(updatedAt, 0).UTC(),
	}
	if err := json.Unmarshal(payload, &pos.Intervals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intervals: %w", err)
	}
	return pos, nil
}

// SaveForecast appends one forecast observation for an interval.
func (s *Store) SaveForecast(ctx context.Context, date string, interval int, mw decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO forecast_history (delivery_date, interval, mw, recorded_at) VALUES (?, ?, ?, ?)",
		date, interval, mw.String(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert forecast: %w", err)
	}
	return nil
}

// LastNonzeroForecast returns the most recent nonzero forecast observed
// for an interval. The second return is false when none exists.
func (s *Store) LastNonzeroForecast(ctx context.Context, date string, interval int) (decimal.Decimal, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mw FROM forecast_history
		 WHERE delivery_date = ? AND interval = ?
		 ORDER BY recorded_at DESC, id DESC`,
		date, interval,
	)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query forecast history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, false, fmt.Errorf("failed to scan forecast: %w", err)
		}
		mw, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("corrupt forecast value %q: %w", raw, err)
		}
		if !mw.IsZero() {
			return mw, true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, false, fmt.Errorf("rows iteration error: %w", err)
	}
	return decimal.Zero, false, nil
}

// SaveTrade appends one row to the trade journal.
func (s *Store) SaveTrade(ctx context.Context, t TradeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (delivery_date, interval, contract_id, client_order_id, side, quantity_mw, price_cents, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.DeliveryDate, t.Interval, t.ContractID, t.ClientOrderID,
		string(t.Side), t.QuantityMW.String(), int64(t.Price), t.Status, t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// Trades returns the journal for one delivery date in submission order.
func (s *Store) Trades(ctx context.Context, date string) ([]TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interval, contract_id, client_order_id, side, quantity_mw, price_cents, status, created_at
		 FROM trades WHERE delivery_date = ? ORDER BY id ASC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		t := TradeRecord{DeliveryDate: date}
		var side, qty string
		var price, createdAt int64
		if err := rows.Scan(&t.Interval, &t.ContractID, &t.ClientOrderID, &side, &qty, &price, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		t.QuantityMW, err = decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("corrupt trade quantity %q: %w", qty, err)
		}
		t.Price = units.Cents(price)
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
