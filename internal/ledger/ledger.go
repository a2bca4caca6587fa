// Package ledger owns the per-delivery-date position: initialization
// from day-ahead results, trade application and dual-target persistence.
// The database is authoritative; a JSON file per date is the fallback
// that keeps trading alive when the database is down.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/storage"
)

// ErrNotFound is returned by Load when neither target has a position.
var ErrNotFound = errors.New("ledger: position not found")

// PositionStore is the authoritative persistence target. *storage.Store
// satisfies it; tests use in-memory fakes.
type PositionStore interface {
	SavePosition(ctx context.Context, pos *domain.Position) error
	LoadPosition(ctx context.Context, date string) (*domain.Position, error)
}

// FileStore is the fallback persistence target.
type FileStore interface {
	SavePosition(pos *domain.Position) error
	LoadPosition(date string) (*domain.Position, error)
}

// Ledger manages one delivery date's position. It is confined to the
// engine goroutine and needs no locking.
type Ledger struct {
	store PositionStore
	files FileStore
	log   *slog.Logger

	pos *domain.Position

	// degraded is set when the store last failed; writes continue on the
	// file target alone until a store write succeeds again.
	degraded bool
}

// New creates a ledger over both persistence targets.
func New(store PositionStore, files FileStore, log *slog.Logger) *Ledger {
	return &Ledger{store: store, files: files, log: log}
}

// Initialize loads the existing position for the date, or creates one
// from day-ahead results when none exists. Calling it again for the same
// date never discards accumulated trades.
func (l *Ledger) Initialize(ctx context.Context, date string, daSold, daForecast map[int]decimal.Decimal) error {
	pos, err := l.Load(ctx, date)
	if err == nil {
		l.pos = pos
		l.log.Info("position loaded", "date", date)
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	l.pos = domain.NewPosition(date, daSold, daForecast)
	l.log.Info("position created from day-ahead results", "date", date)
	return l.persist(ctx)
}

// Load fetches the position from the store, falling back to the file
// target. A position found only in the file is backfilled into the store
// so the next run reads the authoritative target again.
func (l *Ledger) Load(ctx context.Context, date string) (*domain.Position, error) {
	pos, storeErr := l.store.LoadPosition(ctx, date)
	if storeErr == nil {
		return pos, nil
	}
	if !errors.Is(storeErr, storage.ErrNotFound) {
		l.log.Warn("store read failed, trying file fallback", "date", date, "err", storeErr)
	}

	pos, fileErr := l.files.LoadPosition(date)
	if fileErr != nil {
		if errors.Is(storeErr, storage.ErrNotFound) && errors.Is(fileErr, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load position: store: %v, file: %w", storeErr, fileErr)
	}

	if errors.Is(storeErr, storage.ErrNotFound) {
		if err := l.store.SavePosition(ctx, pos); err != nil {
			l.log.Warn("backfill into store failed", "date", date, "err", err)
		} else {
			l.log.Info("position backfilled into store", "date", date)
		}
	}
	return pos, nil
}

// ApplyTrade records a trade against an interval and persists the
// result. The write fails only when both targets fail; a store failure
// alone switches the ledger into degraded mode.
func (l *Ledger) ApplyTrade(ctx context.Context, interval int, side domain.Side, quantityMW decimal.Decimal) error {
	if l.pos == nil {
		return fmt.Errorf("ledger not initialized")
	}
	if err := l.pos.ApplyTrade(interval, side, quantityMW); err != nil {
		return err
	}
	return l.persist(ctx)
}

func (l *Ledger) persist(ctx context.Context) error {
	storeErr := l.store.SavePosition(ctx, l.pos)
	if storeErr != nil {
		if !l.degraded {
			l.log.Error("store write failed, running on file fallback", "err", storeErr)
		}
		l.degraded = true
	} else if l.degraded {
		l.degraded = false
		l.log.Info("store recovered")
	}

	fileErr := l.files.SavePosition(l.pos)
	if fileErr != nil {
		l.log.Error("file write failed", "err", fileErr)
	}

	if storeErr != nil && fileErr != nil {
		return fmt.Errorf("persist position: store: %v, file: %w", storeErr, fileErr)
	}
	return nil
}

// Degraded reports whether the last store write failed.
func (l *Ledger) Degraded() bool {
	return l.degraded
}

// Position returns a snapshot of the current position.
func (l *Ledger) Position() *domain.Position {
	if l.pos == nil {
		return nil
	}
	return l.pos.Clone()
}

// Contracted returns the contracted MW for an interval.
func (l *Ledger) Contracted(interval int) decimal.Decimal {
	if l.pos == nil {
		return decimal.Zero
	}
	return l.pos.Contracted(interval)
}

// DAForecast returns the day-ahead forecast for an interval.
func (l *Ledger) DAForecast(interval int) decimal.Decimal {
	if l.pos == nil {
		return decimal.Zero
	}
	if rec, ok := l.pos.Intervals[interval]; ok {
		return rec.DAForecast
	}
	return decimal.Zero
}
