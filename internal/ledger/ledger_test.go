package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/storage"
)

// fakeStore is an in-memory PositionStore whose failure mode can be
// toggled mid-test.
type fakeStore struct {
	positions map[string]*domain.Position
	failing   bool
	saves     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{positions: make(map[string]*domain.Position)}
}

func (f *fakeStore) SavePosition(_ context.Context, pos *domain.Position) error {
	if f.failing {
		return errors.New("database unavailable")
	}
	f.saves++
	f.positions[pos.DeliveryDate] = pos.Clone()
	return nil
}

func (f *fakeStore) LoadPosition(_ context.Context, date string) (*domain.Position, error) {
	if f.failing {
		return nil, errors.New("database unavailable")
	}
	pos, ok := f.positions[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return pos.Clone(), nil
}

type fakeFiles struct {
	positions map[string]*domain.Position
	failing   bool
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{positions: make(map[string]*domain.Position)}
}

func (f *fakeFiles) SavePosition(pos *domain.Position) error {
	if f.failing {
		return errors.New("disk full")
	}
	f.positions[pos.DeliveryDate] = pos.Clone()
	return nil
}

func (f *fakeFiles) LoadPosition(date string) (*domain.Position, error) {
	if f.failing {
		return nil, errors.New("disk full")
	}
	pos, ok := f.positions[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return pos.Clone(), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const date = "2026-08-24"

func daSold() map[int]decimal.Decimal {
	return map[int]decimal.Decimal{50: decimal.NewFromFloat(2.0)}
}

func TestInitializeCreatesAndPersists(t *testing.T) {
	store, files := newFakeStore(), newFakeFiles()
	l := New(store, files, testLogger())

	if err := l.Initialize(context.Background(), date, daSold(), nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !l.Contracted(50).Equal(decimal.NewFromFloat(2.0)) {
		t.Errorf("contracted = %s, want 2", l.Contracted(50))
	}
	if _, ok := store.positions[date]; !ok {
		t.Error("position not written to store")
	}
	if _, ok := files.positions[date]; !ok {
		t.Error("position not written to file target")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	store, files := newFakeStore(), newFakeFiles()
	l := New(store, files, testLogger())
	ctx := context.Background()

	if err := l.Initialize(ctx, date, daSold(), nil); err != nil {
		t.Fatal(err)
	}
	if err := l.ApplyTrade(ctx, 50, domain.SideSell, decimal.NewFromFloat(1.0)); err != nil {
		t.Fatal(err)
	}

	// A second initialize must keep the applied trade.
	l2 := New(store, files, testLogger())
	if err := l2.Initialize(ctx, date, daSold(), nil); err != nil {
		t.Fatal(err)
	}
	if !l2.Contracted(50).Equal(decimal.NewFromFloat(3.0)) {
		t.Errorf("contracted after reload = %s, want 3", l2.Contracted(50))
	}
}

func TestLoadFallsBackToFileAndBackfills(t *testing.T) {
	store, files := newFakeStore(), newFakeFiles()

	pos := domain.NewPosition(date, daSold(), nil)
	if err := files.SavePosition(pos); err != nil {
		t.Fatal(err)
	}

	l := New(store, files, testLogger())
	loaded, err := l.Load(context.Background(), date)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Contracted(50).Equal(decimal.NewFromFloat(2.0)) {
		t.Errorf("contracted = %s, want 2", loaded.Contracted(50))
	}
	if _, ok := store.positions[date]; !ok {
		t.Error("file position not backfilled into store")
	}
}

func TestLoadMissingEverywhere(t *testing.T) {
	l := New(newFakeStore(), newFakeFiles(), testLogger())
	_, err := l.Load(context.Background(), date)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestApplyTradeSurvivesStoreOutage(t *testing.T) {
	store, files := newFakeStore(), newFakeFiles()
	l := New(store, files, testLogger())
	ctx := context.Background()

	if err := l.Initialize(ctx, date, daSold(), nil); err != nil {
		t.Fatal(err)
	}

	store.failing = true
	if err := l.ApplyTrade(ctx, 50, domain.SideBuy, decimal.NewFromFloat(0.5)); err != nil {
		t.Fatalf("ApplyTrade must succeed on file target alone: %v", err)
	}
	if !l.Degraded() {
		t.Error("ledger must report degraded mode")
	}
	if !files.positions[date].Intervals[50].IDMBought.Equal(decimal.NewFromFloat(0.5)) {
		t.Error("trade not persisted to file target")
	}

	// Store recovery clears degraded mode.
	store.failing = false
	if err := l.ApplyTrade(ctx, 50, domain.SideBuy, decimal.NewFromFloat(0.5)); err != nil {
		t.Fatal(err)
	}
	if l.Degraded() {
		t.Error("degraded mode must clear after a successful store write")
	}
}

func TestApplyTradeFailsWhenBothTargetsFail(t *testing.T) {
	store, files := newFakeStore(), newFakeFiles()
	l := New(store, files, testLogger())
	ctx := context.Background()

	if err := l.Initialize(ctx, date, daSold(), nil); err != nil {
		t.Fatal(err)
	}

	store.failing = true
	files.failing = true
	if err := l.ApplyTrade(ctx, 50, domain.SideSell, decimal.NewFromFloat(1.0)); err == nil {
		t.Fatal("expected error when both persistence targets fail")
	}
}

func TestApplyTradeRequiresInitialize(t *testing.T) {
	l := New(newFakeStore(), newFakeFiles(), testLogger())
	if err := l.ApplyTrade(context.Background(), 1, domain.SideBuy, decimal.NewFromFloat(1.0)); err == nil {
		t.Fatal("expected error before Initialize")
	}
}

func TestPositionReturnsSnapshot(t *testing.T) {
	l := New(newFakeStore(), newFakeFiles(), testLogger())
	ctx := context.Background()
	if err := l.Initialize(ctx, date, daSold(), nil); err != nil {
		t.Fatal(err)
	}

	snap := l.Position()
	snap.Intervals[50].IDMSold = decimal.NewFromFloat(99)
	if !l.Contracted(50).Equal(decimal.NewFromFloat(2.0)) {
		t.Error("mutating the snapshot leaked into the ledger")
	}
}
