package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewPositionAllIntervalsPresent(t *testing.T) {
	p := NewPosition("2026-08-24", nil, nil)

	if len(p.Intervals) != IntervalsPerDay {
		t.Fatalf("got %d intervals, want %d", len(p.Intervals), IntervalsPerDay)
	}
	for i := 1; i <= IntervalsPerDay; i++ {
		rec, ok := p.Intervals[i]
		if !ok {
			t.Fatalf("interval %d missing", i)
		}
		if !rec.Contracted.IsZero() {
			t.Errorf("interval %d contracted = %s, want 0", i, rec.Contracted)
		}
	}
}

func TestNewPositionContractedEqualsDASold(t *testing.T) {
	daSold := map[int]decimal.Decimal{50: dec("2.0"), 51: dec("1.5")}
	p := NewPosition("2026-08-24", daSold, daSold)

	if got := p.Intervals[50].Contracted; !got.Equal(dec("2.0")) {
		t.Errorf("contracted[50] = %s, want 2.0", got)
	}
	if got := p.Intervals[51].Contracted; !got.Equal(dec("1.5")) {
		t.Errorf("contracted[51] = %s, want 1.5", got)
	}
	if got := p.Intervals[1].Contracted; !got.IsZero() {
		t.Errorf("contracted[1] = %s, want 0", got)
	}
}

func TestNewPositionDeterministic(t *testing.T) {
	daSold := map[int]decimal.Decimal{10: dec("0.5")}
	forecast := map[int]decimal.Decimal{10: dec("0.55")}

	a := NewPosition("2026-08-24", daSold, forecast)
	b := NewPosition("2026-08-24", daSold, forecast)

	for i := 1; i <= IntervalsPerDay; i++ {
		ra, rb := a.Intervals[i], b.Intervals[i]
		if !ra.DASold.Equal(rb.DASold) || !ra.DAForecast.Equal(rb.DAForecast) ||
			!ra.Contracted.Equal(rb.Contracted) {
			t.Fatalf("interval %d differs between identical initializations", i)
		}
	}
}

func TestApplyTradeInvariant(t *testing.T) {
	daSold := map[int]decimal.Decimal{50: dec("2.0")}
	p := NewPosition("2026-08-24", daSold, daSold)

	trades := []struct {
		interval int
		side     Side
		qty      string
	}{
		{50, SideSell, "1.0"},
		{50, SideBuy, "0.4"},
		{50, SideSell, "0.2"},
		{51, SideBuy, "0.3"},
		{50, SideBuy, "2.5"},
	}

	for _, tr := range trades {
		if err := p.ApplyTrade(tr.interval, tr.side, dec(tr.qty)); err != nil {
			t.Fatalf("ApplyTrade(%d, %s, %s): %v", tr.interval, tr.side, tr.qty, err)
		}

		// Invariant must hold for every interval after every mutation.
		for i, rec := range p.Intervals {
			want := rec.DASold.Add(rec.IDMSold).Sub(rec.IDMBought).Round(1)
			if !rec.Contracted.Equal(want) {
				t.Fatalf("interval %d: contracted = %s, want %s", i, rec.Contracted, want)
			}
		}
		if len(p.Intervals) != IntervalsPerDay {
			t.Fatalf("interval count changed to %d", len(p.Intervals))
		}
	}

	rec := p.Intervals[50]
	if !rec.IDMSold.Equal(dec("1.2")) || !rec.IDMBought.Equal(dec("2.9")) {
		t.Errorf("idm_sold = %s, idm_bought = %s, want 1.2 and 2.9", rec.IDMSold, rec.IDMBought)
	}
	if !rec.Contracted.Equal(dec("0.3")) {
		t.Errorf("contracted[50] = %s, want 0.3", rec.Contracted)
	}
}

func TestApplyTradeRejectsBadInput(t *testing.T) {
	p := NewPosition("2026-08-24", nil, nil)

	if err := p.ApplyTrade(0, SideBuy, dec("1")); err == nil {
		t.Error("expected error for interval 0")
	}
	if err := p.ApplyTrade(97, SideBuy, dec("1")); err == nil {
		t.Error("expected error for interval 97")
	}
	if err := p.ApplyTrade(5, Side("HOLD"), dec("1")); err == nil {
		t.Error("expected error for invalid side")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewPosition("2026-08-24", map[int]decimal.Decimal{1: dec("1.0")}, nil)
	cp := p.Clone()

	if err := cp.ApplyTrade(1, SideSell, dec("0.5")); err != nil {
		t.Fatal(err)
	}
	if !p.Intervals[1].IDMSold.IsZero() {
		t.Error("mutating clone leaked into original")
	}
}
