package domain

import (
	"testing"
	"time"
)

func TestIntervalOf(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         int
	}{
		{0, 0, 1},
		{0, 14, 1},
		{0, 15, 2},
		{12, 0, 49},
		{23, 45, 96},
	}

	for _, tt := range tests {
		ts := time.Date(2026, 8, 24, tt.hour, tt.minute, 0, 0, tzCET)
		if got := IntervalOf(ts); got != tt.want {
			t.Errorf("IntervalOf(%02d:%02d) = %d, want %d", tt.hour, tt.minute, got, tt.want)
		}
	}
}

func TestEETCETConversion(t *testing.T) {
	tests := []struct {
		eet, cet int
	}{
		{49, 45}, // 12:00 EET -> 11:00 CET
		{1, 93},  // wraps to previous day
		{5, 1},
		{96, 92},
	}

	for _, tt := range tests {
		if got := EETToCETInterval(tt.eet); got != tt.cet {
			t.Errorf("EETToCETInterval(%d) = %d, want %d", tt.eet, got, tt.cet)
		}
		if got := CETToEETInterval(tt.cet); got != tt.eet {
			t.Errorf("CETToEETInterval(%d) = %d, want %d", tt.cet, got, tt.eet)
		}
	}
}

func TestIntervalStart(t *testing.T) {
	start, err := IntervalStart("2026-08-24", 50)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 24, 12, 15, 0, 0, tzCET)
	if !start.Equal(want) {
		t.Errorf("IntervalStart(50) = %s, want %s", start, want)
	}

	if _, err := IntervalStart("2026-08-24", 0); err == nil {
		t.Error("expected error for interval 0")
	}
	if _, err := IntervalStart("not-a-date", 1); err == nil {
		t.Error("expected error for bad date")
	}
}

func TestGateOpen(t *testing.T) {
	gate := 5 * time.Minute

	// Interval 50 starts at 12:15 CET.
	early := time.Date(2026, 8, 24, 12, 0, 0, 0, tzCET)
	if !GateOpen("2026-08-24", 50, early, gate) {
		t.Error("gate should be open 15 minutes before delivery")
	}

	late := time.Date(2026, 8, 24, 12, 11, 0, 0, tzCET)
	if GateOpen("2026-08-24", 50, late, gate) {
		t.Error("gate should be closed 4 minutes before delivery")
	}

	past := time.Date(2026, 8, 24, 13, 0, 0, 0, tzCET)
	if GateOpen("2026-08-24", 50, past, gate) {
		t.Error("gate should be closed after delivery start")
	}
}
