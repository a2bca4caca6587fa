package forecast

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeForecast(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecast.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileProviderParsesAndConverts(t *testing.T) {
	path := writeForecast(t, "interval,mwh\n50,0.25\n51,0.5\n")
	p := NewFileProvider(path)

	got, err := p.Forecast(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	// 0.25 MWh over 15 minutes is 1 MW average power.
	if !got[50].Equal(decimal.NewFromFloat(1.0)) {
		t.Errorf("interval 50 = %s MW, want 1", got[50])
	}
	if !got[51].Equal(decimal.NewFromFloat(2.0)) {
		t.Errorf("interval 51 = %s MW, want 2", got[51])
	}
	if _, ok := got[52]; ok {
		t.Error("absent interval must stay absent")
	}
}

func TestFileProviderWithoutHeader(t *testing.T) {
	path := writeForecast(t, "1,1.0\n96,2.0\n")
	p := NewFileProvider(path)

	got, err := p.Forecast(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d intervals, want 2", len(got))
	}
}

func TestEETFileProviderShiftsIntervals(t *testing.T) {
	// EET runs one hour ahead of CET, four intervals. EET interval 3
	// wraps around the day boundary.
	path := writeForecast(t, "interval,mwh\n5,0.25\n3,0.5\n")
	p := NewEETFileProvider(path)

	got, err := p.Forecast(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if !got[1].Equal(decimal.NewFromFloat(1.0)) {
		t.Errorf("CET interval 1 = %s MW, want 1", got[1])
	}
	if !got[95].Equal(decimal.NewFromFloat(2.0)) {
		t.Errorf("CET interval 95 = %s MW, want 2", got[95])
	}
	if _, ok := got[5]; ok {
		t.Error("EET interval number must not survive the shift")
	}
}

func TestFileProviderRejectsBadRows(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"interval out of range", "97,1.0\n"},
		{"bad energy", "5,not-a-number\n"},
		{"bad interval mid-file", "5,1.0\nxx,1.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFileProvider(writeForecast(t, tt.content))
			if _, err := p.Forecast(context.Background(), "2026-08-24"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFileProviderMissingFile(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "absent.csv"))
	if _, err := p.Forecast(context.Background(), "2026-08-24"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStaticProviderCopies(t *testing.T) {
	s := Static{10: decimal.NewFromFloat(3.0)}
	got, err := s.Forecast(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatal(err)
	}
	got[10] = decimal.Zero
	again, _ := s.Forecast(context.Background(), "2026-08-24")
	if !again[10].Equal(decimal.NewFromFloat(3.0)) {
		t.Error("mutating the returned map leaked into the provider")
	}
}
