// Package forecast supplies the production forecast the reconciliation
// loop trades against.
package forecast

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// Provider returns the forecast in MW per interval for a delivery date.
// Missing intervals mean zero.
type Provider interface {
	Forecast(ctx context.Context, date string) (map[int]decimal.Decimal, error)
}

// FileProvider reads a CSV of `interval,mwh` rows. Each row carries the
// energy for one 15-minute interval; values are converted to average MW.
// Rows are indexed by the venue's CET interval numbers unless the
// provider was built with NewEETFileProvider. The file is re-read on
// every call so an external process can refresh it between ticks.
type FileProvider struct {
	path string
	eet  bool
}

// NewFileProvider creates a provider over one CET-indexed CSV file.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// NewEETFileProvider reads the same format with rows indexed by EET
// interval numbers, the metering zone's numbering, and shifts every row
// to the venue's CET numbering.
func NewEETFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, eet: true}
}

func (p *FileProvider) Forecast(_ context.Context, _ string) (map[int]decimal.Decimal, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open forecast file: %w", err)
	}
	defer f.Close()

	out, err := parseCSV(f)
	if err != nil {
		return nil, err
	}
	if p.eet {
		shifted := make(map[int]decimal.Decimal, len(out))
		for interval, mw := range out {
			shifted[domain.EETToCETInterval(interval)] = mw
		}
		return shifted, nil
	}
	return out, nil
}

func parseCSV(r io.Reader) (map[int]decimal.Decimal, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	out := make(map[int]decimal.Decimal)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read forecast row: %w", err)
		}
		line++

		interval, err := strconv.Atoi(record[0])
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("forecast row %d: bad interval %q", line, record[0])
		}
		if interval < 1 || interval > domain.IntervalsPerDay {
			return nil, fmt.Errorf("forecast row %d: interval %d out of range", line, interval)
		}

		mwh, err := decimal.NewFromString(record[1])
		if err != nil {
			return nil, fmt.Errorf("forecast row %d: bad energy %q", line, record[1])
		}
		out[interval] = units.MWhToMW(mwh)
	}
	return out, nil
}

// Static is a fixed in-memory forecast, used in tests and dry runs.
type Static map[int]decimal.Decimal

func (s Static) Forecast(context.Context, string) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
