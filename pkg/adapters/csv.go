package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/pricecast/pkg/timeseries"
)

// CSVAdapter reads daily close records from a local CSV file. The file
// must have a header row; column names are matched case-insensitively.
//
// Rows are filtered to the requested instrument via the ticker column, and
// to closing prices via the record-type column when one is configured.
// Duplicate dates keep the last occurrence, matching how exchange exports
// publish corrections.
type CSVAdapter struct {
	// Path is the file to read (required).
	Path string

	// DateColumn, TickerColumn, CloseColumn name the columns to use.
	// Defaults: "date", "ticker", "close".
	DateColumn   string
	TickerColumn string
	CloseColumn  string

	// TypeColumn and TypeValue filter rows by record type, e.g. a "type"
	// column whose closing rows carry "Close". Empty TypeColumn disables
	// the filter.
	TypeColumn string
	TypeValue  string

	// DateLayout is the Go time layout for the date column.
	// Defaults to "2006-01-02".
	DateLayout string
}

func (c *CSVAdapter) Name() string { return "csv" }

// Collect implements Adapter.
func (c *CSVAdapter) Collect(ctx context.Context, instrument string, lookbackDays int) (*timeseries.Series, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("csv adapter: path is required")
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("csv adapter: open: %w", err)
	}
	defer f.Close()

	series, err := c.parse(ctx, f, instrument)
	if err != nil {
		return nil, err
	}
	return clipLookback(series, lookbackDays), nil
}

func (c *CSVAdapter) parse(ctx context.Context, r io.Reader, instrument string) (*timeseries.Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csv adapter: read header: %w", err)
	}

	dateIdx, err := columnIndex(header, pick(c.DateColumn, "date"))
	if err != nil {
		return nil, err
	}
	tickerIdx, err := columnIndex(header, pick(c.TickerColumn, "ticker"))
	if err != nil {
		return nil, err
	}
	closeIdx, err := columnIndex(header, pick(c.CloseColumn, "close"))
	if err != nil {
		return nil, err
	}
	typeIdx := -1
	if c.TypeColumn != "" {
		typeIdx, err = columnIndex(header, c.TypeColumn)
		if err != nil {
			return nil, err
		}
	}

	layout := pick(c.DateLayout, "2006-01-02")
	byDate := make(map[time.Time]float64)

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv adapter: line %d: %w", line, err)
		}

		if !strings.EqualFold(record[tickerIdx], instrument) {
			continue
		}
		if typeIdx >= 0 && !strings.EqualFold(record[typeIdx], c.TypeValue) {
			continue
		}

		date, err := time.Parse(layout, record[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("csv adapter: line %d: parse date %q: %w", line, record[dateIdx], err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[closeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv adapter: line %d: parse close %q: %w", line, record[closeIdx], err)
		}

		byDate[date.UTC()] = value
	}

	if len(byDate) == 0 {
		return nil, fmt.Errorf("csv adapter: no rows matched instrument %q", instrument)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = byDate[d]
	}
	return timeseries.New(dates, values)
}

// clipLookback keeps the most recent lookbackDays observations.
func clipLookback(s *timeseries.Series, lookbackDays int) *timeseries.Series {
	if lookbackDays <= 0 || s.Len() <= lookbackDays {
		return s
	}
	start := s.Len() - lookbackDays
	clipped, err := timeseries.New(s.Timestamps[start:], s.Values[start:])
	if err != nil {
		return s
	}
	return clipped
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("csv adapter: column %q not found in header", name)
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
