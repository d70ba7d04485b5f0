// Historical price data tool.

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// HistoricalDataTool fetches daily OHLCV history for a ticker.
type HistoricalDataTool struct {
	yahoo  *YahooClient
	logger zerolog.Logger
}

// NewHistoricalDataTool creates the tool backed by the given Yahoo client.
func NewHistoricalDataTool(yahoo *YahooClient, logger zerolog.Logger) *HistoricalDataTool {
	return &HistoricalDataTool{
		yahoo:  yahoo,
		logger: logger.With().Str("tool", "get_historical_data").Logger(),
	}
}

// Descriptor returns the tool metadata.
func (t *HistoricalDataTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "get_historical_data",
		Description: "Fetch historical stock price data: open, close, high, low and volume",
		Parameters: []Parameter{
			{Name: "ticker", Type: "str", Description: "Stock ticker symbol, e.g. AAPL"},
			{Name: "start_date", Type: "str", Description: "Start date in YYYY-MM-DD format"},
			{Name: "end_date", Type: "str", Description: "End date in YYYY-MM-DD format"},
		},
	}
}

// Run fetches the history and returns it as column -> {date -> value} maps,
// one column per OHLCV series.
func (t *HistoricalDataTool) Run(ctx context.Context, params map[string]any) (any, error) {
	ticker, err := StringParam(params, "ticker")
	if err != nil {
		return nil, err
	}
	start, end, err := dateRange(params)
	if err != nil {
		return nil, err
	}

	t.logger.Info().Str("ticker", ticker).
		Str("start", start.Format(dateLayout)).Str("end", end.Format(dateLayout)).
		Msg("fetching historical data")

	chart, err := t.yahoo.Chart(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}

	result := map[string]any{
		"Open":   columnMap(chart.Timestamps, chart.Open),
		"High":   columnMap(chart.Timestamps, chart.High),
		"Low":    columnMap(chart.Timestamps, chart.Low),
		"Close":  columnMap(chart.Timestamps, chart.Close),
		"Volume": columnMap(chart.Timestamps, chart.Volume),
	}

	t.logger.Info().Str("ticker", ticker).Int("rows", chart.Len()).Msg("historical data fetched")
	return result, nil
}

// columnMap builds a {date -> value} map for one price column.
// Days with no trade data are skipped.
func columnMap(timestamps []time.Time, values []*float64) map[string]any {
	col := make(map[string]any, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(values) || values[i] == nil {
			continue
		}
		col[ts.Format(dateLayout)] = *values[i]
	}
	return col
}

// dateRange parses start_date/end_date parameters.
func dateRange(params map[string]any) (time.Time, time.Time, error) {
	startStr, err := StringParam(params, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endStr, err := StringParam(params, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: %w", startStr, err)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: %w", endStr, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", endStr, startStr)
	}
	return start, end, nil
}
