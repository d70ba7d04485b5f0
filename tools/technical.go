// Technical indicator tool and the indicator math behind it.

package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// TechnicalAnalysisTool computes moving averages, RSI and MACD over a
// ticker's daily closing prices.
type TechnicalAnalysisTool struct {
	yahoo  *YahooClient
	logger zerolog.Logger
}

// NewTechnicalAnalysisTool creates the tool backed by the given Yahoo client.
func NewTechnicalAnalysisTool(yahoo *YahooClient, logger zerolog.Logger) *TechnicalAnalysisTool {
	return &TechnicalAnalysisTool{
		yahoo:  yahoo,
		logger: logger.With().Str("tool", "calculate_technical_indicators").Logger(),
	}
}

// Descriptor returns the tool metadata.
func (t *TechnicalAnalysisTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "calculate_technical_indicators",
		Description: "Calculate technical indicators for a stock: moving averages, RSI and MACD",
		Parameters: []Parameter{
			{Name: "ticker", Type: "str", Description: "Stock ticker symbol, e.g. AAPL"},
			{Name: "start_date", Type: "str", Description: "Start date in YYYY-MM-DD format"},
			{Name: "end_date", Type: "str", Description: "End date in YYYY-MM-DD format"},
		},
	}
}

// Run fetches the close series and computes SMA50, SMA200, RSI and MACD.
// Warm-up positions where an indicator is undefined are reported as null,
// so the model can see how much of the window is usable.
func (t *TechnicalAnalysisTool) Run(ctx context.Context, params map[string]any) (any, error) {
	ticker, err := StringParam(params, "ticker")
	if err != nil {
		return nil, err
	}
	start, end, err := dateRange(params)
	if err != nil {
		return nil, err
	}

	t.logger.Info().Str("ticker", ticker).Msg("calculating technical indicators")

	chart, err := t.yahoo.Chart(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}

	dates, closes := closeSeries(chart)
	if len(closes) == 0 {
		return nil, fmt.Errorf("no closing prices available for %s", ticker)
	}

	macd, signal, _ := MACD(closes, 12, 26, 9)

	result := map[string]any{
		"SMA50":       seriesMap(dates, SMA(closes, 50)),
		"SMA200":      seriesMap(dates, SMA(closes, 200)),
		"RSI":         seriesMap(dates, RSI(closes, 14)),
		"MACD":        seriesMap(dates, macd),
		"MACD_signal": seriesMap(dates, signal),
	}

	t.logger.Info().Str("ticker", ticker).Int("rows", len(closes)).Msg("technical indicators calculated")
	return result, nil
}

// closeSeries flattens chart data into aligned date and close slices,
// skipping days with no trade data.
func closeSeries(chart *ChartData) ([]time.Time, []float64) {
	var dates []time.Time
	var closes []float64
	for i, ts := range chart.Timestamps {
		if i >= len(chart.Close) || chart.Close[i] == nil {
			continue
		}
		dates = append(dates, ts)
		closes = append(closes, *chart.Close[i])
	}
	return dates, closes
}

// seriesMap builds a {date -> value} map, with NaN values emitted as null.
func seriesMap(dates []time.Time, values []float64) map[string]any {
	m := make(map[string]any, len(dates))
	for i, d := range dates {
		if i >= len(values) {
			break
		}
		if math.IsNaN(values[i]) {
			m[d.Format(dateLayout)] = nil
		} else {
			m[d.Format(dateLayout)] = values[i]
		}
	}
	return m
}

// SMA computes a simple moving average. Positions before the window fills
// are NaN.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// EMA computes an exponential moving average seeded with an SMA over the
// first period values.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) < period {
		return out
	}

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI computes the relative strength index using Wilder smoothing.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD computes the MACD line (fast EMA - slow EMA), its signal line and
// the histogram.
func MACD(values []float64, fast, slow, signalPeriod int) (macd, signal, histogram []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	macd = make([]float64, len(values))
	for i := range values {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			macd[i] = math.NaN()
		} else {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Signal line is an EMA over the defined portion of the MACD line.
	signal = make([]float64, len(values))
	for i := range signal {
		signal[i] = math.NaN()
	}
	firstDefined := slow - 1
	if firstDefined < len(values) {
		defined := macd[firstDefined:]
		sigDefined := EMA(defined, signalPeriod)
		copy(signal[firstDefined:], sigDefined)
	}

	histogram = make([]float64, len(values))
	for i := range values {
		if math.IsNaN(macd[i]) || math.IsNaN(signal[i]) {
			histogram[i] = math.NaN()
		} else {
			histogram[i] = macd[i] - signal[i]
		}
	}
	return macd, signal, histogram
}
