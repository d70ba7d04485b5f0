// Yahoo Finance client shared by the market-data tools.
//
// Information Hiding:
// - Endpoint URLs and query encoding
// - Response envelope unwrapping (chart and quoteSummary formats)
// - The raw/fmt number wrapping Yahoo applies to most figures

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// browser-like UA; Yahoo rejects the default Go user agent
const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// YahooClient fetches price history, quote summaries and fundamentals.
// Read-only after construction; safe to share across concurrent agents.
type YahooClient struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewYahooClient creates a client with the given request timeout.
func NewYahooClient(timeout time.Duration, logger zerolog.Logger) *YahooClient {
	return &YahooClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultYahooBaseURL,
		logger:  logger.With().Str("component", "yahoo").Logger(),
	}
}

// WithBaseURL overrides the endpoint base URL (used by tests).
func (y *YahooClient) WithBaseURL(base string) *YahooClient {
	y.baseURL = strings.TrimSuffix(base, "/")
	return y
}

// ChartData holds one ticker's daily price history.
// Slices are index-aligned; nil pointers mark days with no trade data.
type ChartData struct {
	Timestamps []time.Time
	Open       []*float64
	High       []*float64
	Low        []*float64
	Close      []*float64
	Volume     []*float64
}

// Len returns the number of rows in the history.
func (c *ChartData) Len() int {
	return len(c.Timestamps)
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Chart fetches daily price history for a ticker between start and end.
func (y *YahooClient) Chart(ctx context.Context, ticker string, start, end time.Time) (*ChartData, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.baseURL, url.PathEscape(ticker), start.Unix(), end.Unix())

	body, err := y.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart response for %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart request for %s failed: %s (%s)",
			ticker, resp.Chart.Error.Description, resp.Chart.Error.Code)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no chart data returned for %s", ticker)
	}

	res := resp.Chart.Result[0]
	quote := res.Indicators.Quote[0]
	data := &ChartData{
		Open:   quote.Open,
		High:   quote.High,
		Low:    quote.Low,
		Close:  quote.Close,
		Volume: quote.Volume,
	}
	for _, ts := range res.Timestamp {
		data.Timestamps = append(data.Timestamps, time.Unix(ts, 0).UTC())
	}

	y.logger.Debug().Str("ticker", ticker).Int("rows", data.Len()).Msg("fetched price history")
	return data, nil
}

// QuoteSummary fetches the requested quoteSummary modules for a ticker and
// returns the merged module map.
func (y *YahooClient) QuoteSummary(ctx context.Context, ticker string, modules ...string) (map[string]any, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		y.baseURL, url.PathEscape(ticker), url.QueryEscape(strings.Join(modules, ",")))

	body, err := y.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var resp struct {
		QuoteSummary struct {
			Result []map[string]any `json:"result"`
			Error  *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quote summary for %s: %w", ticker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary for %s failed: %s (%s)",
			ticker, resp.QuoteSummary.Error.Description, resp.QuoteSummary.Error.Code)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no quote summary returned for %s", ticker)
	}
	return resp.QuoteSummary.Result[0], nil
}

func (y *YahooClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %s: %s", resp.Status, truncate(string(body), 200))
	}
	return body, nil
}

// dig walks a nested map by key path, returning nil when any hop is missing.
func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[key]
	}
	return cur
}

// rawValue unwraps Yahoo's {"raw": n, "fmt": "..."} number wrapping.
// Returns "N/A" when the value is absent, matching the payload shape the
// model is prompted to expect.
func rawValue(m map[string]any, path ...string) any {
	v := dig(m, path...)
	if v == nil {
		return "N/A"
	}
	if wrapped, ok := v.(map[string]any); ok {
		if raw, ok := wrapped["raw"]; ok {
			return raw
		}
		return "N/A"
	}
	return v
}

// RawFloat digs a numeric field out of a quote summary, unwrapping the
// raw/fmt pair. Returns 0 when the field is absent or non-numeric.
func RawFloat(summary map[string]any, path ...string) float64 {
	v := rawValue(summary, path...)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
