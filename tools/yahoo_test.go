package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chartFixture = `{
	"chart": {
		"result": [{
			"timestamp": [1754006400, 1754265600],
			"indicators": {
				"quote": [{
					"open":   [228.0, 230.2],
					"high":   [231.0, 232.5],
					"low":    [227.1, 229.8],
					"close":  [229.5, null],
					"volume": [51000000, 48000000]
				}]
			}
		}],
		"error": null
	}
}`

const quoteSummaryFixture = `{
	"quoteSummary": {
		"result": [{
			"financialData": {
				"totalRevenue": {"raw": 391035000000, "fmt": "391.04B"},
				"currentPrice": {"raw": 229.35, "fmt": "229.35"}
			},
			"price": {
				"marketCap": {"raw": 3400000000000, "fmt": "3.4T"}
			}
		}],
		"error": null
	}
}`

func newChartServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("expected browser-like user agent, got %q", ua)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChartParsesHistory(t *testing.T) {
	srv := newChartServer(t, chartFixture)
	yahoo := NewYahooClient(5*time.Second, testLogger()).WithBaseURL(srv.URL)

	chart, err := yahoo.Chart(context.Background(), "AAPL",
		time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Chart failed: %v", err)
	}

	if chart.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", chart.Len())
	}
	if chart.Close[0] == nil || *chart.Close[0] != 229.5 {
		t.Errorf("unexpected first close: %v", chart.Close[0])
	}
	if chart.Close[1] != nil {
		t.Error("expected nil close for missing trade data")
	}
	if got := chart.Timestamps[0].UTC().Format("2006-01-02"); got != "2025-08-01" {
		t.Errorf("unexpected first timestamp: %s", got)
	}
}

func TestChartUpstreamError(t *testing.T) {
	srv := newChartServer(t, `{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`)
	yahoo := NewYahooClient(5*time.Second, testLogger()).WithBaseURL(srv.URL)

	_, err := yahoo.Chart(context.Background(), "NOPE", time.Now().AddDate(0, -1, 0), time.Now())
	if err == nil {
		t.Fatal("expected error for upstream failure")
	}
	if !strings.Contains(err.Error(), "No data found") {
		t.Errorf("expected upstream description in error, got %v", err)
	}
}

func TestChartHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	yahoo := NewYahooClient(5*time.Second, testLogger()).WithBaseURL(srv.URL)

	_, err := yahoo.Chart(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestQuoteSummaryMergesModules(t *testing.T) {
	srv := newChartServer(t, quoteSummaryFixture)
	yahoo := NewYahooClient(5*time.Second, testLogger()).WithBaseURL(srv.URL)

	summary, err := yahoo.QuoteSummary(context.Background(), "AAPL", "financialData", "price")
	if err != nil {
		t.Fatalf("QuoteSummary failed: %v", err)
	}

	if got := RawFloat(summary, "financialData", "totalRevenue"); got != 391035000000 {
		t.Errorf("unexpected revenue: %g", got)
	}
	if got := RawFloat(summary, "price", "marketCap"); got != 3.4e12 {
		t.Errorf("unexpected market cap: %g", got)
	}
	if got := RawFloat(summary, "price", "missingField"); got != 0 {
		t.Errorf("expected 0 for missing field, got %g", got)
	}
}

func TestHistoricalDataToolBuildsColumns(t *testing.T) {
	srv := newChartServer(t, chartFixture)
	yahoo := NewYahooClient(5*time.Second, testLogger()).WithBaseURL(srv.URL)
	tool := NewHistoricalDataTool(yahoo, testLogger())

	result, err := tool.Run(context.Background(), map[string]any{
		"ticker":     "AAPL",
		"start_date": "2025-08-01",
		"end_date":   "2025-08-05",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	columns, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	closeCol, ok := columns["Close"].(map[string]any)
	if !ok {
		t.Fatalf("expected close column map, got %T", columns["Close"])
	}
	if closeCol["2025-08-01"] != 229.5 {
		t.Errorf("unexpected close value: %v", closeCol["2025-08-01"])
	}
	// Days without trade data are dropped from the column.
	if _, present := closeCol["2025-08-04"]; present {
		t.Error("expected missing close to be omitted")
	}
}

func TestHistoricalDataToolRejectsMissingTicker(t *testing.T) {
	yahoo := NewYahooClient(5*time.Second, testLogger())
	tool := NewHistoricalDataTool(yahoo, testLogger())

	_, err := tool.Run(context.Background(), map[string]any{
		"start_date": "2025-08-01",
		"end_date":   "2025-08-05",
	})
	if err == nil {
		t.Fatal("expected error for missing ticker")
	}
}
