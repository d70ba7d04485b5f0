package agent

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestValidator() *Validator {
	return NewValidator(zerolog.Nop())
}

func TestValidateGoodHistoricalData(t *testing.T) {
	result := map[string]any{
		"Close": map[string]any{"2025-08-01": 229.5, "2025-08-04": 231.1},
		"Open":  map[string]any{"2025-08-01": 228.0, "2025-08-04": 230.2},
	}

	env := newTestValidator().Validate("get_historical_data", map[string]any{"ticker": "AAPL"}, result)
	if env.Status != "success" {
		t.Errorf("expected success status, got %q", env.Status)
	}
	if env.DataQuality != QualityGood {
		t.Errorf("expected good quality, got %q", env.DataQuality)
	}
	if len(env.ValidationNotes) != 0 {
		t.Errorf("expected no notes, got %v", env.ValidationNotes)
	}
	if env.DataTimestamp == "" {
		t.Error("expected data timestamp to be set")
	}
}

func TestValidateEmptyHistoricalData(t *testing.T) {
	result := map[string]any{
		"Open": map[string]any{}, "Close": map[string]any{},
	}

	env := newTestValidator().Validate("get_historical_data", nil, result)
	if env.Status != "success" {
		t.Errorf("expected success status even for poor data, got %q", env.Status)
	}
	if env.DataQuality != QualityPoor {
		t.Errorf("expected poor quality, got %q", env.DataQuality)
	}
	if len(env.ValidationNotes) == 0 {
		t.Error("expected a validation note explaining the downgrade")
	}
}

func TestValidateSparseFinancialMetrics(t *testing.T) {
	result := map[string]any{
		"key_metrics": map[string]any{
			"market_cap": 3.4e12,
			"pe_ratio":   "N/A",
			"pb_ratio":   "N/A",
			"roe":        "N/A",
		},
	}

	env := newTestValidator().Validate("get_financial_statements", nil, result)
	if env.DataQuality != QualityPoor {
		t.Errorf("expected poor quality for 1 populated metric, got %q", env.DataQuality)
	}
}

func TestValidateHealthyFinancialMetrics(t *testing.T) {
	result := map[string]any{
		"key_metrics": map[string]any{
			"market_cap": 3.4e12,
			"pe_ratio":   34.2,
			"roe":        1.47,
		},
	}

	env := newTestValidator().Validate("get_financial_statements", nil, result)
	if env.DataQuality != QualityGood {
		t.Errorf("expected good quality for 3 populated metrics, got %q", env.DataQuality)
	}
}

func TestValidateEmptyNews(t *testing.T) {
	env := newTestValidator().Validate("get_news", nil, []any{})
	if env.DataQuality != QualityPoor {
		t.Errorf("expected poor quality for zero articles, got %q", env.DataQuality)
	}
}

func TestValidateSparseIndicators(t *testing.T) {
	result := map[string]any{
		"SMA50": map[string]any{"2025-08-01": nil, "2025-08-04": nil},
		"RSI":   map[string]any{"2025-08-01": 55.0, "2025-08-04": nil},
	}

	env := newTestValidator().Validate("calculate_technical_indicators", nil, result)
	if env.DataQuality != QualityPoor {
		t.Errorf("expected poor quality for 1 indicator value, got %q", env.DataQuality)
	}
}

func TestValidateUnknownToolDefaultsGood(t *testing.T) {
	env := newTestValidator().Validate("search_web_info", nil, map[string]any{"results": []any{}})
	if env.DataQuality != QualityGood {
		t.Errorf("expected good quality for tool without heuristics, got %q", env.DataQuality)
	}
}

func TestFailureEnvelope(t *testing.T) {
	env := newTestValidator().Failure("get_news", map[string]any{"query": "AAPL"}, errors.New("upstream 503"))
	if env.Status != "error" {
		t.Errorf("expected error status, got %q", env.Status)
	}
	if env.DataQuality != QualityError {
		t.Errorf("expected error quality, got %q", env.DataQuality)
	}
	if env.Error != "upstream 503" {
		t.Errorf("expected error message preserved, got %q", env.Error)
	}
	if env.Result != nil {
		t.Error("expected nil result on failure")
	}
}

func TestNormalizeTimeKeys(t *testing.T) {
	day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	result := map[string]any{
		"Close":   map[time.Time]float64{day: 229.5},
		"fetched": day,
	}

	env := newTestValidator().Validate("get_historical_data", nil, result)

	// The envelope must marshal cleanly after normalization.
	if _, err := json.Marshal(env); err != nil {
		t.Fatalf("envelope failed to marshal: %v", err)
	}

	normalized, ok := env.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected normalized map, got %T", env.Result)
	}
	closeCol, ok := normalized["Close"].(map[string]any)
	if !ok {
		t.Fatalf("expected string-keyed close column, got %T", normalized["Close"])
	}
	if _, ok := closeCol["2025-08-01"]; !ok {
		t.Errorf("expected date-string key, got keys %v", closeCol)
	}
	if normalized["fetched"] != day.Format(time.RFC3339) {
		t.Errorf("expected RFC 3339 time value, got %v", normalized["fetched"])
	}
}

func TestNormalizeNestedSlices(t *testing.T) {
	day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	result := []any{
		map[string]any{"publishedAt": day},
	}

	env := newTestValidator().Validate("get_news", nil, result)
	list, ok := env.Result.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected normalized slice, got %T", env.Result)
	}
	item := list[0].(map[string]any)
	if item["publishedAt"] != day.Format(time.RFC3339) {
		t.Errorf("expected RFC 3339 value inside slice, got %v", item["publishedAt"])
	}
}
