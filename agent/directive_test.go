package agent

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestParser() *MarkerParser {
	return NewMarkerParser(zerolog.Nop())
}

func TestParseValidDirective(t *testing.T) {
	text := `Let me fetch the data.
<tool_call>
{"name": "get_historical_data", "parameters": {"ticker": "AAPL", "start_date": "2025-05-01"}}
</tool_call>`

	d := newTestParser().Parse(text)
	if d == nil {
		t.Fatal("expected directive, got nil")
	}
	if d.Name != "get_historical_data" {
		t.Errorf("expected tool name 'get_historical_data', got %q", d.Name)
	}
	if d.Parameters["ticker"] != "AAPL" {
		t.Errorf("expected ticker parameter 'AAPL', got %v", d.Parameters["ticker"])
	}
}

func TestParseNoMarkers(t *testing.T) {
	if d := newTestParser().Parse("AAPL looks strong. Final answer."); d != nil {
		t.Errorf("expected nil for plain text, got %+v", d)
	}
}

func TestParseMissingCloseMarker(t *testing.T) {
	if d := newTestParser().Parse(`<tool_call>{"name": "get_news"}`); d != nil {
		t.Errorf("expected nil for unterminated marker, got %+v", d)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	text := `<tool_call>{"name": "get_news", parameters}</tool_call>`
	if d := newTestParser().Parse(text); d != nil {
		t.Errorf("expected nil for malformed JSON, got %+v", d)
	}
}

func TestParseInvertedMarkers(t *testing.T) {
	text := `</tool_call>{"name": "get_news"}<tool_call>`
	if d := newTestParser().Parse(text); d != nil {
		t.Errorf("expected nil for inverted markers, got %+v", d)
	}
}

func TestParseMissingParameters(t *testing.T) {
	d := newTestParser().Parse(`<tool_call>{"name": "get_stock_info"}</tool_call>`)
	if d == nil {
		t.Fatal("expected directive, got nil")
	}
	if d.Parameters == nil {
		t.Error("expected non-nil parameters map")
	}
}

func TestParseUsesFirstMarkerPair(t *testing.T) {
	text := `<tool_call>{"name": "get_news", "parameters": {"query": "AAPL"}}</tool_call>
trailing commentary <tool_call>ignored</tool_call>`

	d := newTestParser().Parse(text)
	if d == nil {
		t.Fatal("expected directive, got nil")
	}
	if d.Name != "get_news" {
		t.Errorf("expected first directive to win, got %q", d.Name)
	}
}
