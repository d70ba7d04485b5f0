// Tool directive parsing.
//
// The model requests tool invocations by embedding a JSON payload between
// fixed markers in its generated text. Parsing is isolated behind the
// DirectiveParser interface so the delimiter convention and payload grammar
// can be swapped (e.g. for a provider-native tool-calling mode) without
// touching the loop.

package agent

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

const (
	openMarker  = "<tool_call>"
	closeMarker = "</tool_call>"
)

// Directive is a structured tool-invocation request extracted from
// model-generated text.
type Directive struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// DirectiveParser extracts a tool directive from one step's generated text.
// A nil result means the text carries no actionable call and the step is
// treated as final.
type DirectiveParser interface {
	Parse(text string) *Directive
}

// MarkerParser parses directives delimited by <tool_call> markers.
type MarkerParser struct {
	logger zerolog.Logger
}

// NewMarkerParser creates the marker-based parser.
func NewMarkerParser(logger zerolog.Logger) *MarkerParser {
	return &MarkerParser{logger: logger.With().Str("component", "directive").Logger()}
}

// Parse locates the first marker pair and decodes the JSON between them.
// Missing markers, an inverted marker pair, or an unparsable payload all
// yield nil: the step is then treated as a plain answer rather than a
// failure.
func (p *MarkerParser) Parse(text string) *Directive {
	start := strings.Index(text, openMarker)
	end := strings.Index(text, closeMarker)
	if start == -1 || end == -1 {
		p.logger.Debug().Msg("no tool call markers found in response")
		return nil
	}
	if end < start+len(openMarker) {
		p.logger.Error().Msg("tool call markers out of order")
		return nil
	}

	payload := strings.TrimSpace(text[start+len(openMarker) : end])

	var d Directive
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse tool call JSON")
		return nil
	}
	if d.Parameters == nil {
		d.Parameters = map[string]any{}
	}

	p.logger.Debug().Str("tool", d.Name).Msg("parsed tool call")
	return &d
}

var _ DirectiveParser = (*MarkerParser)(nil)
