// Tool result validation and normalization.
//
// Every tool round-trip is wrapped in an Envelope before it reaches the
// transcript. The envelope carries a quality verdict alongside the raw
// result so the model can weigh degraded data instead of treating every
// success as trustworthy. Normalization also coerces time-typed map keys
// and values to strings so the envelope always JSON-marshals cleanly.

package agent

import (
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
)

// DataQuality grades the usefulness of a successful tool result.
type DataQuality string

const (
	// QualityGood means the result passed all checks for its tool.
	QualityGood DataQuality = "good"
	// QualityPoor means the result is usable but degraded (empty or sparse).
	QualityPoor DataQuality = "poor"
	// QualityUnknown means validation itself failed; the raw result is
	// passed through unjudged.
	QualityUnknown DataQuality = "unknown"
	// QualityError accompanies a failed invocation.
	QualityError DataQuality = "error"
)

// Envelope is the uniform wrapper around every tool outcome.
type Envelope struct {
	Status          string         `json:"status"`
	Tool            string         `json:"tool"`
	Parameters      map[string]any `json:"parameters"`
	Result          any            `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	DataQuality     DataQuality    `json:"data_quality"`
	ValidationNotes []string       `json:"validation_notes,omitempty"`
	DataTimestamp   string         `json:"data_timestamp"`
}

// Validator grades tool results and normalizes them for the transcript.
// It never fails: a panic during inspection downgrades the verdict to
// unknown and the raw result is kept.
type Validator struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewValidator creates a validator stamping envelopes with wall-clock time.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		logger: logger.With().Str("component", "validator").Logger(),
		now:    time.Now,
	}
}

// Failure wraps a failed invocation.
func (v *Validator) Failure(tool string, params map[string]any, err error) Envelope {
	v.logger.Warn().Str("tool", tool).Err(err).Msg("tool invocation failed")
	return Envelope{
		Status:        "error",
		Tool:          tool,
		Parameters:    params,
		Error:         err.Error(),
		DataQuality:   QualityError,
		DataTimestamp: v.now().Format(time.RFC3339),
	}
}

// Validate wraps a successful invocation, grading the result with the
// heuristics for the named tool.
func (v *Validator) Validate(tool string, params map[string]any, result any) (env Envelope) {
	env = Envelope{
		Status:        "success",
		Tool:          tool,
		Parameters:    params,
		Result:        result,
		DataQuality:   QualityGood,
		DataTimestamp: v.now().Format(time.RFC3339),
	}

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error().Str("tool", tool).Interface("panic", r).Msg("validation panicked")
			env.DataQuality = QualityUnknown
			env.ValidationNotes = append(env.ValidationNotes, fmt.Sprintf("validation failed: %v", r))
		}
	}()

	env.Result = normalizeValue(result)

	switch tool {
	case "get_historical_data":
		if emptyColumns(env.Result) {
			env.DataQuality = QualityPoor
			env.ValidationNotes = append(env.ValidationNotes, "historical data result is empty")
		}
	case "get_financial_statements":
		if n := populatedMetrics(env.Result); n < 3 {
			env.DataQuality = QualityPoor
			env.ValidationNotes = append(env.ValidationNotes,
				fmt.Sprintf("only %d headline financial metrics populated", n))
		}
	case "get_news":
		if articleCount(env.Result) == 0 {
			env.DataQuality = QualityPoor
			env.ValidationNotes = append(env.ValidationNotes, "no news articles found")
		}
	case "calculate_technical_indicators":
		if n := indicatorValues(env.Result); n < 5 {
			env.DataQuality = QualityPoor
			env.ValidationNotes = append(env.ValidationNotes,
				fmt.Sprintf("only %d indicator values computed", n))
		}
	}

	if env.DataQuality != QualityGood {
		v.logger.Warn().Str("tool", tool).Str("quality", string(env.DataQuality)).
			Strs("notes", env.ValidationNotes).Msg("degraded tool result")
	}
	return env
}

// emptyColumns reports whether every price column is an empty map.
func emptyColumns(result any) bool {
	cols, ok := result.(map[string]any)
	if !ok {
		return false
	}
	for _, col := range cols {
		if m, ok := col.(map[string]any); ok && len(m) > 0 {
			return false
		}
	}
	return true
}

// populatedMetrics counts key_metrics entries that carry an actual value.
func populatedMetrics(result any) int {
	m, ok := result.(map[string]any)
	if !ok {
		return 0
	}
	metrics, ok := m["key_metrics"].(map[string]any)
	if !ok {
		return 0
	}
	count := 0
	for _, v := range metrics {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && (s == "" || s == "N/A") {
			continue
		}
		count++
	}
	return count
}

// articleCount returns the number of articles in a news result.
func articleCount(result any) int {
	if list, ok := result.([]any); ok {
		return len(list)
	}
	return 0
}

// indicatorValues counts non-null entries across all indicator series.
func indicatorValues(result any) int {
	series, ok := result.(map[string]any)
	if !ok {
		return 0
	}
	count := 0
	for _, s := range series {
		m, ok := s.(map[string]any)
		if !ok {
			continue
		}
		for _, v := range m {
			if v != nil {
				count++
			}
		}
	}
	return count
}

// normalizeValue walks a result recursively, converting every map to
// map[string]any with stringified keys and every time value to RFC 3339
// text. Scalars pass through unchanged.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[keyString(iter.Key().Interface())] = normalizeValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	default:
		return v
	}
}

// keyString renders a map key as text. Time keys become dates, which is
// what a transcript reader expects from a price series.
func keyString(k any) string {
	switch key := k.(type) {
	case string:
		return key
	case time.Time:
		return key.Format("2006-01-02")
	default:
		return fmt.Sprint(key)
	}
}
