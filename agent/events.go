package agent

import (
	"fmt"

	"github.com/finsight/stockagent/tools"
)

// EventType classifies stream events emitted during an analysis run.
type EventType string

const (
	// EventThinking marks a phase transition (step started, tool finished).
	EventThinking EventType = "thinking"
	// EventStream carries an incremental text chunk of a reasoning step.
	EventStream EventType = "stream"
	// EventTool announces that a tool invocation is starting.
	EventTool EventType = "tool"
	// EventStepComplete marks the end of a reasoning step.
	EventStepComplete EventType = "step_complete"
	// EventFinalStart announces the forced summary phase.
	EventFinalStart EventType = "final_start"
	// EventFinalStream carries an incremental chunk of the final summary.
	EventFinalStream EventType = "final_stream"
	// EventFinal carries the complete final analysis text.
	EventFinal EventType = "final"
	// EventError reports a failure that terminated the run.
	EventError EventType = "error"
)

// Event is one item on the analysis progress stream.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
	Step    int       `json:"step,omitempty"`
}

// Observer receives events in emission order. Callbacks run synchronously
// on the analysis goroutine and should return quickly.
type Observer func(Event)

// toolStartMessage renders a human-readable progress line for a tool
// invocation, picking out the parameter a reader cares about.
func toolStartMessage(d *Directive) string {
	ticker := tools.OptionalString(d.Parameters, "ticker", "")
	query := tools.OptionalString(d.Parameters, "query", "")

	switch d.Name {
	case "get_historical_data":
		return fmt.Sprintf("Fetching historical price data for %s...", ticker)
	case "get_stock_info":
		return fmt.Sprintf("Fetching company profile for %s...", ticker)
	case "get_financial_statements":
		return fmt.Sprintf("Fetching financial statements for %s...", ticker)
	case "calculate_technical_indicators":
		return fmt.Sprintf("Calculating technical indicators for %s...", ticker)
	case "get_news":
		return fmt.Sprintf("Searching news for %q...", query)
	case "search_web_info":
		return fmt.Sprintf("Searching the web for %q...", query)
	default:
		return fmt.Sprintf("Calling tool %s...", d.Name)
	}
}
