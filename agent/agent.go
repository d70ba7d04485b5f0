// Stock analysis agent: a bounded plan-act-observe loop over an LLM
// provider and a tool registry.
//
// Each iteration asks the model for its next move. A response carrying a
// tool directive triggers an invocation whose enveloped result is fed back
// as the next user turn; a response without one is the final analysis. If
// the step budget runs out first, one extra model turn is forced to
// produce a summary from whatever was gathered.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/stockagent/llm"
	"github.com/finsight/stockagent/tools"
)

const (
	// DefaultMaxSteps is the reasoning budget used when none is given.
	DefaultMaxSteps = 5
	// MaxSteps caps the reasoning budget.
	MaxSteps = 10

	// DefaultQuery substitutes for a blank user query.
	DefaultQuery = "Analyze Apple (AAPL) stock performance over the last three months, including price trends, technical indicators, and recent news."

	streamBuffer = 64
)

// Agent runs analyses against one provider and one tool registry.
// The transcript is append-only and grows across the run; an Agent is
// not safe for concurrent Analyze calls.
type Agent struct {
	provider   llm.Provider
	registry   *tools.Registry
	parser     DirectiveParser
	validator  *Validator
	transcript []llm.ChatMessage
	logger     zerolog.Logger
}

// New creates an agent whose transcript is seeded with the system prompt
// describing the registry's tools.
func New(provider llm.Provider, registry *tools.Registry, logger zerolog.Logger) *Agent {
	l := logger.With().Str("component", "agent").Str("provider", provider.Name()).Logger()
	return &Agent{
		provider:  provider,
		registry:  registry,
		parser:    NewMarkerParser(logger),
		validator: NewValidator(logger),
		transcript: []llm.ChatMessage{
			llm.SystemMessage(systemPrompt(registry.Describe(), time.Now())),
		},
		logger: l,
	}
}

// Analyze runs the full loop for one query. A blank query is replaced by
// DefaultQuery; maxSteps is clamped to [1, MaxSteps] with DefaultMaxSteps
// for non-positive values. When observer is non-nil it receives progress
// events synchronously and model turns are streamed chunk by chunk.
//
// Provider errors abort the run; tool errors do not, they come back as
// error envelopes and the loop continues.
func (a *Agent) Analyze(ctx context.Context, query string, maxSteps int, observer Observer) (Result, error) {
	if strings.TrimSpace(query) == "" {
		a.logger.Warn().Msg("empty query, using default")
		query = DefaultQuery
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if maxSteps > MaxSteps {
		maxSteps = MaxSteps
	}

	a.logger.Info().Str("query", truncateLog(query)).Int("max_steps", maxSteps).Msg("starting analysis")
	a.transcript = append(a.transcript, llm.UserMessage(query))

	var (
		steps         []StepRecord
		totalUsage    llm.TokenUsage
		finalAnalysis string
	)

	for step := 1; step <= maxSteps; step++ {
		if observer != nil {
			observer(Event{Type: EventThinking, Content: fmt.Sprintf("Step %d: thinking...", step), Step: step})
		}

		text, usage, err := a.complete(ctx, observer, EventStream, step)
		if err != nil {
			return a.fail(observer, query, steps, totalUsage, fmt.Errorf("step %d: %w", step, err))
		}
		totalUsage.Add(&usage)
		a.transcript = append(a.transcript, llm.AssistantMessage(text))

		steps = append(steps, StepRecord{Step: step, Response: text, TokenUsage: usage})
		rec := &steps[len(steps)-1]
		if observer != nil {
			observer(Event{Type: EventStepComplete, Content: fmt.Sprintf("Step %d complete", step), Step: step})
		}

		directive := a.parser.Parse(text)
		if directive == nil {
			finalAnalysis = text
			a.logger.Info().Int("step", step).Msg("analysis complete")
			break
		}

		rec.ToolCall = directive
		if observer != nil {
			observer(Event{Type: EventTool, Content: toolStartMessage(directive), Step: step})
		}

		env := a.invoke(ctx, directive)
		rec.ToolResult = &env
		if observer != nil {
			observer(Event{Type: EventThinking, Content: "Tool execution complete, analyzing results...", Step: step})
		}

		a.transcript = append(a.transcript, llm.UserMessage("Tool call result:\n"+marshalEnvelope(env)))
	}

	if finalAnalysis == "" {
		a.logger.Info().Int("steps", len(steps)).Msg("step budget exhausted, forcing summary")
		a.transcript = append(a.transcript, llm.UserMessage(summaryPrompt))
		if observer != nil {
			observer(Event{Type: EventFinalStart, Content: "Generating final summary..."})
		}

		text, usage, err := a.complete(ctx, observer, EventFinalStream, 0)
		if err != nil {
			return a.fail(observer, query, steps, totalUsage, fmt.Errorf("final summary: %w", err))
		}
		totalUsage.Add(&usage)
		finalAnalysis = text
		steps = append(steps, StepRecord{
			Step:           len(steps) + 1,
			Response:       text,
			TokenUsage:     usage,
			IsFinalSummary: true,
		})
	}

	if observer != nil {
		observer(Event{Type: EventFinal, Content: finalAnalysis})
	}

	return Result{
		Query:           query,
		Steps:           steps,
		FinalAnalysis:   finalAnalysis,
		Completed:       true,
		TotalTokensUsed: totalUsage.TotalTokens,
		StepsCount:      len(steps),
	}, nil
}

// AnalyzeStream runs Analyze on its own goroutine and returns a channel of
// progress events. The channel is closed after the terminal final or error
// event; the caller must drain it.
func (a *Agent) AnalyzeStream(ctx context.Context, query string, maxSteps int) <-chan Event {
	events := make(chan Event, streamBuffer)
	go func() {
		defer close(events)
		observer := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
		// Failures already surface as an error event via the observer.
		if _, err := a.Analyze(ctx, query, maxSteps, observer); err != nil {
			a.logger.Error().Err(err).Msg("streamed analysis failed")
		}
	}()
	return events
}

// fail emits a terminal error event and returns the partial result.
func (a *Agent) fail(observer Observer, query string, steps []StepRecord, usage llm.TokenUsage, err error) (Result, error) {
	a.logger.Error().Err(err).Msg("analysis aborted")
	if observer != nil {
		observer(Event{Type: EventError, Content: fmt.Sprintf("Analysis failed: %v", err)})
	}
	return Result{
		Query:           query,
		Steps:           steps,
		Completed:       false,
		TotalTokensUsed: usage.TotalTokens,
		StepsCount:      len(steps),
	}, err
}

// complete runs one model turn over the current transcript. With an
// observer the turn is streamed; chunk emission stops as soon as the
// accumulated text contains a directive marker so raw tool-call JSON never
// reaches the event stream.
func (a *Agent) complete(ctx context.Context, observer Observer, streamType EventType, step int) (string, llm.TokenUsage, error) {
	if observer == nil {
		resp, err := a.provider.Chat(ctx, a.transcript)
		if err != nil {
			return "", llm.TokenUsage{}, err
		}
		var usage llm.TokenUsage
		if resp.Usage != nil {
			usage = *resp.Usage
		}
		return resp.Content, usage, nil
	}

	chunks := make(chan string, streamBuffer)
	type streamOutcome struct {
		usage *llm.TokenUsage
		err   error
	}
	outcome := make(chan streamOutcome, 1)
	go func() {
		defer close(chunks)
		usage, err := a.provider.StreamChat(ctx, a.transcript, chunks)
		outcome <- streamOutcome{usage: usage, err: err}
	}()

	var b strings.Builder
	suppress := false
	for chunk := range chunks {
		b.WriteString(chunk)
		if !suppress && strings.Contains(b.String(), openMarker) {
			suppress = true
		}
		if !suppress && chunk != "" {
			observer(Event{Type: streamType, Content: chunk, Step: step})
		}
	}

	out := <-outcome
	if out.err != nil {
		return "", llm.TokenUsage{}, out.err
	}
	var usage llm.TokenUsage
	if out.usage != nil {
		usage = *out.usage
	}
	return b.String(), usage, nil
}

// invoke resolves and runs one directive, converting every failure mode
// (missing name, unknown tool, run error, panic) into an error envelope.
func (a *Agent) invoke(ctx context.Context, d *Directive) Envelope {
	if d.Name == "" {
		return a.validator.Failure(d.Name, d.Parameters, errors.New("no tool name specified"))
	}
	tool, ok := a.registry.Get(d.Name)
	if !ok {
		return a.validator.Failure(d.Name, d.Parameters, fmt.Errorf("unknown tool: %s", d.Name))
	}

	a.logger.Info().Str("tool", d.Name).Interface("params", d.Parameters).Msg("invoking tool")
	result, err := runTool(ctx, tool, d.Parameters)
	if err != nil {
		return a.validator.Failure(d.Name, d.Parameters, err)
	}
	return a.validator.Validate(d.Name, d.Parameters, result)
}

// runTool shields the loop from panicking tool implementations.
func runTool(ctx context.Context, tool tools.Tool, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Run(ctx, params)
}

// marshalEnvelope renders an envelope for the transcript. Normalization
// has already made the payload marshal-safe; the fallback covers results
// a tool test might inject directly.
func marshalEnvelope(env Envelope) string {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"status":"error","tool":%q,"error":"result not serializable"}`, env.Tool)
	}
	return string(data)
}

func truncateLog(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
