package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/finsight/stockagent/llm"
	"github.com/finsight/stockagent/tools"
)

// scriptedProvider replays a fixed sequence of responses. Streaming
// splits each response into small chunks to exercise suppression.
type scriptedProvider struct {
	responses []string
	calls     int
	err       error
	failAt    int // 1-based call index that returns err; 0 means never
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "test-model" }

func (p *scriptedProvider) next() (string, error) {
	p.calls++
	if p.failAt > 0 && p.calls == p.failAt {
		return "", p.err
	}
	if p.calls > len(p.responses) {
		return "", errors.New("scripted provider exhausted")
	}
	return p.responses[p.calls-1], nil
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	content, err := p.next()
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{
		Content: content,
		Usage:   &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage, chunks chan<- string) (*llm.TokenUsage, error) {
	content, err := p.next()
	if err != nil {
		return nil, err
	}
	for len(content) > 0 {
		n := 7
		if n > len(content) {
			n = len(content)
		}
		chunks <- content[:n]
		content = content[n:]
	}
	return &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

// stubTool returns a canned result or error.
type stubTool struct {
	name   string
	result any
	err    error
	calls  int
}

func (t *stubTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{Name: t.name, Description: "stub"}
}

func (t *stubTool) Run(ctx context.Context, params map[string]any) (any, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

func newTestAgent(t *testing.T, provider llm.Provider, ts ...tools.Tool) *Agent {
	t.Helper()
	registry, err := tools.NewRegistry(ts...)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return New(provider, registry, zerolog.Nop())
}

const historicalCall = `Let me check prices first.
<tool_call>
{"name": "get_historical_data", "parameters": {"ticker": "AAPL"}}
</tool_call>`

func TestAnalyzeToolThenFinal(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		historicalCall,
		"AAPL has been trending up. Not investment advice.",
	}}
	tool := &stubTool{name: "get_historical_data", result: map[string]any{
		"Close": map[string]any{"2025-08-01": 229.5},
	}}
	a := newTestAgent(t, provider, tool)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 5, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !result.Completed {
		t.Error("expected completed result")
	}
	if result.StepsCount != 2 {
		t.Fatalf("expected 2 steps, got %d", result.StepsCount)
	}
	if tool.calls != 1 {
		t.Errorf("expected exactly one tool invocation, got %d", tool.calls)
	}

	first := result.Steps[0]
	if first.Step != 1 {
		t.Errorf("expected 1-based step numbering, got %d", first.Step)
	}
	if first.ToolCall == nil || first.ToolCall.Name != "get_historical_data" {
		t.Errorf("expected recorded tool call, got %+v", first.ToolCall)
	}
	if first.ToolResult == nil || first.ToolResult.Status != "success" {
		t.Errorf("expected success envelope, got %+v", first.ToolResult)
	}

	last := result.Steps[1]
	if last.ToolCall != nil {
		t.Error("final step must not carry a tool call")
	}
	if last.IsFinalSummary {
		t.Error("natural completion must not be marked as forced summary")
	}
	if result.FinalAnalysis != last.Response {
		t.Error("final analysis must equal the last step's response")
	}
	if result.TotalTokensUsed != 30 {
		t.Errorf("expected 30 total tokens, got %d", result.TotalTokensUsed)
	}
}

func TestAnalyzeForcedSummaryOnBudgetExhaustion(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		historicalCall,
		historicalCall,
		"Forced summary: AAPL is stable.",
	}}
	tool := &stubTool{name: "get_historical_data", result: map[string]any{}}
	a := newTestAgent(t, provider, tool)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 2, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !result.Completed {
		t.Error("expected completed result after forced summary")
	}
	if result.StepsCount != 3 {
		t.Fatalf("expected 2 budget steps plus summary, got %d", result.StepsCount)
	}
	summary := result.Steps[2]
	if !summary.IsFinalSummary {
		t.Error("expected last step marked as forced summary")
	}
	if summary.Step != 3 {
		t.Errorf("expected summary step numbered 3, got %d", summary.Step)
	}
	if result.FinalAnalysis != "Forced summary: AAPL is stable." {
		t.Errorf("unexpected final analysis: %q", result.FinalAnalysis)
	}
}

func TestAnalyzeToolFailureContinuesLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		historicalCall,
		"Data was unavailable, but here is a cautious take.",
	}}
	tool := &stubTool{name: "get_historical_data", err: errors.New("upstream 503")}
	a := newTestAgent(t, provider, tool)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 5, nil)
	if err != nil {
		t.Fatalf("tool failure must not abort the run: %v", err)
	}

	env := result.Steps[0].ToolResult
	if env == nil || env.Status != "error" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
	if env.DataQuality != QualityError {
		t.Errorf("expected error quality, got %q", env.DataQuality)
	}
	if !strings.Contains(env.Error, "upstream 503") {
		t.Errorf("expected original error preserved, got %q", env.Error)
	}
	if !result.Completed {
		t.Error("expected run to complete after tool failure")
	}
}

func TestAnalyzeUnknownToolYieldsErrorEnvelope(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`<tool_call>{"name": "no_such_tool", "parameters": {}}</tool_call>`,
		"Could not fetch data; analysis is limited.",
	}}
	a := newTestAgent(t, provider)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 5, nil)
	if err != nil {
		t.Fatalf("unknown tool must not abort the run: %v", err)
	}

	env := result.Steps[0].ToolResult
	if env == nil || env.Status != "error" {
		t.Fatalf("expected error envelope for unknown tool, got %+v", env)
	}
	if !strings.Contains(env.Error, "no_such_tool") {
		t.Errorf("expected tool name in error, got %q", env.Error)
	}
	if !result.Completed || result.StepsCount != 2 {
		t.Errorf("expected completed 2-step run, got completed=%v steps=%d", result.Completed, result.StepsCount)
	}
}

func TestAnalyzePanickingToolYieldsErrorEnvelope(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		historicalCall,
		"Recovered and wrapped up.",
	}}
	panicky := &panicTool{name: "get_historical_data"}
	a := newTestAgent(t, provider, panicky)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 5, nil)
	if err != nil {
		t.Fatalf("panicking tool must not abort the run: %v", err)
	}
	env := result.Steps[0].ToolResult
	if env == nil || env.Status != "error" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}

type panicTool struct{ name string }

func (t *panicTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{Name: t.name, Description: "panics"}
}

func (t *panicTool) Run(ctx context.Context, params map[string]any) (any, error) {
	panic("boom")
}

func TestAnalyzeEmptyQueryUsesDefault(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"Done. Not investment advice."}}
	a := newTestAgent(t, provider)

	result, err := a.Analyze(context.Background(), "   ", 5, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Query != DefaultQuery {
		t.Errorf("expected default query substitution, got %q", result.Query)
	}
}

func TestAnalyzeProviderErrorAborts(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{historicalCall},
		err:       errors.New("rate limited"),
		failAt:    2,
	}
	tool := &stubTool{name: "get_historical_data", result: map[string]any{}}
	a := newTestAgent(t, provider, tool)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 5, nil)
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
	if result.Completed {
		t.Error("aborted run must not be marked completed")
	}
	if result.StepsCount != 1 {
		t.Errorf("expected partial steps preserved, got %d", result.StepsCount)
	}
}

func TestAnalyzeMaxStepsClamped(t *testing.T) {
	// 12 requested steps clamp to 10; every response calls a tool, so the
	// run needs exactly 10 loop turns plus the forced summary.
	responses := make([]string, 0, 11)
	for i := 0; i < 10; i++ {
		responses = append(responses, historicalCall)
	}
	responses = append(responses, "Summary.")
	provider := &scriptedProvider{responses: responses}
	tool := &stubTool{name: "get_historical_data", result: map[string]any{}}
	a := newTestAgent(t, provider, tool)

	result, err := a.Analyze(context.Background(), "Analyze AAPL", 12, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.StepsCount != 11 {
		t.Errorf("expected 10 clamped steps plus summary, got %d", result.StepsCount)
	}
}

func TestTranscriptAccumulatesToolResults(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		historicalCall,
		"Final take. Not investment advice.",
	}}
	tool := &stubTool{name: "get_historical_data", result: map[string]any{
		"Close": map[string]any{"2025-08-01": 229.5},
	}}
	a := newTestAgent(t, provider, tool)

	if _, err := a.Analyze(context.Background(), "Analyze AAPL", 5, nil); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// system + user query + assistant step 1 + tool result + assistant final
	if len(a.transcript) != 5 {
		t.Fatalf("expected 5 transcript messages, got %d", len(a.transcript))
	}
	toolTurn := a.transcript[3]
	if toolTurn.Role != "user" {
		t.Errorf("tool results must be injected as user turns, got %q", toolTurn.Role)
	}
	if !strings.HasPrefix(toolTurn.Content, "Tool call result:") {
		t.Errorf("unexpected tool turn prefix: %q", toolTurn.Content)
	}
	if !strings.Contains(toolTurn.Content, `"data_quality"`) {
		t.Error("expected envelope fields in tool turn")
	}
}
