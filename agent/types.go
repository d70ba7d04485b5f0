package agent

import "github.com/finsight/stockagent/llm"

// StepRecord captures everything that happened in one loop iteration:
// the model's full response, token spend, and the tool round-trip if the
// step requested one.
type StepRecord struct {
	Step           int            `json:"step"`
	Response       string         `json:"llm_response"`
	TokenUsage     llm.TokenUsage `json:"token_usage"`
	ToolCall       *Directive     `json:"tool_call,omitempty"`
	ToolResult     *Envelope      `json:"tool_result,omitempty"`
	IsFinalSummary bool           `json:"is_final_summary,omitempty"`
}

// Result is the complete outcome of one analysis run.
type Result struct {
	Query           string       `json:"query"`
	Steps           []StepRecord `json:"steps"`
	FinalAnalysis   string       `json:"final_analysis"`
	Completed       bool         `json:"completed"`
	TotalTokensUsed uint32       `json:"total_tokens_used"`
	StepsCount      int          `json:"steps_count"`
}
