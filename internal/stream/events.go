package stream

import (
	"encoding/json"
	"time"
)

// Event is one logical event decoded from the agent's stream-json output.
// The set of implementations is closed: SystemInit, UsageReport, AgentText,
// ToolInvocation, ToolResult, StepResult, and Unrecognized.
type Event interface {
	// Kind returns a short identifier used by renderers and logs.
	Kind() string
	isEvent()
}

// SystemInit is emitted once at session start.
type SystemInit struct {
	SessionID  string
	Model      string
	ToolNames  []string
	MCPServers []string
}

// UsageReport carries the usage record attached to one assistant message. The
// stream repeats an assistant message's usage for every content block it
// sends, so consumers should count each MessageID once.
type UsageReport struct {
	MessageID string
	Usage     Usage
}

// AgentText is a text block written by the agent.
type AgentText struct {
	Text string
}

// ToolInvocation is a tool call issued by the agent. StartedAt is the time the
// decoder observed the call.
type ToolInvocation struct {
	ID        string
	Name      string
	Input     json.RawMessage
	StartedAt time.Time
}

// ToolResult is the output of a tool call, sent back to the agent.
// ElapsedMs is zero when the stream does not report it.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
	ElapsedMs int64
}

// StepResult is emitted once when the agent finishes a step.
type StepResult struct {
	Subtype    string
	DurationMs int64
	NumTurns   int
	CostUSD    float64
	IsError    bool
}

// Unrecognized is any well-formed record the decoder does not model.
type Unrecognized struct {
	Type string
	Raw  string
}

// Usage is the token usage reported on an assistant message.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_input_tokens"`
	CacheCreateTotal int `json:"cache_creation_input_tokens"`
	CacheCreation    *struct {
		Ephemeral5m int `json:"ephemeral_5m_input_tokens"`
		Ephemeral1h int `json:"ephemeral_1h_input_tokens"`
	} `json:"cache_creation,omitempty"`
}

// CacheWriteTiers splits cache-creation tokens into the 5 minute and 1 hour
// tiers. When only the flat total is reported it is attributed to the 5 minute
// tier.
func (u Usage) CacheWriteTiers() (fiveMin, oneHour int) {
	if u.CacheCreation != nil {
		return u.CacheCreation.Ephemeral5m, u.CacheCreation.Ephemeral1h
	}
	return u.CacheCreateTotal, 0
}

func (SystemInit) Kind() string     { return "system" }
func (UsageReport) Kind() string    { return "usage" }
func (AgentText) Kind() string      { return "text" }
func (ToolInvocation) Kind() string { return "tool_use" }
func (ToolResult) Kind() string     { return "tool_result" }
func (StepResult) Kind() string     { return "result" }
func (Unrecognized) Kind() string   { return "unrecognized" }

func (SystemInit) isEvent()     {}
func (UsageReport) isEvent()    {}
func (AgentText) isEvent()      {}
func (ToolInvocation) isEvent() {}
func (ToolResult) isEvent()     {}
func (StepResult) isEvent()     {}
func (Unrecognized) isEvent()   {}
