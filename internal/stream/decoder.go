// Package stream decodes the newline-delimited JSON that the claude CLI
// writes in --output-format stream-json mode.
//
// Output arrives from a pseudo-terminal in arbitrary chunks, so the Decoder
// buffers an unterminated trailing fragment between calls and only decodes
// complete lines. Each line is first decoded into a generic envelope (type
// discriminator plus raw payload) and then refined into the closed Event set.
// Lines that are empty or fail to decode are dropped silently.
package stream

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// RecordType is the top-level discriminator of a stream-json record.
type RecordType string

const (
	// RecordSystem is emitted once at session start with init metadata.
	RecordSystem RecordType = "system"
	// RecordAssistant carries agent text and tool calls.
	RecordAssistant RecordType = "assistant"
	// RecordUser carries tool results sent back to the model.
	RecordUser RecordType = "user"
	// RecordResult is emitted once at session end with duration and cost.
	RecordResult RecordType = "result"
)

// Decoder is an incremental line framer and event decoder. It is not safe for
// concurrent use; the supervisor feeds it from a single reader.
type Decoder struct {
	buf strings.Builder
	now func() time.Time
}

// NewDecoder returns a Decoder that stamps tool invocations with time.Now.
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// NewDecoderWithClock returns a Decoder that stamps tool invocations using now.
func NewDecoderWithClock(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now}
}

// Process appends chunk to the internal buffer and returns the events decoded
// from every line completed by it, in line order. The trailing fragment after
// the last newline stays buffered for the next call.
func (d *Decoder) Process(chunk string) []Event {
	if chunk == "" {
		return nil
	}
	d.buf.WriteString(chunk)
	data := d.buf.String()

	last := strings.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}
	complete, rest := data[:last], data[last+1:]
	d.buf.Reset()
	d.buf.WriteString(rest)

	var events []Event
	for _, line := range strings.Split(complete, "\n") {
		events = append(events, d.decodeLine(line)...)
	}
	return events
}

// Flush returns the buffered unterminated text and clears the buffer.
func (d *Decoder) Flush() string {
	rest := d.buf.String()
	d.buf.Reset()
	return rest
}

// FlushEvents decodes the buffered unterminated fragment, if it forms a
// complete record, and clears the buffer. It is called once the producer has
// exited and no further input can arrive.
func (d *Decoder) FlushEvents() []Event {
	return d.decodeLine(d.Flush())
}

// decodeLine cleans one line and decodes it. Failures yield no events.
func (d *Decoder) decodeLine(line string) []Event {
	line = cleanLine(line)
	if line == "" || line[0] != '{' {
		return nil
	}
	events, err := decodeRecord([]byte(line), d.now)
	if err != nil {
		return nil
	}
	return events
}

// cleanLine strips terminal escape sequences and stray control characters and
// trims surrounding whitespace.
func cleanLine(line string) string {
	line = ansi.Strip(line)
	line = strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, line)
	return strings.TrimSpace(line)
}

// envelope is the first decoding stage: the discriminator plus the raw record.
type envelope struct {
	Type RecordType `json:"type"`
}

// systemRecord is a "system" record.
type systemRecord struct {
	Subtype    string            `json:"subtype"`
	SessionID  string            `json:"session_id"`
	Model      string            `json:"model"`
	Tools      []string          `json:"tools"`
	MCPServers []json.RawMessage `json:"mcp_servers"`
}

// messageRecord is an "assistant" or "user" record.
type messageRecord struct {
	Message *struct {
		ID      string         `json:"id"`
		Content []contentBlock `json:"content"`
		Usage   *Usage         `json:"usage"`
	} `json:"message"`
}

// contentBlock is one element of a message's content array. The Type field
// determines which other fields are populated:
//   - "text": Text
//   - "tool_use": ID, Name, Input
//   - "tool_result": ToolUseID, Content, IsError
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// resultRecord is a "result" record.
type resultRecord struct {
	Subtype    string  `json:"subtype"`
	DurationMS int64   `json:"duration_ms"`
	NumTurns   int     `json:"num_turns"`
	CostUSD    float64 `json:"total_cost_usd"`
	LegacyCost float64 `json:"cost_usd"`
	IsError    bool    `json:"is_error"`
}

// decodeRecord decodes one JSON record and refines it into events.
func decodeRecord(data []byte, now func() time.Time) ([]Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case RecordSystem:
		var rec systemRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		if rec.Subtype != "" && rec.Subtype != "init" {
			return []Event{Unrecognized{Type: string(env.Type), Raw: string(data)}}, nil
		}
		return []Event{SystemInit{
			SessionID:  rec.SessionID,
			Model:      rec.Model,
			ToolNames:  rec.Tools,
			MCPServers: serverNames(rec.MCPServers),
		}}, nil

	case RecordAssistant, RecordUser:
		var rec messageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		events := refineMessage(env.Type, rec, now)
		if len(events) == 0 {
			return []Event{Unrecognized{Type: string(env.Type), Raw: string(data)}}, nil
		}
		return events, nil

	case RecordResult:
		var rec resultRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		cost := rec.CostUSD
		if cost == 0 {
			cost = rec.LegacyCost
		}
		return []Event{StepResult{
			Subtype:    rec.Subtype,
			DurationMs: rec.DurationMS,
			NumTurns:   rec.NumTurns,
			CostUSD:    cost,
			IsError:    rec.IsError,
		}}, nil

	default:
		return []Event{Unrecognized{Type: string(env.Type), Raw: string(data)}}, nil
	}
}

// refineMessage turns the content blocks of a message record into events.
func refineMessage(typ RecordType, rec messageRecord, now func() time.Time) []Event {
	if rec.Message == nil {
		return nil
	}
	var events []Event
	if typ == RecordAssistant && rec.Message.Usage != nil {
		events = append(events, UsageReport{MessageID: rec.Message.ID, Usage: *rec.Message.Usage})
	}
	for _, b := range rec.Message.Content {
		switch b.Type {
		case "text":
			if typ == RecordAssistant && b.Text != "" {
				events = append(events, AgentText{Text: b.Text})
			}
		case "tool_use":
			events = append(events, ToolInvocation{
				ID:        b.ID,
				Name:      b.Name,
				Input:     b.Input,
				StartedAt: now(),
			})
		case "tool_result":
			events = append(events, ToolResult{
				ToolUseID: b.ToolUseID,
				Content:   contentString(b.Content),
				IsError:   b.IsError,
			})
		}
	}
	return events
}

// contentString returns tool result content as text. A JSON string is
// unquoted, an array of text blocks is joined by newlines, and anything else is
// returned as raw JSON.
func contentString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Type == "text" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

// serverNames accepts MCP servers reported either as plain names or as
// {"name": ..., "status": ...} objects.
func serverNames(raw []json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		var name string
		if err := json.Unmarshal(r, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	return names
}
