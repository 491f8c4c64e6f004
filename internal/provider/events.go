package provider

import "encoding/json"

// StreamEvent is the permissive envelope for one line of an agent CLI's
// `--output-format stream-json` output (spec §4.2). Fields absent from a
// given line simply zero-value; the parser never raises on an unrecognised
// shape.
type StreamEvent struct {
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Tools         []string        `json:"tools,omitempty"`
	Model         string          `json:"model,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	ToolName      string          `json:"tool_name,omitempty"`
	ToolInput     json.RawMessage `json:"tool_input,omitempty"`
	ToolUseID     string          `json:"tool_use_id,omitempty"`
	CostUSD       float64         `json:"cost_usd,omitempty"`
	DurationMS    float64         `json:"duration_ms,omitempty"`
	DurationAPIMS float64         `json:"duration_api_ms,omitempty"`
	IsError       bool            `json:"is_error,omitempty"`
	NumTurns      int             `json:"num_turns,omitempty"`

	// Delta is populated for content_block_delta streaming chunks.
	Delta *struct {
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
}

// messageContent mirrors the Anthropic-style {content: [{type, text}]}
// message shape used by assistant events.
type messageContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// ParseStreamEvent permissively unmarshals one line into a StreamEvent.
func ParseStreamEvent(line []byte) (StreamEvent, error) {
	var ev StreamEvent
	err := json.Unmarshal(line, &ev)
	return ev, err
}

const (
	EventTypeSystem        = "system"
	EventTypeAssistant     = "assistant"
	EventTypeResult        = "result"
	EventTypeContentDelta  = "content_block_delta"
)
