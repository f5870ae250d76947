package provider

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Wire types for the claude CLI's line-delimited streaming-JSON
// protocol (--output-format stream-json --input-format stream-json).
// One JSON object per line in both directions; the top-level "type"
// field discriminates.

// userLine is the outbound framing for one user message.
type userLine struct {
	Type    string          `json:"type"` // always "user"
	Message userLineMessage `json:"message"`
}

type userLineMessage struct {
	Role    string `json:"role"` // always "user"
	Content string `json:"content"`
}

// streamLine is the inbound envelope. Only the fields the session
// layer consumes are declared; everything else is ignored.
type streamLine struct {
	Type    string `json:"type"` // "system", "assistant", "user", "result", "stream_event"
	Subtype string `json:"subtype,omitempty"`

	// system capability announcement
	Model         string          `json:"model,omitempty"`
	SlashCommands []string        `json:"slash_commands,omitempty"`
	Tools         []string        `json:"tools,omitempty"`
	MCPServers    []mcpServerInfo `json:"mcp_servers,omitempty"`

	// assistant / user payloads
	Message *streamInnerMessage `json:"message,omitempty"`

	// stream_event payload (--include-partial-messages)
	Event *streamEvent `json:"event,omitempty"`

	// result terminal marker
	Result    string `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type mcpServerInfo struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

type streamInnerMessage struct {
	Model   string              `json:"model,omitempty"`
	Content []streamContentItem `json:"content"`
}

type streamContentItem struct {
	Type      string          `json:"type"` // "text", "tool_use", "tool_result"
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type streamEvent struct {
	Type         string             `json:"type"` // "content_block_start", "content_block_delta", "message_stop", ...
	Index        int                `json:"index,omitempty"`
	ContentBlock *streamContentItem `json:"content_block,omitempty"`
	Delta        *streamEventDelta  `json:"delta,omitempty"`
}

type streamEventDelta struct {
	Type        string `json:"type"` // "text_delta", "input_json_delta"
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// toolInputBrief extracts a short human-readable description from a
// tool's raw input object: the conventional field for known tools,
// otherwise the first string value found.
func toolInputBrief(name string, input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(input, &m); err != nil {
		return ""
	}
	for _, field := range []string{"command", "file_path", "pattern", "query", "url", "description"} {
		if v, ok := m[field].(string); ok && v != "" {
			return clipText(v, 80)
		}
	}
	for _, v := range m {
		if s, ok := v.(string); ok && s != "" {
			return clipText(s, 80)
		}
	}
	return ""
}

// toolResultText flattens a tool_result content value, which the wire
// delivers either as a plain string or as an array of typed blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// clipText truncates s to at most max bytes, cutting on a rune
// boundary so multi-byte characters never split.
func clipText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	keep := max
	if max > 3 {
		keep = max - 3
	}
	for keep > 0 && !utf8.RuneStart(s[keep]) {
		keep--
	}
	if max <= 3 {
		return s[:keep]
	}
	return s[:keep] + "..."
}
