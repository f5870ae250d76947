// Package transcript accumulates the chat history shown to the user.
// It implements the provider layer's event sink: every canonical event
// lands here exactly once, in order.
package transcript

import (
	"sync"

	"github.com/google/uuid"

	"github.com/inkdesk/inkdesk/internal/provider"
)

// Role identifies who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Entry is one transcript line. Tool entries carry the call fields;
// assistant entries stream until finalized.
type Entry struct {
	ID        string
	Role      Role
	Text      string
	ToolID    string
	ToolName  string
	ToolInput string
	Result    string
	IsError   bool
	Streaming bool
	Done      bool
}

// Transcript is the ordered entry list plus the sticky error display.
// History lives only for the process lifetime.
type Transcript struct {
	mu        sync.Mutex
	entries   []Entry
	lastError string
	connected bool
}

func New() *Transcript {
	return &Transcript{}
}

// UserMessage appends a user entry.
func (t *Transcript) UserMessage(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		ID:   uuid.New().String(),
		Role: RoleUser,
		Text: text,
		Done: true,
	})
}

// AssistantText appends a streamed fragment to the open assistant
// entry, opening one if the previous entry is finalized.
func (t *Transcript) AssistantText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.openAssistantLocked(); e != nil {
		e.Text += text
		return
	}
	t.entries = append(t.entries, Entry{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Text:      text,
		Streaming: true,
	})
}

// AssistantDone finalizes the open assistant entry. Calling it with
// nothing open is a no-op, so repeated completion markers are safe.
func (t *Transcript) AssistantDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.openAssistantLocked(); e != nil {
		e.Streaming = false
		e.Done = true
	}
}

// openAssistantLocked returns the trailing unfinalized assistant
// entry, if any. Must be called with mu held.
func (t *Transcript) openAssistantLocked() *Entry {
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		if e.Role == RoleAssistant {
			if e.Streaming {
				return e
			}
			return nil
		}
		if e.Role == RoleTool {
			continue
		}
		return nil
	}
	return nil
}

// ToolInvoked appends a tool entry awaiting its result.
func (t *Transcript) ToolInvoked(id, name, input string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		ID:        uuid.New().String(),
		Role:      RoleTool,
		ToolID:    id,
		ToolName:  name,
		ToolInput: input,
		Streaming: true,
	})
}

// ToolResult completes the matching tool entry. An unmatched result
// appends a standalone tool entry so nothing is silently dropped.
func (t *Transcript) ToolResult(id, name, result string, isError bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		if e.Role == RoleTool && e.ToolID == id && !e.Done {
			e.Result = result
			e.IsError = isError
			e.Streaming = false
			e.Done = true
			return
		}
	}
	t.entries = append(t.entries, Entry{
		ID:       uuid.New().String(),
		Role:     RoleTool,
		ToolID:   id,
		ToolName: name,
		Result:   result,
		IsError:  isError,
		Done:     true,
	})
}

// Connected records the provider coming up.
func (t *Transcript) Connected(kind provider.Kind) {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	t.SystemNote("connected to " + string(kind))
}

// Disconnected records the provider going away.
func (t *Transcript) Disconnected(kind provider.Kind) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	t.SystemNote("disconnected from " + string(kind))
}

// SystemNote appends a system entry.
func (t *Transcript) SystemNote(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		ID:   uuid.New().String(),
		Role: RoleSystem,
		Text: text,
		Done: true,
	})
}

// Error records a failure in both the entry list and the sticky error
// display.
func (t *Transcript) Error(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = text
	t.entries = append(t.entries, Entry{
		ID:      uuid.New().String(),
		Role:    RoleSystem,
		Text:    text,
		IsError: true,
		Done:    true,
	})
}

// ClearError drops the sticky error display. Entries stay.
func (t *Transcript) ClearError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = ""
}

// LastError returns the sticky error display, empty when cleared.
func (t *Transcript) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

// IsConnected reports the last observed connectivity.
func (t *Transcript) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Entries returns a copy of the transcript.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Clear empties the transcript and the error display.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.lastError = ""
}

var _ provider.Sink = (*Transcript)(nil)
