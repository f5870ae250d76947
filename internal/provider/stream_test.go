package provider

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"
	"unicode/utf8"
)

// newTestClaude builds a claude backend wired to a fake process so
// inbound lines can be fed directly to handleLine and outbound writes
// inspected in buf.
func newTestClaude(t *testing.T, cfg Config) (*ClaudeBackend, *bytes.Buffer) {
	t.Helper()
	b := NewClaudeBackend(cfg, testLogger())
	buf := &bytes.Buffer{}
	b.mu.Lock()
	b.proc = newFakeProc(buf)
	b.running = true
	b.alive = true
	b.state = StateReady
	b.mu.Unlock()
	return b, buf
}

// TestNewClaudeBackend_GeneratesSessionID verifies a UUID session id
// is minted when the config does not supply one.
func TestNewClaudeBackend_GeneratesSessionID(t *testing.T) {
	b := NewClaudeBackend(Config{}, testLogger())
	id := b.SessionID()
	if id == "" {
		t.Fatal("Expected non-empty session ID")
	}
	uuidPattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidPattern.MatchString(id) {
		t.Errorf("Session ID does not match UUID v4 format: %s", id)
	}
}

// TestNewClaudeBackend_UsesProvidedSessionID verifies a configured id
// is kept.
func TestNewClaudeBackend_UsesProvidedSessionID(t *testing.T) {
	b := NewClaudeBackend(Config{SessionID: "session-12345"}, testLogger())
	if b.SessionID() != "session-12345" {
		t.Errorf("Expected session ID session-12345, got %s", b.SessionID())
	}
}

// TestClaudeBackend_BuildArgs_FirstStart verifies the first launch
// passes --session-id and the streaming flags, not --resume.
func TestClaudeBackend_BuildArgs_FirstStart(t *testing.T) {
	b := NewClaudeBackend(Config{SessionID: "test-uuid"}, testLogger())
	b.mu.Lock()
	args := b.buildArgsLocked(StartOptions{WorkDir: "/ws", Policy: PolicyRestrictedTools})
	b.mu.Unlock()

	for _, want := range []string{"--print", "--output-format", "stream-json", "--include-partial-messages", "--session-id"} {
		if !containsString(args, want) {
			t.Errorf("Args missing %s: %v", want, args)
		}
	}
	if containsString(args, "--resume") {
		t.Error("First start should not contain --resume")
	}
}

// TestClaudeBackend_BuildArgs_ResumeAfterFirstTurn verifies restarts
// resume the conversation once a turn has completed.
func TestClaudeBackend_BuildArgs_ResumeAfterFirstTurn(t *testing.T) {
	b := NewClaudeBackend(Config{SessionID: "test-uuid"}, testLogger())
	b.mu.Lock()
	b.sessionStarted = true
	args := b.buildArgsLocked(StartOptions{Policy: PolicyRestrictedTools})
	b.mu.Unlock()

	if !containsString(args, "--resume") {
		t.Errorf("Expected --resume after first turn, got %v", args)
	}
	if containsString(args, "--session-id") {
		t.Error("Resume start should not contain --session-id")
	}
}

// TestClaudeBackend_BuildArgs_PolicyFlags verifies the policy selects
// between tool restriction and workspace access.
func TestClaudeBackend_BuildArgs_PolicyFlags(t *testing.T) {
	b := NewClaudeBackend(Config{}, testLogger())

	b.mu.Lock()
	restricted := b.buildArgsLocked(StartOptions{WorkDir: "/ws", Policy: PolicyRestrictedTools})
	full := b.buildArgsLocked(StartOptions{WorkDir: "/ws", Policy: PolicyFullWorkspace})
	b.mu.Unlock()

	if !containsString(restricted, "--allowedTools") {
		t.Errorf("Restricted policy should pass --allowedTools: %v", restricted)
	}
	if containsString(restricted, "--add-dir") {
		t.Error("Restricted policy should not grant --add-dir")
	}
	if !containsString(full, "--add-dir") {
		t.Errorf("Full policy should pass --add-dir: %v", full)
	}
}

// TestClaudeBackend_SystemAnnouncement verifies the first capability
// announcement emits Connected and later ones replace the lists
// without a second Connected.
func TestClaudeBackend_SystemAnnouncement(t *testing.T) {
	b, _ := newTestClaude(t, Config{})
	b.mu.Lock()
	b.state = StateStarting
	b.mu.Unlock()

	b.handleLine(`{"type":"system","subtype":"init","model":"opus","slash_commands":["compact"],"tools":["Read","Bash"],"mcp_servers":[{"name":"inkdesk","status":"connected"}]}`)

	events := drainEvents(b)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d: %v", len(events), events)
	}
	if _, ok := events[0].(ConnectedEvent); !ok {
		t.Fatalf("Expected ConnectedEvent, got %T", events[0])
	}
	if b.State() != StateReady {
		t.Errorf("Expected ready state, got %s", b.State())
	}

	caps := b.TryGetCapabilities()
	if caps.Model != "opus" || len(caps.Tools) != 2 || len(caps.Servers) != 1 {
		t.Errorf("Unexpected capabilities: %+v", caps)
	}

	// A later announcement replaces the lists and stays silent.
	b.handleLine(`{"type":"system","subtype":"init","model":"opus","tools":["Read"]}`)
	if events := drainEvents(b); len(events) != 0 {
		t.Fatalf("Second announcement should not emit events, got %v", events)
	}
	caps = b.TryGetCapabilities()
	if len(caps.Tools) != 1 {
		t.Errorf("Tool list should be replaced, got %v", caps.Tools)
	}
}

// TestClaudeBackend_TextDeltaStream verifies a streamed text turn maps
// to its fragments followed by one completion.
func TestClaudeBackend_TextDeltaStream(t *testing.T) {
	b, _ := newTestClaude(t, Config{})

	b.handleLine(`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"text"}}}`)
	b.handleLine(`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}}`)
	b.handleLine(`{"type":"stream_event","event":{"type":"message_stop"}}`)

	events := drainEvents(b)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %v", len(events), events)
	}
	text, ok := events[0].(AssistantTextEvent)
	if !ok || text.Text != "Hi" {
		t.Errorf("Expected AssistantTextEvent{Hi}, got %#v", events[0])
	}
	if _, ok := events[1].(AssistantDoneEvent); !ok {
		t.Errorf("Expected AssistantDoneEvent, got %T", events[1])
	}
}

// TestClaudeBackend_ToolFlow verifies tool invocation and its echoed
// result produce correlated events.
func TestClaudeBackend_ToolFlow(t *testing.T) {
	b, _ := newTestClaude(t, Config{})

	b.handleLine(`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"tool_use","id":"tool-1","name":"Bash","input":{"command":"ls"}}}}`)
	b.handleLine(`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tool-1","content":"file.txt"}]}}`)

	events := drainEvents(b)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %v", len(events), events)
	}
	inv, ok := events[0].(ToolInvokedEvent)
	if !ok || inv.ID != "tool-1" || inv.Name != "Bash" || inv.Input != "ls" {
		t.Errorf("Unexpected ToolInvokedEvent: %#v", events[0])
	}
	res, ok := events[1].(ToolResultEvent)
	if !ok || res.ID != "tool-1" || res.Result != "file.txt" || res.IsError {
		t.Errorf("Unexpected ToolResultEvent: %#v", events[1])
	}
}

// TestClaudeBackend_NonToolResultIgnored verifies only tool_result
// items of a user message map to events, even when other items carry
// a tool_use_id.
func TestClaudeBackend_NonToolResultIgnored(t *testing.T) {
	b, _ := newTestClaude(t, Config{})

	b.handleLine(`{"type":"user","message":{"content":[{"type":"text","tool_use_id":"tool-1","content":"chatter"}]}}`)

	if events := drainEvents(b); len(events) != 0 {
		t.Errorf("Expected no events, got %v", events)
	}
}

// TestClaudeBackend_MalformedLine verifies a garbage line costs
// exactly one ErrorEvent and does not stop later lines from parsing.
func TestClaudeBackend_MalformedLine(t *testing.T) {
	b, _ := newTestClaude(t, Config{})

	b.handleLine(`{not json`)
	b.handleLine(`{"type":"stream_event","event":{"type":"message_stop"}}`)

	events := drainEvents(b)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %v", len(events), events)
	}
	if _, ok := events[0].(ErrorEvent); !ok {
		t.Errorf("Expected ErrorEvent first, got %T", events[0])
	}
	if _, ok := events[1].(AssistantDoneEvent); !ok {
		t.Errorf("Expected AssistantDoneEvent second, got %T", events[1])
	}
}

// TestClaudeBackend_QueueWhileBusy verifies the second message queues
// behind the in-flight turn and dispatches when the result arrives.
func TestClaudeBackend_QueueWhileBusy(t *testing.T) {
	b, buf := newTestClaude(t, Config{})

	b.SendMessage("first")
	b.SendMessage("second")

	lines := writtenLines(buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 dispatched line while busy, got %d", len(lines))
	}
	if b.State() != StateBusy {
		t.Errorf("Expected busy state, got %s", b.State())
	}

	b.handleLine(`{"type":"result","subtype":"success","result":"done","session_id":"sid-1"}`)

	lines = writtenLines(buf)
	if len(lines) != 2 {
		t.Fatalf("Expected second message dispatched after result, got %d lines", len(lines))
	}
	var msg userLine
	if err := json.Unmarshal(lines[1], &msg); err != nil {
		t.Fatalf("Dispatched line is not valid JSON: %v", err)
	}
	if msg.Message.Content != "second" {
		t.Errorf("Expected queued message 'second', got %q", msg.Message.Content)
	}
}

// TestClaudeBackend_ResultError verifies an error result surfaces one
// ErrorEvent and still frees the turn slot.
func TestClaudeBackend_ResultError(t *testing.T) {
	b, _ := newTestClaude(t, Config{})

	b.SendMessage("hello")
	drainEvents(b)
	b.handleLine(`{"type":"result","subtype":"error_during_execution","is_error":true,"result":"budget exceeded"}`)

	events := drainEvents(b)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d: %v", len(events), events)
	}
	errEv, ok := events[0].(ErrorEvent)
	if !ok || errEv.Message != "budget exceeded" {
		t.Errorf("Unexpected event: %#v", events[0])
	}
	if b.State() != StateReady {
		t.Errorf("Turn slot should be free after error result, state %s", b.State())
	}
}

// TestClaudeBackend_StopIdempotent verifies double Stop emits exactly
// one DisconnectedEvent.
func TestClaudeBackend_StopIdempotent(t *testing.T) {
	b, _ := newTestClaude(t, Config{})

	b.Stop()
	b.Stop()

	events := drainEvents(b)
	disconnects := 0
	for _, ev := range events {
		if _, ok := ev.(DisconnectedEvent); ok {
			disconnects++
		}
	}
	if disconnects != 1 {
		t.Errorf("Expected exactly 1 DisconnectedEvent, got %d", disconnects)
	}
	if b.IsRunning() {
		t.Error("Backend should not be running after Stop")
	}
}

// TestClaudeBackend_SendWhileStopped verifies messaging a stopped
// backend reports an error instead of silently dropping the text.
func TestClaudeBackend_SendWhileStopped(t *testing.T) {
	b := NewClaudeBackend(Config{}, testLogger())
	b.SendMessage("hello")

	events := drainEvents(b)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(ErrorEvent); !ok {
		t.Errorf("Expected ErrorEvent, got %T", events[0])
	}
}

// TestClaudeBackend_ResultUpdatesSessionID verifies the session id
// reported by the CLI replaces the locally minted one.
func TestClaudeBackend_ResultUpdatesSessionID(t *testing.T) {
	b, _ := newTestClaude(t, Config{SessionID: "local-id"})
	b.handleLine(`{"type":"result","subtype":"success","result":"ok","session_id":"remote-id"}`)
	if b.SessionID() != "remote-id" {
		t.Errorf("Expected session id remote-id, got %s", b.SessionID())
	}
}

// Helper function to check if a string slice contains a specific string
func containsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// TestClipText verifies truncation lands on rune boundaries so
// multi-byte characters never split at the clip point.
func TestClipText(t *testing.T) {
	if got := clipText("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := clipText("abcdefghij", 8); got != "abcde..." {
		t.Errorf("Expected abcde..., got %q", got)
	}
	// é is two bytes; a byte-index cut at 8 would split it.
	got := clipText("abcdé1234", 8)
	if !utf8.ValidString(got) {
		t.Errorf("Clipped string has a split rune: %q", got)
	}
	if got != "abcd..." {
		t.Errorf("Expected abcd..., got %q", got)
	}
	if got := clipText("héllo", 2); got != "h" {
		t.Errorf("Expected h, got %q", got)
	}
}
