package transcript

import (
	"testing"

	"github.com/inkdesk/inkdesk/internal/provider"
)

// TestTranscript_StreamingAssembly verifies fragments accumulate into
// one assistant entry that finalizes once.
func TestTranscript_StreamingAssembly(t *testing.T) {
	tr := New()
	tr.UserMessage("hi")
	tr.AssistantText("Hel")
	tr.AssistantText("lo")
	tr.AssistantDone()
	tr.AssistantDone()

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d: %v", len(entries), entries)
	}
	asst := entries[1]
	if asst.Role != RoleAssistant || asst.Text != "Hello" {
		t.Errorf("Unexpected assistant entry: %+v", asst)
	}
	if asst.Streaming || !asst.Done {
		t.Errorf("Assistant entry should be finalized: %+v", asst)
	}
}

// TestTranscript_NewMessageAfterFinalize verifies a fragment arriving
// after finalization opens a fresh entry.
func TestTranscript_NewMessageAfterFinalize(t *testing.T) {
	tr := New()
	tr.AssistantText("first")
	tr.AssistantDone()
	tr.AssistantText("second")

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[1].Text != "second" || !entries[1].Streaming {
		t.Errorf("Unexpected second entry: %+v", entries[1])
	}
}

// TestTranscript_ToolCorrelation verifies a result lands on the
// invocation entry with the same tool id, across an interleaved
// assistant stream.
func TestTranscript_ToolCorrelation(t *testing.T) {
	tr := New()
	tr.ToolInvoked("tool-1", "Bash", "ls")
	tr.AssistantText("Looking...")
	tr.ToolResult("tool-1", "", "file.txt", false)

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	tool := entries[0]
	if tool.ToolName != "Bash" || tool.Result != "file.txt" || !tool.Done || tool.IsError {
		t.Errorf("Unexpected tool entry: %+v", tool)
	}
}

// TestTranscript_UnmatchedToolResult verifies a result without a prior
// invocation still shows up.
func TestTranscript_UnmatchedToolResult(t *testing.T) {
	tr := New()
	tr.ToolResult("tool-9", "shell", "output", true)

	entries := tr.Entries()
	if len(entries) != 1 || entries[0].Result != "output" || !entries[0].IsError {
		t.Errorf("Unexpected entries: %v", entries)
	}
}

// TestTranscript_StickyError verifies the error display persists until
// cleared while the entries remain.
func TestTranscript_StickyError(t *testing.T) {
	tr := New()
	tr.Error("agent exploded")
	if tr.LastError() != "agent exploded" {
		t.Errorf("Expected sticky error, got %q", tr.LastError())
	}

	tr.ClearError()
	if tr.LastError() != "" {
		t.Errorf("Expected cleared error, got %q", tr.LastError())
	}
	if len(tr.Entries()) != 1 {
		t.Error("Clearing the display must not drop the entry")
	}
}

// TestTranscript_Connectivity verifies connect and disconnect flip the
// flag and leave system notes.
func TestTranscript_Connectivity(t *testing.T) {
	tr := New()
	tr.Connected(provider.KindClaude)
	if !tr.IsConnected() {
		t.Error("Expected connected")
	}
	tr.Disconnected(provider.KindClaude)
	if tr.IsConnected() {
		t.Error("Expected disconnected")
	}
	if len(tr.Entries()) != 2 {
		t.Errorf("Expected 2 system notes, got %d", len(tr.Entries()))
	}
}

// TestTranscript_Clear verifies Clear empties everything.
func TestTranscript_Clear(t *testing.T) {
	tr := New()
	tr.UserMessage("hi")
	tr.Error("boom")
	tr.Clear()

	if len(tr.Entries()) != 0 || tr.LastError() != "" {
		t.Error("Clear should empty entries and the error display")
	}
}
