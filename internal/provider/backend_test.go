package provider

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nopWriteCloser adapts a buffer to the stdin handle of a fake
// process.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// newFakeProc builds an agentProcess without a real subprocess so
// protocol handling can be exercised in isolation. Writes land in w;
// waitDone is pre-closed so kill() never blocks.
func newFakeProc(w io.Writer) *agentProcess {
	done := make(chan struct{})
	close(done)
	return &agentProcess{
		stdin:    nopWriteCloser{w},
		waitDone: done,
	}
}

// drainEvents pops every queued event.
func drainEvents(b Backend) []Event {
	var out []Event
	for {
		ev, ok := b.TryDequeueEvent()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// writtenLines splits the fake stdin buffer into its flushed lines.
func writtenLines(buf *bytes.Buffer) [][]byte {
	var lines [][]byte
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// TestNew_KnownKinds verifies the factory covers both backend kinds
// and rejects anything else.
func TestNew_KnownKinds(t *testing.T) {
	if b, err := New(KindClaude, Config{}, testLogger()); err != nil || b.Kind() != KindClaude {
		t.Fatalf("New(claude) = %v, %v", b, err)
	}
	if b, err := New(KindCodex, Config{}, testLogger()); err != nil || b.Kind() != KindCodex {
		t.Fatalf("New(codex) = %v, %v", b, err)
	}
	if _, err := New(Kind("gemini"), Config{}, testLogger()); err == nil {
		t.Fatal("Expected error for unknown kind")
	}
}

// TestState_String verifies every state has a distinct short name.
func TestState_String(t *testing.T) {
	states := []State{StateNotStarted, StateStarting, StateReady, StateBusy, StateStopped}
	seen := make(map[string]bool)
	for _, s := range states {
		name := s.String()
		if name == "" || seen[name] {
			t.Errorf("State %d has empty or duplicate name %q", int(s), name)
		}
		seen[name] = true
	}
}
