package provider

import (
	"fmt"
	"log/slog"
)

// Kind selects which backend implementation drives the agent process.
type Kind string

const (
	// KindClaude drives the claude CLI over its line-delimited
	// streaming-JSON protocol.
	KindClaude Kind = "claude"
	// KindCodex drives the codex CLI's bidirectional JSON-RPC
	// app-server protocol.
	KindCodex Kind = "codex"
)

// AgentPolicy governs which privileged actions a backend may exercise.
// It is fixed at start time; changing it requires stop-then-restart.
type AgentPolicy string

const (
	// PolicyRestrictedTools allows only the workspace tool surface:
	// no shell commands, no file writes outside tool calls.
	PolicyRestrictedTools AgentPolicy = "restricted"
	// PolicyFullWorkspace grants shell and file access within the
	// working directory.
	PolicyFullWorkspace AgentPolicy = "full"
)

// State is the lifecycle state of a backend instance.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateBusy // exactly one conversation turn in flight
	StateStopped
)

// String returns a short name for logging.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StartOptions carries the per-start parameters shared by both
// backend kinds.
type StartOptions struct {
	WorkDir    string // working directory the agent operates in
	ConfigRoot string // directory for agent-owned configuration
	Policy     AgentPolicy
}

// Config is the per-backend construction configuration.
type Config struct {
	Command    string   // executable name; defaults to the kind's CLI name
	ExtraArgs  []string // appended to every invocation
	Model      string   // initial model selection, may be empty
	SessionID  string   // claude conversation id; generated when empty
	ThreadID   string   // codex thread to resume; empty starts fresh
	ToolServer string   // endpoint of the embedded workspace tool server
}

// Backend owns one external agent process and its protocol state
// machine. All methods are safe for the UI thread; none of them block
// on the remote process. Failures are reported through the event
// queue, never as panics.
type Backend interface {
	// Start spawns the agent process and begins the handshake.
	// Idempotent: a backend already running under the same policy is
	// left alone. Spawn failure emits an ErrorEvent and leaves the
	// backend not started.
	Start(opts StartOptions)

	// Stop terminates the process and its descendants, clears all
	// protocol state, and emits exactly one DisconnectedEvent.
	// Idempotent.
	Stop()

	// SendMessage queues one user message for dispatch. Empty input
	// is ignored; sending while stopped emits an ErrorEvent.
	SendMessage(text string)

	// TryDequeueEvent pops the oldest pending event without blocking.
	TryDequeueEvent() (Event, bool)

	// TryGetCapabilities returns a defensive copy of the current
	// known capabilities. Never blocks on the remote process.
	TryGetCapabilities() Capabilities

	// TrySetModel records the requested model. The claude backend
	// restarts to apply it (model is a launch argument); the codex
	// backend applies it on the next turn.
	TrySetModel(name string) error

	// SessionID returns the conversation identifier: the claude
	// session id or the codex thread id. Empty until known.
	SessionID() string

	Kind() Kind
	IsRunning() bool
	State() State
}

// New creates a backend of the requested kind.
func New(kind Kind, cfg Config, log *slog.Logger) (Backend, error) {
	switch kind {
	case KindClaude:
		return NewClaudeBackend(cfg, log), nil
	case KindCodex:
		return NewCodexBackend(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", kind)
	}
}
