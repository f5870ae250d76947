package provider

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ClaudeBackend drives a persistent claude CLI process over its
// line-delimited streaming-JSON protocol. The wire has no request
// identifiers; conversational state is inferred from each line's
// "type" discriminator.
//
// The protocol itself imposes no turn gate; the CLI serializes turns
// internally. An explicit single-slot in-flight marker is still kept
// here, so at most one user line is in flight and the rest wait in
// the outbound queue.
type ClaudeBackend struct {
	log   *slog.Logger
	queue *eventQueue
	guard *startGuard

	mu             sync.Mutex
	cfg            Config
	opts           StartOptions
	state          State
	running        bool
	stopping       bool
	alive          bool // disconnect not yet reported for this process
	announced      bool // Connected emitted for this process
	busy           bool
	sessionStarted bool // at least one turn completed; restarts resume
	sessionID      string
	model          string
	caps           capabilityState
	outbound       []string
	proc           *agentProcess

	wg sync.WaitGroup
}

// NewClaudeBackend creates a claude backend. The session id is
// generated when the config does not supply one.
func NewClaudeBackend(cfg Config, log *slog.Logger) *ClaudeBackend {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	b := &ClaudeBackend{
		log:       log.With("backend", "claude"),
		queue:     newEventQueue(),
		guard:     newStartGuard("claude"),
		cfg:       cfg,
		sessionID: cfg.SessionID,
		model:     cfg.Model,
	}
	b.caps.addModel(cfg.Model)
	return b
}

func (b *ClaudeBackend) Kind() Kind { return KindClaude }

// SessionID returns the claude conversation id.
func (b *ClaudeBackend) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

func (b *ClaudeBackend) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *ClaudeBackend) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start spawns the claude CLI. Idempotent while running under the
// same policy; a policy change forces a stop first.
func (b *ClaudeBackend) Start(opts StartOptions) {
	b.mu.Lock()
	if b.running {
		if b.opts.Policy == opts.Policy {
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
		b.Stop()
		b.mu.Lock()
	}
	args := b.buildArgsLocked(opts)
	env := agentEnv(opts.ConfigRoot)
	command := b.cfg.Command
	workDir := opts.WorkDir
	b.mu.Unlock()

	done, err := b.guard.allow()
	if err != nil {
		b.queue.push(ErrorEvent{Message: err.Error()})
		return
	}

	b.log.Info("starting agent", "command", command, "policy", string(opts.Policy))
	proc, err := startAgentProcess(command, args, workDir, env)
	done(err == nil)
	if err != nil {
		b.log.Error("agent failed to start", "error", err)
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("failed to start %s: %v", command, err)})
		return
	}

	b.mu.Lock()
	b.proc = proc
	b.opts = opts
	b.running = true
	b.stopping = false
	b.alive = true
	b.announced = false
	b.busy = false
	b.state = StateStarting
	stdout, stderr := proc.stdout, proc.stderr
	b.mu.Unlock()

	b.log.Info("agent started", "pid", proc.pid())

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.readStdout(stdout)
	}()
	go func() {
		defer b.wg.Done()
		b.readStderr(stderr)
	}()
}

// buildArgsLocked assembles the CLI arguments for the given policy.
// Must be called with mu held.
func (b *ClaudeBackend) buildArgsLocked(opts StartOptions) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--input-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
	}
	if b.sessionStarted {
		args = append(args, "--resume", b.sessionID)
	} else {
		args = append(args, "--session-id", b.sessionID)
	}
	if b.model != "" {
		args = append(args, "--model", b.model)
	}
	switch opts.Policy {
	case PolicyFullWorkspace:
		args = append(args, "--add-dir", opts.WorkDir)
	default:
		args = append(args, "--allowedTools", "mcp__inkdesk__*")
	}
	args = append(args, b.cfg.ExtraArgs...)
	return args
}

// agentEnv builds the child environment, pointing the agent at its
// own config root when one is set.
func agentEnv(configRoot string) []string {
	if configRoot == "" {
		return nil
	}
	return append(os.Environ(), "CLAUDE_CONFIG_DIR="+configRoot)
}

// Stop terminates the process tree and clears protocol state. Exactly
// one DisconnectedEvent is emitted per live process, no matter how
// many times Stop is called.
func (b *ClaudeBackend) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.stopping = true
	b.running = false
	b.busy = false
	b.outbound = nil
	b.state = StateStopped
	proc := b.proc
	b.proc = nil
	b.mu.Unlock()

	b.log.Info("stopping agent")
	if proc != nil {
		proc.kill()
	}
	b.wg.Wait()
	b.emitDisconnect()
}

// emitDisconnect reports the end of the current process exactly once.
func (b *ClaudeBackend) emitDisconnect() {
	b.mu.Lock()
	if !b.alive {
		b.mu.Unlock()
		return
	}
	b.alive = false
	b.announced = false
	b.mu.Unlock()
	b.queue.push(DisconnectedEvent{})
}

// handleUnexpectedExit is invoked by the stdout reader when the
// stream closes without Stop having been called.
func (b *ClaudeBackend) handleUnexpectedExit() {
	b.mu.Lock()
	if b.stopping {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.busy = false
	b.outbound = nil
	b.state = StateStopped
	b.proc = nil
	b.mu.Unlock()

	b.log.Warn("agent exited unexpectedly")
	b.emitDisconnect()
}

// SendMessage queues a user message and dispatches it if no turn is
// in flight.
func (b *ClaudeBackend) SendMessage(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		b.queue.push(ErrorEvent{Message: "agent is not running"})
		return
	}
	b.outbound = append(b.outbound, text)
	b.dispatchLocked()
}

// dispatchLocked writes the head of the outbound queue as one flushed
// line and marks the turn slot occupied. Must be called with mu held.
func (b *ClaudeBackend) dispatchLocked() {
	if b.busy || !b.running || len(b.outbound) == 0 {
		return
	}
	text := b.outbound[0]
	b.outbound = b.outbound[1:]

	line := userLine{Type: "user", Message: userLineMessage{Role: "user", Content: text}}
	data, err := json.Marshal(line)
	if err != nil {
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("encode message: %v", err)})
		return
	}
	data = append(data, '\n')
	if _, err := b.proc.stdin.Write(data); err != nil {
		b.log.Error("write to agent failed", "error", err)
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("write to agent: %v", err)})
		return
	}
	b.busy = true
	b.state = StateBusy
}

// clearBusyLocked releases the turn slot and dispatches the next
// queued message, if any. Must be called with mu held.
func (b *ClaudeBackend) clearBusyLocked() {
	b.busy = false
	if b.running {
		b.state = StateReady
	}
	b.dispatchLocked()
}

func (b *ClaudeBackend) TryDequeueEvent() (Event, bool) {
	return b.queue.tryPop()
}

func (b *ClaudeBackend) TryGetCapabilities() Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps.snapshot(b.opts.Policy)
}

// TrySetModel records the model and restarts the agent when running:
// the model is a process-launch argument on this protocol.
func (b *ClaudeBackend) TrySetModel(name string) error {
	if name == "" {
		return fmt.Errorf("model name is empty")
	}
	b.mu.Lock()
	b.model = name
	b.caps.model = name
	b.caps.addModel(name)
	wasRunning := b.running
	opts := b.opts
	b.mu.Unlock()

	if wasRunning {
		b.Stop()
		b.Start(opts)
	}
	return nil
}

// readStdout parses one JSON object per line until the stream closes.
func (b *ClaudeBackend) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b.handleLine(line)
	}
	b.handleUnexpectedExit()
}

// readStderr drains diagnostics so the pipe never blocks the agent.
func (b *ClaudeBackend) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			b.log.Debug("agent stderr", "line", line)
		}
	}
}

// handleLine dispatches one inbound line by its type discriminator.
// A malformed line costs exactly one ErrorEvent; the reader continues.
func (b *ClaudeBackend) handleLine(line string) {
	var msg streamLine
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		b.log.Warn("unparseable agent output", "error", err, "line", clipText(line, 200))
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("unparseable agent output: %v", err)})
		return
	}

	switch msg.Type {
	case "system":
		b.handleSystem(&msg)
	case "stream_event":
		if msg.Event != nil {
			b.handleStreamEvent(msg.Event)
		}
	case "user":
		b.handleToolResults(&msg)
	case "assistant":
		// Covers turns that skip streaming deltas entirely.
		b.queue.push(AssistantDoneEvent{})
	case "result":
		b.handleResult(&msg)
	default:
		b.log.Debug("ignoring message", "type", msg.Type)
	}
}

// handleSystem replaces the known capability lists from a capability
// announcement and reports the connection on the first one.
func (b *ClaudeBackend) handleSystem(msg *streamLine) {
	b.mu.Lock()
	if msg.Model != "" {
		if b.caps.model == "" {
			b.caps.model = msg.Model
		}
		b.caps.addModel(msg.Model)
	}
	b.caps.commands = append([]string(nil), msg.SlashCommands...)
	b.caps.tools = append([]string(nil), msg.Tools...)
	b.caps.servers = b.caps.servers[:0]
	for _, s := range msg.MCPServers {
		b.caps.servers = append(b.caps.servers, s.Name)
	}
	first := !b.announced
	b.announced = true
	if b.state == StateStarting {
		b.state = StateReady
	}
	b.mu.Unlock()

	if first {
		b.queue.push(ConnectedEvent{})
	}
}

func (b *ClaudeBackend) handleStreamEvent(ev *streamEvent) {
	switch ev.Type {
	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			b.queue.push(ToolInvokedEvent{
				ID:    ev.ContentBlock.ID,
				Name:  ev.ContentBlock.Name,
				Input: toolInputBrief(ev.ContentBlock.Name, ev.ContentBlock.Input),
			})
		}
	case "content_block_delta":
		if ev.Delta != nil && ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
			b.queue.push(AssistantTextEvent{Text: ev.Delta.Text})
		}
	case "message_stop":
		b.queue.push(AssistantDoneEvent{})
	}
}

// handleToolResults maps each tool_result item of an inbound user
// message (the CLI's tool-result echo) to one ToolResultEvent.
func (b *ClaudeBackend) handleToolResults(msg *streamLine) {
	if msg.Message == nil {
		return
	}
	for _, item := range msg.Message.Content {
		if item.Type != "tool_result" {
			continue
		}
		b.queue.push(ToolResultEvent{
			ID:      item.ToolUseID,
			Result:  clipText(toolResultText(item.Content), 400),
			IsError: item.IsError,
		})
	}
}

// handleResult closes out the whole exchange and frees the turn slot.
func (b *ClaudeBackend) handleResult(msg *streamLine) {
	if msg.IsError {
		text := msg.Result
		if text == "" {
			text = "agent reported an error"
		}
		b.queue.push(ErrorEvent{Message: text})
	} else {
		b.queue.push(AssistantDoneEvent{})
	}

	b.mu.Lock()
	b.sessionStarted = true
	if msg.SessionID != "" {
		b.sessionID = msg.SessionID
	}
	b.clearBusyLocked()
	b.mu.Unlock()
}

var _ Backend = (*ClaudeBackend)(nil)
