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

	"golang.org/x/sync/errgroup"
)

// pendingKind classifies an outstanding client request so the reply
// can be routed when its id comes back.
type pendingKind int

const (
	pendingInitialize pendingKind = iota
	pendingModelList
	pendingThreadOpen
	pendingTurnStart
)

func (k pendingKind) String() string {
	switch k {
	case pendingInitialize:
		return "initialize"
	case pendingModelList:
		return "model/list"
	case pendingThreadOpen:
		return "thread/open"
	case pendingTurnStart:
		return "turn/start"
	default:
		return fmt.Sprintf("pending(%d)", int(k))
	}
}

// CodexBackend drives a persistent codex app-server process over
// JSON-RPC 2.0. Unlike the line-stream protocol, every client call is
// correlated by id, and only one turn may be in flight per thread, so
// outbound messages queue behind the busy slot.
type CodexBackend struct {
	log   *slog.Logger
	queue *eventQueue
	guard *startGuard

	mu          sync.Mutex
	cfg         Config
	opts        StartOptions
	state       State
	running     bool
	stopping    bool
	alive       bool // disconnect not yet reported for this process
	announced   bool // Connected emitted for this process
	handshaking bool // between initialize and thread open
	busy        bool
	threadID    string
	model       string
	caps        capabilityState
	outbound    []string
	pending     map[int64]pendingKind
	nextID      int64
	deltaSeen   map[string]bool // item ids that streamed deltas this turn
	proc        *agentProcess

	readers *errgroup.Group
}

// NewCodexBackend creates a codex backend. A thread id in the config
// is resumed on the first start.
func NewCodexBackend(cfg Config, log *slog.Logger) *CodexBackend {
	if cfg.Command == "" {
		cfg.Command = "codex"
	}
	b := &CodexBackend{
		log:       log.With("backend", "codex"),
		queue:     newEventQueue(),
		guard:     newStartGuard("codex"),
		cfg:       cfg,
		threadID:  cfg.ThreadID,
		model:     cfg.Model,
		pending:   make(map[int64]pendingKind),
		deltaSeen: make(map[string]bool),
	}
	b.caps.addModel(cfg.Model)
	return b
}

func (b *CodexBackend) Kind() Kind { return KindCodex }

// SessionID returns the codex thread id, empty until the thread has
// been opened at least once.
func (b *CodexBackend) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threadID
}

func (b *CodexBackend) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *CodexBackend) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start spawns the app-server and begins the initialize handshake.
// Idempotent while running under the same policy; a policy change
// forces a stop first because sandbox mode is fixed per thread open.
func (b *CodexBackend) Start(opts StartOptions) {
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
	args := b.buildArgsLocked()
	env := codexEnv(opts.ConfigRoot)
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
	b.handshaking = true
	b.busy = false
	b.state = StateStarting
	stdout, stderr := proc.stdout, proc.stderr

	g := new(errgroup.Group)
	b.readers = g
	g.Go(func() error { return b.readStdout(stdout) })
	g.Go(func() error { return b.readStderr(stderr) })

	b.sendRequestLocked(pendingInitialize, methodInitialize, initializeParams{
		ClientInfo: clientInfo{Name: "inkdesk", Version: "0.1.0"},
	})
	b.mu.Unlock()

	b.log.Info("agent started", "pid", proc.pid())
}

func (b *CodexBackend) buildArgsLocked() []string {
	args := []string{"app-server"}
	if b.cfg.ToolServer != "" {
		args = append(args, "-c", fmt.Sprintf("mcp_servers.inkdesk.command=%q", b.cfg.ToolServer))
	}
	args = append(args, b.cfg.ExtraArgs...)
	return args
}

// codexEnv builds the child environment, pointing the agent at its
// own config root when one is set.
func codexEnv(configRoot string) []string {
	if configRoot == "" {
		return nil
	}
	return append(os.Environ(), "CODEX_HOME="+configRoot)
}

// Stop terminates the process tree and clears protocol state. The
// thread id survives so the next start resumes the conversation.
// Exactly one DisconnectedEvent per live process.
func (b *CodexBackend) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.stopping = true
	b.running = false
	b.handshaking = false
	b.busy = false
	b.outbound = nil
	b.pending = make(map[int64]pendingKind)
	b.deltaSeen = make(map[string]bool)
	b.state = StateStopped
	proc := b.proc
	readers := b.readers
	b.proc = nil
	b.mu.Unlock()

	b.log.Info("stopping agent")
	if proc != nil {
		proc.kill()
	}
	if readers != nil {
		_ = readers.Wait()
	}
	b.emitDisconnect()
}

func (b *CodexBackend) emitDisconnect() {
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

func (b *CodexBackend) handleUnexpectedExit() {
	b.mu.Lock()
	if b.stopping {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.handshaking = false
	b.busy = false
	b.outbound = nil
	b.pending = make(map[int64]pendingKind)
	b.deltaSeen = make(map[string]bool)
	b.state = StateStopped
	b.proc = nil
	b.mu.Unlock()

	b.log.Warn("agent exited unexpectedly")
	b.emitDisconnect()
}

// SendMessage queues a user message. Dispatch waits for the thread to
// be open and the in-flight turn, if any, to finish.
func (b *CodexBackend) SendMessage(text string) {
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

// dispatchLocked starts a turn with the head of the outbound queue.
// Requires a running process, an open thread, and a free turn slot.
// Must be called with mu held.
func (b *CodexBackend) dispatchLocked() {
	if b.busy || !b.running || b.threadID == "" || len(b.outbound) == 0 {
		return
	}
	text := b.outbound[0]
	b.outbound = b.outbound[1:]

	b.sendRequestLocked(pendingTurnStart, methodTurnStart, turnStartParams{
		ThreadID: b.threadID,
		Input:    []turnInputItem{{Type: "text", Text: text}},
		Model:    b.model,
	})
	b.busy = true
	b.state = StateBusy
}

// clearBusyLocked ends the current turn, forgets which items streamed
// deltas, and dispatches the next queued message. Must be called with
// mu held.
func (b *CodexBackend) clearBusyLocked() {
	b.busy = false
	b.deltaSeen = make(map[string]bool)
	if b.running {
		b.state = StateReady
	}
	b.dispatchLocked()
}

func (b *CodexBackend) TryDequeueEvent() (Event, bool) {
	return b.queue.tryPop()
}

func (b *CodexBackend) TryGetCapabilities() Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps.snapshot(b.opts.Policy)
}

// TrySetModel records the model. No restart is needed: the model is
// carried on each turn/start request.
func (b *CodexBackend) TrySetModel(name string) error {
	if name == "" {
		return fmt.Errorf("model name is empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = name
	b.caps.model = name
	b.caps.addModel(name)
	return nil
}

// sendRequestLocked assigns the next id, registers it in the pending
// table, and writes the request. Must be called with mu held.
func (b *CodexBackend) sendRequestLocked(kind pendingKind, method string, params any) {
	b.nextID++
	id := b.nextID
	raw, err := json.Marshal(params)
	if err != nil {
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("encode %s: %v", method, err)})
		return
	}
	idRaw, _ := json.Marshal(id)
	b.pending[id] = kind
	if !b.writeLocked(rpcMessage{JSONRPC: "2.0", ID: idRaw, Method: method, Params: raw}) {
		delete(b.pending, id)
	}
}

// sendNotifyLocked writes a notification. Must be called with mu held.
func (b *CodexBackend) sendNotifyLocked(method string, params any) {
	var raw json.RawMessage
	if params != nil {
		raw, _ = json.Marshal(params)
	}
	b.writeLocked(rpcMessage{JSONRPC: "2.0", Method: method, Params: raw})
}

// replyLocked answers a server-issued request, echoing its id. Must be
// called with mu held.
func (b *CodexBackend) replyLocked(id json.RawMessage, result any, rerr *rpcError) {
	msg := rpcMessage{JSONRPC: "2.0", ID: id, Error: rerr}
	if rerr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			b.log.Error("encode reply failed", "error", err)
			return
		}
		msg.Result = raw
	}
	b.writeLocked(msg)
}

// writeLocked marshals one message and writes it as a flushed line.
// Must be called with mu held.
func (b *CodexBackend) writeLocked(msg rpcMessage) bool {
	if b.proc == nil {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("encode message: %v", err)})
		return false
	}
	data = append(data, '\n')
	if _, err := b.proc.stdin.Write(data); err != nil {
		b.log.Error("write to agent failed", "error", err)
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("write to agent: %v", err)})
		return false
	}
	return true
}

// readStdout parses one JSON-RPC message per line until the stream
// closes.
func (b *CodexBackend) readStdout(r io.Reader) error {
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
	return scanner.Err()
}

// readStderr drains diagnostics so the pipe never blocks the agent.
func (b *CodexBackend) readStderr(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			b.log.Debug("agent stderr", "line", line)
		}
	}
	return scanner.Err()
}

// handleLine routes one inbound message: server request, notification,
// or a response to one of ours. A malformed line costs exactly one
// ErrorEvent; the reader continues.
func (b *CodexBackend) handleLine(line string) {
	var msg rpcMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		b.log.Warn("unparseable agent output", "error", err, "line", clipText(line, 200))
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("unparseable agent output: %v", err)})
		return
	}

	switch {
	case msg.isRequest():
		b.handleServerRequest(&msg)
	case msg.isNotification():
		b.handleNotification(&msg)
	default:
		b.handleResponse(&msg)
	}
}

// handleResponse correlates a reply with its pending request. Each id
// resolves exactly once; replies to unknown ids are dropped.
func (b *CodexBackend) handleResponse(msg *rpcMessage) {
	var id int64
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		b.log.Debug("response with non-numeric id", "id", string(msg.ID))
		return
	}

	b.mu.Lock()
	kind, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		b.log.Debug("response for unknown request", "id", id)
		return
	}

	if msg.Error != nil {
		b.handleRequestFailure(kind, msg.Error)
		return
	}

	switch kind {
	case pendingInitialize:
		b.handleInitialized()
	case pendingModelList:
		b.handleModelList(msg.Result)
	case pendingThreadOpen:
		b.handleThreadOpened(msg.Result)
	case pendingTurnStart:
		// Turn accepted; progress arrives via notifications.
	}
}

// handleRequestFailure surfaces a request error and unwinds whatever
// state the request held.
func (b *CodexBackend) handleRequestFailure(kind pendingKind, rerr *rpcError) {
	b.log.Warn("request failed", "kind", kind.String(), "code", rerr.Code, "message", rerr.Message)
	b.queue.push(ErrorEvent{Message: fmt.Sprintf("%s failed: %s", kind, rerr.Message)})

	b.mu.Lock()
	switch kind {
	case pendingInitialize, pendingThreadOpen:
		b.handshaking = false
	case pendingTurnStart:
		b.clearBusyLocked()
	}
	b.mu.Unlock()
}

// handleInitialized acknowledges the handshake and fans out the
// capability query and thread open in parallel.
func (b *CodexBackend) handleInitialized() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.sendNotifyLocked(notifyInitialized, nil)
	b.sendRequestLocked(pendingModelList, methodModelList, struct{}{})

	params := threadOpenParams{
		Cwd:            b.opts.WorkDir,
		Model:          b.model,
		SandboxMode:    "read-only",
		ApprovalPolicy: "untrusted",
		Instructions:   "Operate on the document through the workspace tools only. Do not run shell commands or edit files directly.",
	}
	if b.opts.Policy == PolicyFullWorkspace {
		params.SandboxMode = "workspace-write"
		params.ApprovalPolicy = "on-request"
		params.Instructions = "Prefer the workspace tools for document edits. Shell and file access within the workspace is permitted."
	}
	if b.threadID != "" {
		params.ThreadID = b.threadID
		b.sendRequestLocked(pendingThreadOpen, methodThreadResume, params)
	} else {
		b.sendRequestLocked(pendingThreadOpen, methodThreadStart, params)
	}
}

func (b *CodexBackend) handleModelList(result json.RawMessage) {
	var res modelListResult
	if err := json.Unmarshal(result, &res); err != nil {
		b.log.Warn("unparseable model list", "error", err)
		return
	}
	b.mu.Lock()
	adopt := ""
	for _, m := range res.Models {
		b.caps.addModel(m.ID)
		if m.IsDefault && adopt == "" {
			adopt = m.ID
		}
	}
	if adopt == "" && len(res.Models) > 0 {
		adopt = res.Models[0].ID
	}
	if b.model == "" && adopt != "" {
		b.model = adopt
	}
	if b.caps.model == "" {
		b.caps.model = b.model
	}
	b.mu.Unlock()
}

// handleThreadOpened completes the handshake. A reply without a thread
// id is a protocol fault: it is reported and the handshake is left
// unfinished so a restart can retry.
func (b *CodexBackend) handleThreadOpened(result json.RawMessage) {
	var res threadOpenResult
	if err := json.Unmarshal(result, &res); err != nil || res.Thread.ID == "" {
		b.log.Warn("thread open reply missing thread id")
		b.mu.Lock()
		b.handshaking = false
		b.mu.Unlock()
		b.queue.push(ErrorEvent{Message: "agent did not return a thread id"})
		return
	}

	b.mu.Lock()
	b.threadID = res.Thread.ID
	b.handshaking = false
	first := !b.announced
	b.announced = true
	if b.state == StateStarting {
		b.state = StateReady
	}
	b.mu.Unlock()

	b.log.Info("thread open", "thread", res.Thread.ID)
	if first {
		b.queue.push(ConnectedEvent{})
	}

	b.mu.Lock()
	b.dispatchLocked()
	b.mu.Unlock()
}

func (b *CodexBackend) handleNotification(msg *rpcMessage) {
	switch msg.Method {
	case notifyAgentMessageDelta:
		var p agentDeltaParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return
		}
		b.mu.Lock()
		b.deltaSeen[p.ItemID] = true
		b.mu.Unlock()
		if p.Delta != "" {
			b.queue.push(AssistantTextEvent{Text: p.Delta})
		}
	case notifyItemStarted:
		b.handleItemStarted(msg.Params)
	case notifyItemCompleted:
		b.handleItemCompleted(msg.Params)
	case notifyTurnCompleted:
		b.handleTurnCompleted(msg.Params)
	case notifyServerError:
		var p struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(msg.Params, &p) == nil && p.Message != "" {
			b.queue.push(ErrorEvent{Message: p.Message})
		}
	default:
		b.log.Debug("ignoring notification", "method", msg.Method)
	}
}

func (b *CodexBackend) handleItemStarted(params json.RawMessage) {
	var p itemNotifyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	switch p.Item.Type {
	case itemCommandExecution, itemMCPToolCall, itemFileChange:
		b.queue.push(ToolInvokedEvent{
			ID:    p.Item.ID,
			Name:  p.Item.toolName(),
			Input: p.Item.toolInput(),
		})
	}
}

// handleItemCompleted maps finished items to canonical events. A full
// agentMessage is emitted only when no deltas streamed for it, so text
// never doubles up.
func (b *CodexBackend) handleItemCompleted(params json.RawMessage) {
	var p itemNotifyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	switch p.Item.Type {
	case itemAgentMessage:
		b.mu.Lock()
		streamed := b.deltaSeen[p.Item.ID]
		b.mu.Unlock()
		if !streamed && p.Item.Text != "" {
			b.queue.push(AssistantTextEvent{Text: p.Item.Text})
		}
	case itemCommandExecution, itemMCPToolCall, itemFileChange:
		b.queue.push(ToolResultEvent{
			ID:      p.Item.ID,
			Name:    p.Item.toolName(),
			Result:  clipText(p.Item.AggregatedOutput, 400),
			IsError: p.Item.Status == "failed",
		})
	}
}

// handleTurnCompleted closes out the turn and frees the slot.
func (b *CodexBackend) handleTurnCompleted(params json.RawMessage) {
	var p turnCompletedParams
	if err := json.Unmarshal(params, &p); err != nil {
		b.log.Warn("unparseable turn completion", "error", err)
	}

	switch p.Turn.Status {
	case "failed", "interrupted":
		text := "turn " + p.Turn.Status
		if p.Turn.Error != nil && p.Turn.Error.Message != "" {
			text = p.Turn.Error.Message
		}
		b.queue.push(ErrorEvent{Message: text})
	default:
		b.queue.push(AssistantDoneEvent{})
	}

	b.mu.Lock()
	b.clearBusyLocked()
	b.mu.Unlock()
}

// handleServerRequest answers an agent-issued request. Every request
// gets a reply; an unanswered approval stalls the agent mid-turn.
func (b *CodexBackend) handleServerRequest(msg *rpcMessage) {
	b.mu.Lock()
	policy := b.opts.Policy
	b.mu.Unlock()

	switch msg.Method {
	case methodExecApproval:
		var p execApprovalParams
		_ = json.Unmarshal(msg.Params, &p)
		if policy == PolicyFullWorkspace {
			b.log.Info("approving command", "command", clipText(p.Command, 120))
			b.replyInLock(msg.ID, approvalResult{Decision: "approved"})
			return
		}
		b.log.Warn("declining command under restricted policy", "command", clipText(p.Command, 120))
		b.replyInLock(msg.ID, approvalResult{Decision: "denied"})
		b.queue.push(ErrorEvent{Message: fmt.Sprintf("blocked shell command under restricted policy: %s", clipText(p.Command, 120))})
	case methodPatchApproval:
		// Patches go through the workspace tools and are already scoped.
		b.replyInLock(msg.ID, approvalResult{Decision: "approved"})
	case methodUserInput:
		b.replyInLock(msg.ID, userInputResult{Answers: map[string]string{}})
	case methodDynamicTool:
		b.replyInLock(msg.ID, dynamicToolResult{
			Content: []rpcContentItem{{Type: "text", Text: "tool not available"}},
			IsError: true,
		})
	default:
		b.mu.Lock()
		b.replyLocked(msg.ID, nil, &rpcError{Code: rpcCodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", msg.Method)})
		b.mu.Unlock()
	}
}

func (b *CodexBackend) replyInLock(id json.RawMessage, result any) {
	b.mu.Lock()
	b.replyLocked(id, result, nil)
	b.mu.Unlock()
}

var _ Backend = (*CodexBackend)(nil)
