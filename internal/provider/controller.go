package provider

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// WorkspaceGate is what the controller needs to know about the
// document workspace before letting a message through: whether the
// document state is safe to snapshot, and the context preamble to
// prepend.
type WorkspaceGate interface {
	// Root is the workspace directory the agent operates in.
	Root() string
	// Dirty reports unsaved document changes.
	Dirty() bool
	// EditingCell reports an in-progress cell edit.
	EditingCell() bool
	// ContextString renders the document context sent ahead of each
	// user message. May be empty.
	ContextString() string
}

// SessionStore persists conversation identifiers across runs so a
// restarted backend resumes instead of starting fresh.
type SessionStore interface {
	LoadSession(root string, kind Kind) (string, bool)
	SaveSession(root string, kind Kind, id string) error
}

// Sink receives the canonical event stream in order, exactly once per
// event. The transcript implements it.
type Sink interface {
	UserMessage(text string)
	AssistantText(text string)
	AssistantDone()
	ToolInvoked(id, name, input string)
	ToolResult(id, name, result string, isError bool)
	Connected(kind Kind)
	Disconnected(kind Kind)
	SystemNote(text string)
	Error(text string)
	// ClearError drops any stale error display before a new exchange.
	ClearError()
}

// Controller owns the active backend and reconciles both protocols
// into one stream of Sink calls. All methods are called from the UI
// thread; Poll is invoked once per frame and never blocks.
type Controller struct {
	log   *slog.Logger
	gate  WorkspaceGate
	store SessionStore
	sink  Sink

	mu         sync.Mutex
	cfgs       map[Kind]Config
	configRoot string
	kind       Kind
	policy     AgentPolicy
	backends   map[Kind]Backend
	streaming  bool // assistant text open, not yet finalized
	connected  bool // mirror of IsRunning, refreshed each Poll
	lastCaps   Capabilities
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Configs    map[Kind]Config
	Kind       Kind
	Policy     AgentPolicy
	ConfigRoot string // per-provider agent config directory root
	Gate       WorkspaceGate
	Store      SessionStore
	Sink       Sink
	Log        *slog.Logger
}

// NewController builds a controller. Backends are created lazily on
// first use so an unused provider never costs a process.
func NewController(o ControllerOptions) *Controller {
	kind := o.Kind
	if kind == "" {
		kind = KindClaude
	}
	policy := o.Policy
	if policy == "" {
		policy = PolicyRestrictedTools
	}
	cfgs := o.Configs
	if cfgs == nil {
		cfgs = map[Kind]Config{}
	}
	return &Controller{
		log:        o.Log.With("component", "provider"),
		gate:       o.Gate,
		store:      o.Store,
		sink:       o.Sink,
		cfgs:       cfgs,
		configRoot: o.ConfigRoot,
		kind:       kind,
		policy:     policy,
		backends:   make(map[Kind]Backend),
	}
}

// backendLocked returns the backend for the current kind, creating it
// on first use with any persisted session id wired in. Must be called
// with mu held.
func (c *Controller) backendLocked() Backend {
	if b, ok := c.backends[c.kind]; ok {
		return b
	}
	cfg := c.cfgs[c.kind]
	if c.store != nil {
		if id, ok := c.store.LoadSession(c.gate.Root(), c.kind); ok {
			switch c.kind {
			case KindClaude:
				cfg.SessionID = id
			case KindCodex:
				cfg.ThreadID = id
			}
		}
	}
	b, err := New(c.kind, cfg, c.log)
	if err != nil {
		// Unreachable for the known kinds; fall back to claude.
		c.log.Error("backend construction failed", "kind", string(c.kind), "error", err)
		b = NewClaudeBackend(cfg, c.log)
	}
	c.backends[c.kind] = b
	return b
}

func (c *Controller) startOptsLocked() StartOptions {
	return StartOptions{
		WorkDir:    c.gate.Root(),
		ConfigRoot: c.configRoot,
		Policy:     c.policy,
	}
}

// EnsureStarted starts the current backend if it is not already
// running under the current policy. Safe to call every frame.
func (c *Controller) EnsureStarted() {
	c.mu.Lock()
	b := c.backendLocked()
	opts := c.startOptsLocked()
	c.mu.Unlock()
	b.Start(opts)
}

// SwitchProvider stops the active backend and starts the named one.
// Switching to the active provider is a no-op.
func (c *Controller) SwitchProvider(kind Kind) error {
	if kind != KindClaude && kind != KindCodex {
		return fmt.Errorf("unknown provider: %s", kind)
	}
	c.mu.Lock()
	if kind == c.kind {
		c.mu.Unlock()
		return nil
	}
	prev := c.backends[c.kind]
	c.kind = kind
	next := c.backendLocked()
	opts := c.startOptsLocked()
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	next.Start(opts)
	c.sink.SystemNote(fmt.Sprintf("switched provider to %s", kind))
	return nil
}

// SwitchPolicy restarts the active backend under the new policy.
// Policy is fixed at process start on both protocols, so a live
// backend must cycle.
func (c *Controller) SwitchPolicy(policy AgentPolicy) error {
	if policy != PolicyRestrictedTools && policy != PolicyFullWorkspace {
		return fmt.Errorf("unknown policy: %s", policy)
	}
	c.mu.Lock()
	if policy == c.policy {
		c.mu.Unlock()
		return nil
	}
	c.policy = policy
	b := c.backends[c.kind]
	opts := c.startOptsLocked()
	c.mu.Unlock()

	if b != nil && b.IsRunning() {
		b.Stop()
		b.Start(opts)
	}
	c.sink.SystemNote(fmt.Sprintf("agent policy set to %s", policy))
	return nil
}

// SetModel forwards the model change to the active backend.
func (c *Controller) SetModel(name string) error {
	c.mu.Lock()
	b := c.backendLocked()
	c.mu.Unlock()
	if err := b.TrySetModel(name); err != nil {
		return err
	}
	c.sink.SystemNote(fmt.Sprintf("model set to %s", name))
	return nil
}

// SendMessage delivers a user message to the active backend, prefixed
// with the workspace context. The gate refuses when the document has
// unsaved changes or a cell edit is open, because the context string
// would not match what the user sees.
func (c *Controller) SendMessage(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if c.gate.Dirty() {
		c.sink.Error("save the document before messaging the assistant")
		return
	}
	if c.gate.EditingCell() {
		c.sink.Error("finish the cell edit before messaging the assistant")
		return
	}

	c.mu.Lock()
	b := c.backendLocked()
	c.mu.Unlock()

	c.sink.ClearError()
	c.sink.UserMessage(text)

	payload := text
	if ctx := c.gate.ContextString(); ctx != "" {
		payload = ctx + "\n\n" + text
	}
	b.SendMessage(payload)
}

// Poll drains the active backend's event queue in order and applies
// each event to the sink exactly once, then refreshes the capability
// and connectivity mirrors. Called once per UI frame; never blocks.
func (c *Controller) Poll() {
	c.mu.Lock()
	b := c.backends[c.kind]
	kind := c.kind
	c.mu.Unlock()
	if b == nil {
		return
	}

	for {
		ev, ok := b.TryDequeueEvent()
		if !ok {
			break
		}
		c.apply(kind, b, ev)
	}

	caps := b.TryGetCapabilities()
	running := b.IsRunning()
	c.mu.Lock()
	c.lastCaps = caps
	c.connected = running
	c.mu.Unlock()
}

// apply maps one canonical event to sink calls. Assistant completion
// is idempotent: the line protocol can signal the end of a message
// more than once per turn, and only the first one finalizes.
func (c *Controller) apply(kind Kind, b Backend, ev Event) {
	switch e := ev.(type) {
	case ConnectedEvent:
		c.persistSession(kind, b)
		c.sink.Connected(kind)
	case DisconnectedEvent:
		c.finalizeStreaming()
		c.sink.Disconnected(kind)
	case AssistantTextEvent:
		c.mu.Lock()
		c.streaming = true
		c.mu.Unlock()
		c.sink.AssistantText(e.Text)
	case AssistantDoneEvent:
		c.finalizeStreaming()
	case ToolInvokedEvent:
		c.mu.Lock()
		c.streaming = true
		c.mu.Unlock()
		c.sink.ToolInvoked(e.ID, e.Name, e.Input)
	case ToolResultEvent:
		c.sink.ToolResult(e.ID, e.Name, e.Result, e.IsError)
	case ErrorEvent:
		c.finalizeStreaming()
		c.sink.Error(e.Message)
	}
}

// finalizeStreaming closes the open assistant message, if any.
func (c *Controller) finalizeStreaming() {
	c.mu.Lock()
	open := c.streaming
	c.streaming = false
	c.mu.Unlock()
	if open {
		c.sink.AssistantDone()
	}
}

// persistSession records the backend's conversation id so the next
// run resumes it.
func (c *Controller) persistSession(kind Kind, b Backend) {
	if c.store == nil {
		return
	}
	id := b.SessionID()
	if id == "" {
		return
	}
	if err := c.store.SaveSession(c.gate.Root(), kind, id); err != nil {
		c.log.Warn("session persist failed", "error", err)
	}
}

// Capabilities returns the active backend's capability snapshot.
func (c *Controller) Capabilities() Capabilities {
	c.mu.Lock()
	b := c.backends[c.kind]
	policy := c.policy
	c.mu.Unlock()
	if b == nil {
		return Capabilities{Policy: policy}
	}
	return b.TryGetCapabilities()
}

// LastCapabilities returns the snapshot taken by the most recent Poll.
func (c *Controller) LastCapabilities() Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCaps
}

// Connected reports the connectivity flag mirrored by the most recent
// Poll.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// CurrentKind returns the active provider kind.
func (c *Controller) CurrentKind() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// CurrentPolicy returns the active agent policy.
func (c *Controller) CurrentPolicy() AgentPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// Running reports whether the active backend's process is alive.
func (c *Controller) Running() bool {
	c.mu.Lock()
	b := c.backends[c.kind]
	c.mu.Unlock()
	return b != nil && b.IsRunning()
}

// State returns the active backend's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	b := c.backends[c.kind]
	c.mu.Unlock()
	if b == nil {
		return StateNotStarted
	}
	return b.State()
}

// Stop shuts down every backend that was ever started.
func (c *Controller) Stop() {
	c.mu.Lock()
	var all []Backend
	for _, b := range c.backends {
		all = append(all, b)
	}
	c.mu.Unlock()
	for _, b := range all {
		b.Stop()
	}
}
