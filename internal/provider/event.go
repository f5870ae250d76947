package provider

import "sync"

// Event is a single observable occurrence reported by a backend.
// Events are produced by the backend's reader goroutines and consumed
// exactly once by the UI thread via TryDequeueEvent.
type Event interface {
	isEvent()
}

// ConnectedEvent is emitted once per backend start, after the
// protocol handshake has completed.
type ConnectedEvent struct{}

// DisconnectedEvent is emitted exactly once when the agent process
// goes away, whether by explicit Stop or an unexpected exit.
type DisconnectedEvent struct{}

// AssistantTextEvent carries one streamed fragment of assistant output.
type AssistantTextEvent struct {
	Text string
}

// AssistantDoneEvent marks the end of an assistant message.
type AssistantDoneEvent struct{}

// ToolInvokedEvent is emitted when the agent starts a tool call.
type ToolInvokedEvent struct {
	ID    string // tool call id, used to correlate the later result
	Name  string
	Input string // brief human-readable description of the input
}

// ToolResultEvent is emitted when a tool call finishes.
type ToolResultEvent struct {
	ID      string
	Name    string // may be empty when the wire only carries the id
	Result  string
	IsError bool
}

// ErrorEvent carries a backend failure the user should see. The
// backend keeps running unless the event was preceded by a disconnect.
type ErrorEvent struct {
	Message string
}

func (ConnectedEvent) isEvent()     {}
func (DisconnectedEvent) isEvent()  {}
func (AssistantTextEvent) isEvent() {}
func (AssistantDoneEvent) isEvent() {}
func (ToolInvokedEvent) isEvent()   {}
func (ToolResultEvent) isEvent()    {}
func (ErrorEvent) isEvent()         {}

// eventQueue is the multi-producer, single-consumer queue between a
// backend's reader goroutines and the UI poll. Push never blocks and
// never drops; tryPop never blocks.
type eventQueue struct {
	mu    sync.Mutex
	items []Event
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, e)
}

// tryPop removes and returns the oldest queued event, if any.
func (q *eventQueue) tryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
