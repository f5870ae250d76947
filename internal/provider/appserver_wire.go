package provider

import (
	"encoding/json"
	"strings"
)

// Wire types for the codex CLI's app-server protocol: JSON-RPC 2.0
// over newline-delimited JSON on stdin/stdout. Requests carry
// id+method+params, notifications omit the id, and the server may
// issue its own requests (approvals) that must always be answered.

// Client-issued methods and notifications.
const (
	methodInitialize   = "initialize"
	notifyInitialized  = "initialized"
	methodModelList    = "model/list"
	methodThreadStart  = "thread/start"
	methodThreadResume = "thread/resume"
	methodTurnStart    = "turn/start"
)

// Server-issued notifications.
const (
	notifyTurnCompleted     = "turn/completed"
	notifyItemStarted       = "item/started"
	notifyItemCompleted     = "item/completed"
	notifyAgentMessageDelta = "item/agentMessage/delta"
	notifyServerError       = "error"
)

// Server-issued requests. Every one of them must receive a reply on
// the same channel; dropping a request stalls the agent.
const (
	methodExecApproval  = "execCommandApproval"
	methodPatchApproval = "applyPatchApproval"
	methodUserInput     = "requestUserInput"
	methodDynamicTool   = "tool/call"
)

// ThreadItem union tags.
const (
	itemAgentMessage     = "agentMessage"
	itemCommandExecution = "commandExecution"
	itemFileChange       = "fileChange"
	itemMCPToolCall      = "mcpToolCall"
	itemReasoning        = "reasoning"
)

// JSON-RPC error codes used in replies.
const (
	rpcCodeMethodNotFound = -32601
)

// rpcMessage is the combined JSON-RPC 2.0 envelope. The id is kept
// raw so server-minted ids of any shape are echoed back verbatim.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// isRequest reports whether the message is a server-initiated request
// (has both a method and an id).
func (m *rpcMessage) isRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// isNotification reports whether the message is a notification
// (method without id).
func (m *rpcMessage) isNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

type initializeParams struct {
	ClientInfo clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// threadOpenParams parameterizes thread/start and thread/resume. The
// sandbox and approval fields carry the effective policy; the
// instructions string is derived from it.
type threadOpenParams struct {
	ThreadID       string `json:"threadId,omitempty"` // resume only
	Cwd            string `json:"cwd,omitempty"`
	Model          string `json:"model,omitempty"`
	SandboxMode    string `json:"sandboxMode,omitempty"`
	ApprovalPolicy string `json:"approvalPolicy,omitempty"`
	Instructions   string `json:"instructions,omitempty"`
}

type threadOpenResult struct {
	Thread struct {
		ID string `json:"id"`
	} `json:"thread"`
}

type modelListResult struct {
	Models []modelInfo `json:"models"`
}

type modelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

type turnStartParams struct {
	ThreadID string          `json:"threadId"`
	Input    []turnInputItem `json:"input"`
	Model    string          `json:"model,omitempty"`
}

type turnInputItem struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

type turnCompletedParams struct {
	Turn struct {
		Status string `json:"status"` // "completed", "failed", "interrupted"
		Error  *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"turn"`
}

type itemNotifyParams struct {
	Item threadItem `json:"item"`
}

// threadItem is the item union; the type tag selects which fields are
// meaningful.
type threadItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// agentMessage
	Text string `json:"text,omitempty"`

	// commandExecution
	Command          string `json:"command,omitempty"`
	AggregatedOutput string `json:"aggregatedOutput,omitempty"`
	Status           string `json:"status,omitempty"` // "completed", "failed"

	// mcpToolCall
	Server string `json:"server,omitempty"`
	Tool   string `json:"tool,omitempty"`

	// fileChange
	Changes []struct {
		Path string `json:"path"`
		Kind string `json:"kind,omitempty"`
	} `json:"changes,omitempty"`
}

// toolName derives a display name for a tool-shaped item.
func (it *threadItem) toolName() string {
	switch it.Type {
	case itemCommandExecution:
		return "shell"
	case itemMCPToolCall:
		if it.Server != "" {
			return it.Server + "." + it.Tool
		}
		return it.Tool
	case itemFileChange:
		return "file-change"
	default:
		return it.Type
	}
}

// toolInput derives a brief input description for a tool-shaped item.
func (it *threadItem) toolInput() string {
	switch it.Type {
	case itemCommandExecution:
		return clipText(it.Command, 80)
	case itemFileChange:
		var paths []string
		for _, c := range it.Changes {
			paths = append(paths, c.Path)
		}
		return clipText(strings.Join(paths, ", "), 80)
	default:
		return ""
	}
}

type agentDeltaParams struct {
	ItemID string `json:"itemId"`
	Delta  string `json:"delta"`
}

type execApprovalParams struct {
	Command string `json:"command,omitempty"`
	Cwd     string `json:"cwd,omitempty"`
}

// approvalResult answers an approval request.
type approvalResult struct {
	Decision string `json:"decision"` // "approved" or "denied"
}

// userInputResult answers a requestUserInput request with no content.
type userInputResult struct {
	Answers map[string]string `json:"answers"`
}

// dynamicToolResult is the fixed reply to dynamic tool-call requests,
// which this client does not service.
type dynamicToolResult struct {
	Content []rpcContentItem `json:"content"`
	IsError bool             `json:"isError"`
}

type rpcContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
