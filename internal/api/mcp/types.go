// Package mcp implements the Model Context Protocol (MCP) server for the
// OpenMem adapter. It exposes JSON-RPC 2.0 tools that validate input, derive
// conversation and user identifiers, and forward each call as a single HTTP
// request to the remote OpenMem memory API.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/memtensor/openmem-mcp/internal/memos"
)

// ValidationError reports malformed tool arguments. It is raised before any
// identifier derivation or network work happens and surfaces in-band like
// every other handler failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid arguments: " + e.Message
}

// AddMessageArgs contains arguments for the add_message tool.
type AddMessageArgs struct {
	// ConversationFirstMessage anchors the conversation: its hash (together
	// with the configured user ID) is the conversation ID on the remote side.
	ConversationFirstMessage string `json:"conversation_first_message"`

	// Messages are the turns to append. A missing chat_time on any entry is
	// filled with the current wall-clock time when the handler runs.
	Messages []memos.Message `json:"messages"`
}

// SearchMemoryArgs contains arguments for the search_memory tool.
type SearchMemoryArgs struct {
	Query                    string `json:"query"`                        // Natural-language search query (required)
	ConversationFirstMessage string `json:"conversation_first_message"`   // Anchors the conversation scope (required)
	MemoryLimitNumber        int    `json:"memory_limit_number,omitempty"` // Max results; 0 or omitted means the default of 6
}

// GetMessageArgs contains arguments for the get_message tool.
type GetMessageArgs struct {
	ConversationFirstMessage string `json:"conversation_first_message"`
}

// DeleteMemoryArgs contains arguments for the delete_memory tool.
type DeleteMemoryArgs struct {
	MemoryIDs []string `json:"memory_ids"` // Memory IDs to remove (required, non-empty)
}

// UnmarshalJSON handles the case where some MCP clients send array fields
// like "memory_ids" as a JSON-encoded string ("[\"a\",\"b\"]") rather than a
// proper JSON array. Both forms are accepted.
func (a *DeleteMemoryArgs) UnmarshalJSON(data []byte) error {
	type Alias DeleteMemoryArgs
	aux := &struct {
		MemoryIDs json.RawMessage `json:"memory_ids,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.MemoryIDs == nil {
		return nil
	}
	// Try direct array unmarshal first.
	var ids []string
	if err := json.Unmarshal(aux.MemoryIDs, &ids); err == nil {
		a.MemoryIDs = ids
		return nil
	}
	// Fall back: client sent the array as a JSON-encoded string.
	var s string
	if err := json.Unmarshal(aux.MemoryIDs, &s); err != nil {
		return nil // ignore unrecognised formats rather than failing
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &ids)
		a.MemoryIDs = ids
	} else if s != "" {
		// Comma-separated fallback.
		for _, id := range strings.Split(s, ",") {
			if id = strings.TrimSpace(id); id != "" {
				a.MemoryIDs = append(a.MemoryIDs, id)
			}
		}
	}
	return nil
}

// AddFeedbackArgs contains arguments for the add_feedback tool.
type AddFeedbackArgs struct {
	ConversationFirstMessage string   `json:"conversation_first_message"`        // Anchors the conversation (required)
	FeedbackContent          string   `json:"feedback_content"`                  // The feedback text (required)
	AgentID                  string   `json:"agent_id,omitempty"`                // Agent the feedback concerns
	AppID                    string   `json:"app_id,omitempty"`                  // Application the feedback concerns
	FeedbackTime             string   `json:"feedback_time,omitempty"`           // Filled with the current time when absent
	AllowPublic              bool     `json:"allow_public,omitempty"`            // Whether the feedback may be shared
	AllowKnowledgebaseIDs    []string `json:"allow_knowledgebase_ids,omitempty"` // Knowledge bases allowed to ingest it
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request. Successful
// calls carry the remote payload twice: rendered into the text block and
// verbatim in StructuredContent.
type MCPToolCallResult struct {
	Content           []MCPToolCallContent `json:"content"`
	StructuredContent interface{}          `json:"structuredContent,omitempty"`
	IsError           bool                 `json:"isError,omitempty"`
}
