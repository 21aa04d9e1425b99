package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memtensor/openmem-mcp/internal/config"
	"github.com/memtensor/openmem-mcp/internal/identity"
	"github.com/memtensor/openmem-mcp/internal/logging"
	"github.com/memtensor/openmem-mcp/internal/memos"
)

// protocolVersion is the MCP protocol revision this server speaks.
const protocolVersion = "2024-11-05"

// defaultMemoryLimit is the search result cap used when memory_limit_number
// is omitted or zero.
const defaultMemoryLimit = 6

// Dispatcher is the subset of *memos.Client the server needs. Handler tests
// substitute a fake so no real HTTP happens.
type Dispatcher interface {
	Send(ctx context.Context, path string, body any) (any, error)
}

// Server implements the Model Context Protocol for the OpenMem adapter.
// It routes JSON-RPC 2.0 requests, validates tool arguments, derives the
// conversation and effective-user identifiers, and forwards each tool call
// as exactly one HTTP request to the remote OpenMem API.
//
// Handlers only read the immutable Config and per-invocation locals, so any
// number of requests may be in flight concurrently without locking.
type Server struct {
	config    *config.Config
	client    Dispatcher
	logger    *logging.Logger
	version   string
	sessionID string // unique ID generated once per server lifetime
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithClient injects the dispatcher used for outbound OpenMem calls. When
// absent, NewServer builds a real *memos.Client from the config.
func WithClient(d Dispatcher) ServerOption {
	return func(s *Server) {
		s.client = d
	}
}

// WithLogger injects a logger; a stderr console logger is used otherwise.
func WithLogger(l *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithVersion sets the version string reported in the initialize handshake.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates an MCP server bound to cfg. The config is read-only from
// here on: every handler sees the same snapshot, and missing credentials
// surface per-invocation rather than at construction time.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		version:   "dev",
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New(nil, "info")
	}
	s.logger = s.logger.Sub("mcp")
	if s.client == nil {
		s.client = memos.NewClient(cfg.BaseURL, cfg.APIKey, memos.WithLogger(s.logger))
	}
	s.logger.Info().Str("session_id", s.sessionID).Msg("server ready")
	return s
}

// Config returns the configuration the server was built with.
func (s *Server) Config() *config.Config {
	return s.config
}

// SessionID returns the ID generated for this server's lifetime.
func (s *Server) SessionID() string {
	return s.sessionID
}

// HandleRequest processes a single JSON-RPC 2.0 request and returns the
// serialized response. Notifications return nil bytes: the transport must
// not write anything for them.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	// Notifications ("initialized" and everything under notifications/) are
	// acknowledged by silence.
	if req.Method == "initialized" || strings.HasPrefix(req.Method, "notifications/") {
		return nil, nil
	}

	var result interface{}
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "ping":
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}

	return s.successResponse(req.ID, result)
}

func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPInitializeParams
	if err := s.unmarshalParams(params, &p); err == nil && p.ClientInfo.Name != "" {
		s.logger.Info().
			Str("client", p.ClientInfo.Name).
			Str("client_version", p.ClientInfo.Version).
			Msg("client connected")
	}
	return MCPInitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "openmem-mcp",
			Version: s.version,
		},
	}, nil
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the matching tool
// handler and wraps the outcome in the MCP content envelope. Handler
// failures of every kind become an IsError result — they never propagate as
// JSON-RPC faults.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	callID := uuid.New().String()
	start := time.Now()

	result, err := s.callTool(ctx, p.Name, p.Arguments)

	evt := s.logger.Info()
	if err != nil {
		evt = s.logger.Warn().Str("error_kind", errorKind(err)).Str("error", err.Error())
	}
	evt.Str("session_id", s.sessionID).
		Str("call_id", callID).
		Str("tool", p.Name).
		Dur("duration", time.Since(start)).
		Msg("tool call")

	if err != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}

	text, merr := json.Marshal(result)
	if merr != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", merr)
	}

	return &MCPToolCallResult{
		Content:           []MCPToolCallContent{{Type: "text", Text: string(text)}},
		StructuredContent: result,
	}, nil
}

// callTool resolves the named tool and runs the shared invocation sequence:
// credentials and channel are verified up front, then the tool handler
// validates its arguments, derives identifiers, and dispatches exactly one
// outbound request.
func (s *Server) callTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	var handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

	switch name {
	case "add_message":
		handler = s.handleAddMessage
	case "search_memory":
		handler = s.handleSearchMemory
	case "get_message":
		handler = s.handleGetMessage
	case "delete_memory":
		handler = s.handleDeleteMemory
	case "add_feedback":
		handler = s.handleAddFeedback
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	return handler(ctx, args)
}

func (s *Server) handleAddMessage(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a AddMessageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ConversationFirstMessage == "" {
		return nil, &ValidationError{Message: "conversation_first_message is required"}
	}
	if len(a.Messages) == 0 {
		return nil, &ValidationError{Message: "messages must contain at least one entry"}
	}

	// Missing timestamps are filled at the moment the handler runs — never a
	// client-supplied default, never a cached value.
	now := time.Now().Format(memos.ChatTimeLayout)
	messages := make([]memos.Message, len(a.Messages))
	for i, m := range a.Messages {
		if m.Role == "" || m.Content == "" {
			return nil, &ValidationError{Message: fmt.Sprintf("messages[%d]: role and content are required", i)}
		}
		if m.ChatTime == "" {
			m.ChatTime = now
		}
		messages[i] = m
	}

	req := &memos.AddMessageRequest{
		ConversationID: identity.ConversationID(s.config.UserID, a.ConversationFirstMessage),
		UserID:         identity.EffectiveUserID(s.config.UserID, s.config.Channel),
		Messages:       messages,
	}
	return s.client.Send(ctx, memos.PathAddMessage, req)
}

func (s *Server) handleSearchMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a SearchMemoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Query == "" {
		return nil, &ValidationError{Message: "query is required"}
	}
	if a.ConversationFirstMessage == "" {
		return nil, &ValidationError{Message: "conversation_first_message is required"}
	}

	limit := a.MemoryLimitNumber
	if limit <= 0 {
		limit = defaultMemoryLimit
	}

	req := &memos.SearchMemoryRequest{
		Query:             a.Query,
		ConversationID:    identity.ConversationID(s.config.UserID, a.ConversationFirstMessage),
		UserID:            identity.EffectiveUserID(s.config.UserID, s.config.Channel),
		MemoryLimitNumber: limit,
	}
	return s.client.Send(ctx, memos.PathSearchMemory, req)
}

func (s *Server) handleGetMessage(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a GetMessageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ConversationFirstMessage == "" {
		return nil, &ValidationError{Message: "conversation_first_message is required"}
	}

	req := &memos.GetMessageRequest{
		ConversationID: identity.ConversationID(s.config.UserID, a.ConversationFirstMessage),
		UserID:         identity.EffectiveUserID(s.config.UserID, s.config.Channel),
	}
	return s.client.Send(ctx, memos.PathGetMessage, req)
}

func (s *Server) handleDeleteMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a DeleteMemoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.MemoryIDs) == 0 {
		return nil, &ValidationError{Message: "memory_ids must contain at least one ID"}
	}

	// Deletion is user-scoped, never conversation-scoped.
	req := &memos.DeleteMemoryRequest{
		MemoryIDs: a.MemoryIDs,
		UserID:    identity.EffectiveUserID(s.config.UserID, s.config.Channel),
	}
	return s.client.Send(ctx, memos.PathDeleteMemory, req)
}

func (s *Server) handleAddFeedback(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a AddFeedbackArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ConversationFirstMessage == "" {
		return nil, &ValidationError{Message: "conversation_first_message is required"}
	}
	if a.FeedbackContent == "" {
		return nil, &ValidationError{Message: "feedback_content is required"}
	}

	feedbackTime := a.FeedbackTime
	if feedbackTime == "" {
		feedbackTime = time.Now().Format(memos.ChatTimeLayout)
	}

	req := &memos.AddFeedbackRequest{
		ConversationID:        identity.ConversationID(s.config.UserID, a.ConversationFirstMessage),
		UserID:                identity.EffectiveUserID(s.config.UserID, s.config.Channel),
		FeedbackContent:       a.FeedbackContent,
		AgentID:               a.AgentID,
		AppID:                 a.AppID,
		FeedbackTime:          feedbackTime,
		AllowPublic:           a.AllowPublic,
		AllowKnowledgebaseIDs: a.AllowKnowledgebaseIDs,
	}

	// Fire-and-forget by policy: exactly one POST, no confirmation read, no
	// retry regardless of outcome.
	return s.client.Send(ctx, memos.PathAddFeedback, req)
}

// decodeArgs unmarshals raw tool arguments into a typed Args struct. Any
// decoding failure is a ValidationError, raised before the handler body runs.
func decodeArgs(args map[string]interface{}, dest interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// errorKind classifies a handler failure for the per-call log record.
func errorKind(err error) string {
	var cfgErr *config.ConfigError
	var valErr *ValidationError
	var remoteErr *memos.RemoteError
	var transportErr *memos.TransportError
	switch {
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &valErr):
		return "validation"
	case errors.As(err, &remoteErr):
		return "remote"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "internal"
	}
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
