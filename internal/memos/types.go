// Package memos implements the HTTP dispatcher for the remote OpenMem memory
// API. Every tool invocation funnels into a single authenticated POST built
// from one of the typed request bodies below; responses come back as parsed
// JSON or, for malformed success bodies, the literal response text.
package memos

// ChatTimeLayout is the wall-clock format the OpenMem API expects on
// messages and feedback (millisecond precision, no timezone).
const ChatTimeLayout = "2006-01-02 15:04:05.000"

// Message is a single conversation turn forwarded to the message endpoints.
type Message struct {
	Role     string `json:"role"`                // "user" or "assistant"
	Content  string `json:"content"`             // Message text
	ChatTime string `json:"chat_time,omitempty"` // ChatTimeLayout; filled at dispatch time when absent
}

// Provenance is embedded in every request body so the remote side can tell
// which adapter produced a write. The dispatcher stamps it just before
// serialization; handlers never set it themselves.
type Provenance struct {
	Source string `json:"source,omitempty"`
}

func (p *Provenance) stampSource(source string) { p.Source = source }

// sourceStamper lets the dispatcher inject the provenance tag into any
// request body that embeds Provenance.
type sourceStamper interface {
	stampSource(source string)
}

// AddMessageRequest appends conversation turns to a conversation's history.
type AddMessageRequest struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Messages       []Message `json:"messages"`
	Provenance
}

// SearchMemoryRequest retrieves memories relevant to a query within one
// conversation. MemoryLimitNumber is always explicit; the handler defaults
// it before the request is built.
type SearchMemoryRequest struct {
	Query             string `json:"query"`
	ConversationID    string `json:"conversation_id"`
	UserID            string `json:"user_id"`
	MemoryLimitNumber int    `json:"memory_limit_number"`
	Provenance
}

// GetMessageRequest fetches the stored message history of a conversation.
type GetMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Provenance
}

// DeleteMemoryRequest removes memories by ID. Deletion is scoped to the
// effective user, not to a conversation.
type DeleteMemoryRequest struct {
	MemoryIDs []string `json:"memory_ids"`
	UserID    string   `json:"user_id"`
	Provenance
}

// AddFeedbackRequest records user feedback about retrieved memories.
// Dispatched exactly once; the adapter never reads back or retries to
// confirm the update landed.
type AddFeedbackRequest struct {
	ConversationID        string   `json:"conversation_id"`
	UserID                string   `json:"user_id"`
	FeedbackContent       string   `json:"feedback_content"`
	AgentID               string   `json:"agent_id,omitempty"`
	AppID                 string   `json:"app_id,omitempty"`
	FeedbackTime          string   `json:"feedback_time,omitempty"`
	AllowPublic           bool     `json:"allow_public,omitempty"`
	AllowKnowledgebaseIDs []string `json:"allow_knowledgebase_ids,omitempty"`
	Provenance
}
