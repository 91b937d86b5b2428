package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author category of a message. A message has
// exactly one role and it never changes after creation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Valid reports whether the role is one of the known author categories.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// FlowTag is the session-context flow event recorded when a message with
// this role is sent, e.g. "user_message".
func (r MessageRole) FlowTag() string {
	return string(r) + "_message"
}

// MessageMetadata carries optional model parameters and counters attached
// to a message.
type MessageMetadata struct {
	Model           string            `json:"model,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	MaxTokens       *int              `json:"max_tokens,omitempty"`
	AttachmentCount int               `json:"attachment_count,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// ChatMessage is one message within a conversation. Messages of a
// conversation are totally ordered by CreatedAt, ties broken by arrival
// order.
type ChatMessage struct {
	ID               uuid.UUID        `json:"id"`
	ConversationID   uuid.UUID        `json:"conversation_id"`
	UserID           uuid.UUID        `json:"user_id"`
	Role             MessageRole      `json:"role"`
	Content          string           `json:"content"`
	Metadata         *MessageMetadata `json:"metadata,omitempty"`
	TokensUsed       int              `json:"tokens_used"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	CreatedAt        time.Time        `json:"created_at"`
}

// AttachmentCount returns the attachment counter from the metadata, 0 when
// no metadata is present.
func (m *ChatMessage) AttachmentCount() int {
	if m.Metadata == nil {
		return 0
	}
	return m.Metadata.AttachmentCount
}

// SendMessageRequest is the body for POST /messages.
type SendMessageRequest struct {
	ConversationID uuid.UUID        `json:"conversation_id"`
	Role           MessageRole      `json:"role"`
	Content        string           `json:"content"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
}

// UpdateMessageRequest is the body for PUT /messages/{id}. Nil fields are
// left untouched.
type UpdateMessageRequest struct {
	Content          *string          `json:"content,omitempty"`
	Metadata         *MessageMetadata `json:"metadata,omitempty"`
	TokensUsed       *int             `json:"tokens_used,omitempty"`
	ProcessingTimeMs *int64           `json:"processing_time_ms,omitempty"`
}

// SessionContextUpdateRequest is the body for PUT /conversations/{id}/context.
type SessionContextUpdateRequest struct {
	ContextUpdates *SessionContext `json:"context_updates"`
}
