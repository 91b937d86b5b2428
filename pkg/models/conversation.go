// Package models defines the chat domain entities exchanged with the
// Finora chat backend.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ContextType classifies what a conversation is about.
type ContextType string

const (
	ContextGeneral        ContextType = "general"
	ContextPortfolio      ContextType = "portfolio"
	ContextStockAnalysis  ContextType = "stock_analysis"
	ContextMarketInsights ContextType = "market_insights"
)

// SessionType classifies how a conversation is being used.
type SessionType string

const (
	SessionChat     SessionType = "chat"
	SessionAnalysis SessionType = "analysis"
	SessionPlanning SessionType = "planning"
	SessionResearch SessionType = "research"
)

// SessionContext is the lightweight conversational metadata attached to a
// conversation, separate from its messages.
type SessionContext struct {
	CurrentTopic     *string           `json:"current_topic,omitempty"`
	UserIntent       *string           `json:"user_intent,omitempty"`
	ConversationFlow []string          `json:"conversation_flow,omitempty"`
	ContextualData   map[string]string `json:"contextual_data,omitempty"`
}

// Clone returns a deep copy so the cached context and the one under
// construction never share mutable state.
func (c *SessionContext) Clone() *SessionContext {
	if c == nil {
		return nil
	}
	out := &SessionContext{}
	if c.CurrentTopic != nil {
		topic := *c.CurrentTopic
		out.CurrentTopic = &topic
	}
	if c.UserIntent != nil {
		intent := *c.UserIntent
		out.UserIntent = &intent
	}
	if c.ConversationFlow != nil {
		out.ConversationFlow = append([]string(nil), c.ConversationFlow...)
	}
	if c.ContextualData != nil {
		out.ContextualData = make(map[string]string, len(c.ContextualData))
		for k, v := range c.ContextualData {
			out.ContextualData[k] = v
		}
	}
	return out
}

// WithFlowEvent returns a copy of the context whose flow log has tag
// appended. Prior entries are never dropped; a nil receiver yields a
// context with a singleton flow log.
func (c *SessionContext) WithFlowEvent(tag string) *SessionContext {
	out := c.Clone()
	if out == nil {
		out = &SessionContext{}
	}
	out.ConversationFlow = append(out.ConversationFlow, tag)
	return out
}

// Conversation represents a persisted chat thread between a user and the
// AI assistant.
type Conversation struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Title          string          `json:"title"`
	ContextType    ContextType     `json:"context_type"`
	SessionType    SessionType     `json:"session_type"`
	SessionContext *SessionContext `json:"session_context,omitempty"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ConversationSummary is the listing projection of a conversation with
// denormalized message data.
type ConversationSummary struct {
	ID                 uuid.UUID   `json:"id"`
	UserID             uuid.UUID   `json:"user_id"`
	Title              string      `json:"title"`
	ContextType        ContextType `json:"context_type"`
	SessionType        SessionType `json:"session_type"`
	IsActive           bool        `json:"is_active"`
	MessageCount       int         `json:"message_count"`
	LastMessageAt      *time.Time  `json:"last_message_at,omitempty"`
	LastMessagePreview string      `json:"last_message_preview"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Summary downgrades a full conversation into a listing entry. The
// denormalized message fields start empty until the server's projection is
// re-fetched.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:          c.ID,
		UserID:      c.UserID,
		Title:       c.Title,
		ContextType: c.ContextType,
		SessionType: c.SessionType,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// CreateConversationRequest is the body for POST /conversations.
type CreateConversationRequest struct {
	Title          string          `json:"title"`
	ContextType    ContextType     `json:"context_type"`
	SessionType    SessionType     `json:"session_type"`
	SessionContext *SessionContext `json:"session_context,omitempty"`
}

// UpdateConversationRequest is the body for PUT /conversations/{id}.
// Nil fields are left untouched.
type UpdateConversationRequest struct {
	Title    *string `json:"title,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
