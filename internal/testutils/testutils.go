// Package testutils provides shared fixtures for the chat-sync test
// suites: a programmable fake transport and entity builders.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/transport"
)

// Call records one request seen by the fake transport.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

// Response is one scripted reply.
type Response struct {
	Data       interface{}
	Pagination *transport.Pagination
	Err        error
}

// FakeTransport replays scripted responses keyed by "METHOD path" and
// records every request. Safe for concurrent use.
type FakeTransport struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []Call
}

// NewFakeTransport creates an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{responses: make(map[string][]Response)}
}

// Stub queues a response for "METHOD path". Queued responses are consumed
// in order; the last one is sticky.
func (f *FakeTransport) Stub(method, path string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], resp)
}

// SendRequest implements transport.Client.
func (f *FakeTransport) SendRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*transport.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Method: method, Path: path, Query: query, Body: body})

	key := method + " " + path
	queue := f.responses[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("testutils: no stubbed response for %s", key)
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}

	if resp.Err != nil {
		return nil, resp.Err
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, err
	}
	return &transport.Envelope{
		Success:    true,
		Data:       data,
		Pagination: resp.Pagination,
	}, nil
}

// Calls returns all recorded requests.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns the number of requests matching "METHOD path".
func (f *FakeTransport) CallCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// NewConversation builds a full conversation fixture.
func NewConversation(userID uuid.UUID, title string) *models.Conversation {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Conversation{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		ContextType: models.ContextPortfolio,
		SessionType: models.SessionChat,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewSummaries builds n summary fixtures with deterministic titles.
func NewSummaries(userID uuid.UUID, n int) []models.ConversationSummary {
	summaries := make([]models.ConversationSummary, 0, n)
	for i := 0; i < n; i++ {
		conv := NewConversation(userID, fmt.Sprintf("Conversation %d", i+1))
		summaries = append(summaries, conv.Summary())
	}
	return summaries
}

// NewMessage builds a message fixture in the given conversation.
func NewMessage(conversationID, userID uuid.UUID, role models.MessageRole, content string) models.ChatMessage {
	return models.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
}
