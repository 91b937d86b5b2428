// Package chat implements the client-side chat session synchronization
// core: endpoint bindings, the conversation store and the session manager.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/finora-labs/chat-sync/pkg/metrics"
	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/retry"
	"github.com/finora-labs/chat-sync/pkg/transport"
)

// Repo binds the chat backend endpoints onto typed operations. Reads and
// writes run under separate retry policies.
type Repo struct {
	transport transport.Client
	read      retry.Policy
	write     retry.Policy
}

// NewRepo creates a repo with the default read/write retry policies.
func NewRepo(t transport.Client) *Repo {
	return &Repo{
		transport: t,
		read:      retry.DefaultPolicy,
		write:     retry.WritePolicy,
	}
}

// WithPolicies overrides the retry policies, for callers that need
// different budgets.
func (r *Repo) WithPolicies(read, write retry.Policy) *Repo {
	r.read = read
	r.write = write
	return r
}

func (r *Repo) send(ctx context.Context, policy retry.Policy, method, path string, query url.Values, body interface{}) (*transport.Envelope, error) {
	var envelope *transport.Envelope
	attempts := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			metrics.RetriesTotal.Inc()
		}
		var opErr error
		envelope, opErr = r.transport.SendRequest(ctx, method, path, query, body)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// ListConversations fetches one page of the conversation feed.
func (r *Repo) ListConversations(ctx context.Context, page, limit int) ([]models.ConversationSummary, *transport.Pagination, error) {
	envelope, err := r.send(ctx, r.read, http.MethodGet, "/conversations", pageQuery(page, limit), nil)
	if err != nil {
		return nil, nil, err
	}

	var summaries []models.ConversationSummary
	if err := envelope.Decode(&summaries); err != nil {
		return nil, nil, err
	}
	return summaries, envelope.Pagination, nil
}

// GetConversation fetches the full conversation, session context included.
func (r *Repo) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	envelope, err := r.send(ctx, r.read, http.MethodGet, "/conversations/"+id.String(), nil, nil)
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := envelope.Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation creates a conversation; the server assigns the id.
func (r *Repo) CreateConversation(ctx context.Context, req *models.CreateConversationRequest) (*models.Conversation, error) {
	envelope, err := r.send(ctx, r.write, http.MethodPost, "/conversations", nil, req)
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := envelope.Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateConversation applies a partial update (title, active flag).
func (r *Repo) UpdateConversation(ctx context.Context, id uuid.UUID, req *models.UpdateConversationRequest) (*models.Conversation, error) {
	envelope, err := r.send(ctx, r.write, http.MethodPut, "/conversations/"+id.String(), nil, req)
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := envelope.Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateSessionContext pushes a merged session context to the server.
func (r *Repo) UpdateSessionContext(ctx context.Context, id uuid.UUID, sc *models.SessionContext) error {
	req := models.SessionContextUpdateRequest{ContextUpdates: sc}
	_, err := r.send(ctx, r.write, http.MethodPut, fmt.Sprintf("/conversations/%s/context", id), nil, req)
	return err
}

// ListMessages fetches one page of a conversation's message feed.
func (r *Repo) ListMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.ChatMessage, *transport.Pagination, error) {
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	envelope, err := r.send(ctx, r.read, http.MethodGet, path, pageQuery(page, limit), nil)
	if err != nil {
		return nil, nil, err
	}

	var messages []models.ChatMessage
	if err := envelope.Decode(&messages); err != nil {
		return nil, nil, err
	}
	return messages, envelope.Pagination, nil
}

// SendMessage persists a message and returns the server-committed record.
func (r *Repo) SendMessage(ctx context.Context, req *models.SendMessageRequest) (*models.ChatMessage, error) {
	envelope, err := r.send(ctx, r.write, http.MethodPost, "/messages", nil, req)
	if err != nil {
		return nil, err
	}

	var msg models.ChatMessage
	if err := envelope.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage applies a partial update to a message.
func (r *Repo) UpdateMessage(ctx context.Context, id uuid.UUID, req *models.UpdateMessageRequest) (*models.ChatMessage, error) {
	envelope, err := r.send(ctx, r.write, http.MethodPut, "/messages/"+id.String(), nil, req)
	if err != nil {
		return nil, err
	}

	var msg models.ChatMessage
	if err := envelope.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a message server-side.
func (r *Repo) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	_, err := r.send(ctx, r.write, http.MethodDelete, "/messages/"+id.String(), nil, nil)
	return err
}

// ListAttachments fetches the attachments of one message.
func (r *Repo) ListAttachments(ctx context.Context, messageID uuid.UUID) ([]models.ChatAttachment, error) {
	path := fmt.Sprintf("/messages/%s/attachments", messageID)
	envelope, err := r.send(ctx, r.read, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var attachments []models.ChatAttachment
	if err := envelope.Decode(&attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}
