package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/metrics"
	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/pagination"
)

const previewLength = 120

// Manager owns the client-side chat state: the conversation summary feed,
// the single active conversation with its messages, and the attachment
// cache. All mutations go through the manager's mutex, so readers always
// observe a consistent snapshot and writes are serialized. Network calls
// run outside the lock; their results are applied under the lock behind a
// stale-apply guard (generation counter), never cancelled.
type Manager struct {
	repo *Repo

	mu sync.RWMutex

	summaries            []models.ConversationSummary
	convCursor           pagination.Cursor
	loadingConversations bool

	active          *models.Conversation
	messages        []models.ChatMessage
	msgCursor       pagination.Cursor
	loadingMessages bool

	// generation increments on every select/deselect of the active
	// conversation; an async result is applied only if its captured
	// generation still matches.
	generation uint64

	attachments *gocache.Cache

	lastError string
	showError bool
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithPageSizes overrides the conversation and message feed page sizes.
func WithPageSizes(conversations, messages int) ManagerOption {
	return func(m *Manager) {
		m.convCursor.Reset(conversations)
		m.msgCursor.Reset(messages)
	}
}

// NewManager creates a manager around the given repo.
func NewManager(repo *Repo, opts ...ManagerOption) *Manager {
	m := &Manager{
		repo:        repo,
		convCursor:  pagination.NewCursor(20),
		msgCursor:   pagination.NewCursor(50),
		attachments: gocache.New(gocache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadConversations fetches the next page of the conversation feed. With
// refresh the feed is cleared and restarted at page 1. A load already in
// flight or an exhausted feed makes this a no-op.
func (m *Manager) LoadConversations(ctx context.Context, refresh bool) error {
	m.mu.Lock()
	if m.loadingConversations {
		m.mu.Unlock()
		return nil
	}
	if refresh {
		m.summaries = nil
		m.convCursor.Reset(m.convCursor.PageSize())
	} else if !m.convCursor.HasMore() {
		m.mu.Unlock()
		return nil
	}
	m.loadingConversations = true
	page := m.convCursor.Page()
	limit := m.convCursor.PageSize()
	m.mu.Unlock()

	summaries, pageInfo, err := m.repo.ListConversations(ctx, page, limit)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadingConversations = false

	if err != nil {
		m.surfaceError(err)
		return err
	}

	m.summaries = append(m.summaries, summaries...)
	if pageInfo != nil {
		m.convCursor.Advance(pageInfo.TotalPages, pageInfo.Total)
	} else if len(summaries) == 0 {
		m.convCursor.Exhaust()
	}
	m.clearErrorLocked()
	return nil
}

// SelectConversation makes the conversation with the given id active and
// starts a fresh message load. Selecting the already-active conversation
// performs no network call and leaves state unchanged. On failure the
// previous active state stays intact.
func (m *Manager) SelectConversation(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if m.active != nil && m.active.ID == id {
		m.mu.Unlock()
		return nil
	}
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	conv, err := m.repo.GetConversation(ctx, id)

	m.mu.Lock()
	if err != nil {
		m.surfaceError(err)
		m.mu.Unlock()
		return err
	}
	if gen != m.generation {
		// a newer selection superseded this fetch, drop the result
		m.mu.Unlock()
		return nil
	}

	m.active = conv
	m.messages = nil
	m.msgCursor.Reset(m.msgCursor.PageSize())
	m.loadingMessages = false
	m.clearErrorLocked()
	m.mu.Unlock()

	return m.LoadMoreMessages(ctx)
}

// ClearActiveConversation deselects the active conversation and drops its
// messages. In-flight results for the old selection will be discarded.
func (m *Manager) ClearActiveConversation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.active = nil
	m.messages = nil
	m.msgCursor.Reset(m.msgCursor.PageSize())
	m.loadingMessages = false
}

// LoadMoreMessages fetches the next page of the active conversation's
// messages. No-op without an active conversation, with a load in flight,
// or once the feed is exhausted.
func (m *Manager) LoadMoreMessages(ctx context.Context) error {
	m.mu.Lock()
	if m.active == nil || m.loadingMessages || !m.msgCursor.HasMore() {
		m.mu.Unlock()
		return nil
	}
	m.loadingMessages = true
	gen := m.generation
	convID := m.active.ID
	page := m.msgCursor.Page()
	limit := m.msgCursor.PageSize()
	m.mu.Unlock()

	messages, pageInfo, err := m.repo.ListMessages(ctx, convID, page, limit)

	m.mu.Lock()
	m.loadingMessages = false
	if err != nil {
		m.surfaceError(err)
		m.mu.Unlock()
		return err
	}
	if gen != m.generation || m.active == nil || m.active.ID != convID {
		m.mu.Unlock()
		return nil
	}

	m.messages = append(m.messages, messages...)
	if pageInfo != nil {
		m.msgCursor.Advance(pageInfo.TotalPages, pageInfo.Total)
	} else if len(messages) == 0 {
		m.msgCursor.Exhaust()
	}
	m.clearErrorLocked()
	m.mu.Unlock()

	m.loadAttachments(ctx, messages)
	return nil
}

// CreateConversation creates a conversation and prepends its summary to
// the feed, ahead of any server ordering, then makes it active.
func (m *Manager) CreateConversation(ctx context.Context, req *models.CreateConversationRequest) (*models.Conversation, error) {
	conv, err := m.repo.CreateConversation(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.surfaceError(err)
		return nil, err
	}

	m.summaries = append([]models.ConversationSummary{conv.Summary()}, m.summaries...)
	m.generation++
	m.active = conv
	m.messages = nil
	m.msgCursor.Reset(m.msgCursor.PageSize())
	m.clearErrorLocked()
	return conv, nil
}

// SendMessage sends a message in the active conversation. The message is
// appended to the local list only after the server confirms it, so the
// visible list never runs ahead of the server. Without an active
// conversation this is a no-op. Concurrent sends are not serialized;
// their local ordering follows round-trip completion order.
func (m *Manager) SendMessage(ctx context.Context, content string, role models.MessageRole, metadata *models.MessageMetadata) (*models.ChatMessage, error) {
	m.mu.RLock()
	if m.active == nil {
		m.mu.RUnlock()
		return nil, nil
	}
	convID := m.active.ID
	gen := m.generation
	m.mu.RUnlock()

	msg, err := m.repo.SendMessage(ctx, &models.SendMessageRequest{
		ConversationID: convID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
	})

	m.mu.Lock()
	if err != nil {
		m.surfaceError(err)
		m.mu.Unlock()
		return nil, err
	}

	var mergedContext *models.SessionContext
	if gen == m.generation && m.active != nil && m.active.ID == convID {
		m.messages = append(m.messages, *msg)
		m.active.SessionContext = m.active.SessionContext.WithFlowEvent(role.FlowTag())
		mergedContext = m.active.SessionContext.Clone()
		m.refreshSummaryLocked(msg)
		m.clearErrorLocked()
	}
	m.mu.Unlock()

	metrics.MessagesSentTotal.WithLabelValues(string(role)).Inc()

	// Best effort: a failed context push is surfaced but the local merge
	// stays in place.
	if mergedContext != nil {
		if err := m.repo.UpdateSessionContext(ctx, convID, mergedContext); err != nil {
			logging.LogWarningf(err, "Failed to push session context for conversation %s", convID)
			m.mu.Lock()
			m.surfaceError(err)
			m.mu.Unlock()
		}
	}

	return msg, nil
}

// DeleteMessage removes a message server-side first; the local list is
// only touched after the server confirms.
func (m *Manager) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	err := m.repo.DeleteMessage(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.surfaceError(err)
		return err
	}

	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			break
		}
	}
	m.attachments.Delete(id.String())
	m.clearErrorLocked()
	return nil
}

// DeleteConversation soft-deletes a conversation by flipping its active
// flag server-side. After confirmation the summary is removed locally;
// deleting the selected conversation also clears the active state.
func (m *Manager) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	inactive := false
	_, err := m.repo.UpdateConversation(ctx, id, &models.UpdateConversationRequest{IsActive: &inactive})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.surfaceError(err)
		return err
	}

	for i, s := range m.summaries {
		if s.ID == id {
			m.summaries = append(m.summaries[:i], m.summaries[i+1:]...)
			break
		}
	}
	if m.active != nil && m.active.ID == id {
		m.generation++
		m.active = nil
		m.messages = nil
		m.msgCursor.Reset(m.msgCursor.PageSize())
		m.loadingMessages = false
	}
	m.clearErrorLocked()
	return nil
}

// loadAttachments fetches attachments once per message that declares any,
// skipping ids already cached this session. Failures are logged, not
// surfaced: attachments are auxiliary to the message feed.
func (m *Manager) loadAttachments(ctx context.Context, messages []models.ChatMessage) {
	for i := range messages {
		msg := &messages[i]
		if msg.AttachmentCount() == 0 {
			continue
		}
		key := msg.ID.String()
		if _, cached := m.attachments.Get(key); cached {
			continue
		}
		attachments, err := m.repo.ListAttachments(ctx, msg.ID)
		if err != nil {
			logging.LogWarningf(err, "Failed to load attachments for message %s", msg.ID)
			continue
		}
		m.attachments.Set(key, attachments, gocache.NoExpiration)
	}
}

func (m *Manager) refreshSummaryLocked(msg *models.ChatMessage) {
	for i := range m.summaries {
		if m.summaries[i].ID == msg.ConversationID {
			created := msg.CreatedAt
			m.summaries[i].LastMessageAt = &created
			m.summaries[i].LastMessagePreview = truncatePreview(msg.Content)
			m.summaries[i].MessageCount++
			m.summaries[i].UpdatedAt = msg.CreatedAt
			return
		}
	}
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}

func (m *Manager) surfaceError(err error) {
	m.lastError = err.Error()
	m.showError = true
}

func (m *Manager) clearErrorLocked() {
	m.lastError = ""
	m.showError = false
}

// ClearError dismisses the surfaced error.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearErrorLocked()
}

// LastError returns the surfaced error message and whether it should be
// shown.
func (m *Manager) LastError() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError, m.showError
}

// Conversations returns a snapshot of the summary feed.
func (m *Manager) Conversations() []models.ConversationSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ConversationSummary(nil), m.summaries...)
}

// ActiveConversation returns the active conversation, nil if none.
func (m *Manager) ActiveConversation() *models.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil
	}
	conv := *m.active
	conv.SessionContext = m.active.SessionContext.Clone()
	return &conv
}

// Messages returns a snapshot of the active conversation's messages.
func (m *Manager) Messages() []models.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ChatMessage(nil), m.messages...)
}

// Attachments returns the cached attachments for a message, nil when none
// have been loaded.
func (m *Manager) Attachments(messageID uuid.UUID) []models.ChatAttachment {
	if v, ok := m.attachments.Get(messageID.String()); ok {
		return v.([]models.ChatAttachment)
	}
	return nil
}

// HasMoreConversations reports whether another conversation page exists.
func (m *Manager) HasMoreConversations() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.convCursor.HasMore()
}

// HasMoreMessages reports whether another message page exists.
func (m *Manager) HasMoreMessages() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.msgCursor.HasMore()
}

// ConversationPage returns the next page number for the conversation feed.
func (m *Manager) ConversationPage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.convCursor.Page()
}
