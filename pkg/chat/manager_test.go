package chat

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finora-labs/chat-sync/internal/testutils"
	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/retry"
	"github.com/finora-labs/chat-sync/pkg/transport"
)

func instantPolicies() (retry.Policy, retry.Policy) {
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }
	return retry.DefaultPolicy.WithSleep(noSleep), retry.WritePolicy.WithSleep(noSleep)
}

func newTestManager(ft *testutils.FakeTransport, opts ...ManagerOption) *Manager {
	repo := NewRepo(ft).WithPolicies(instantPolicies())
	return NewManager(repo, opts...)
}

func TestLoadConversationsFirstPage(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       testutils.NewSummaries(userID, 20),
		Pagination: &transport.Pagination{Page: 1, TotalPages: 2, Total: 35, Limit: 20},
	})
	m := newTestManager(ft)

	require.NoError(t, m.LoadConversations(context.Background(), false))

	assert.Len(t, m.Conversations(), 20)
	assert.Equal(t, 2, m.ConversationPage())
	assert.True(t, m.HasMoreConversations())
}

func TestLoadConversationsAppendsInFetchOrder(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	page1 := testutils.NewSummaries(userID, 2)
	page2 := testutils.NewSummaries(userID, 2)
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       page1,
		Pagination: &transport.Pagination{Page: 1, TotalPages: 2, Total: 4, Limit: 2},
	})
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       page2,
		Pagination: &transport.Pagination{Page: 2, TotalPages: 2, Total: 4, Limit: 2},
	})
	m := newTestManager(ft, WithPageSizes(2, 50))

	ctx := context.Background()
	require.NoError(t, m.LoadConversations(ctx, false))
	require.NoError(t, m.LoadConversations(ctx, false))

	got := m.Conversations()
	require.Len(t, got, 4)
	assert.Equal(t, page1[0].ID, got[0].ID)
	assert.Equal(t, page1[1].ID, got[1].ID)
	assert.Equal(t, page2[0].ID, got[2].ID)
	assert.Equal(t, page2[1].ID, got[3].ID)
	assert.False(t, m.HasMoreConversations())

	// exhausted feed: further loads are no-ops
	require.NoError(t, m.LoadConversations(ctx, false))
	assert.Equal(t, 2, ft.CallCount(http.MethodGet, "/conversations"))
}

func TestLoadConversationsRefreshRestartsFeed(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	stale := testutils.NewSummaries(userID, 3)
	fresh := testutils.NewSummaries(userID, 2)
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       stale,
		Pagination: &transport.Pagination{Page: 1, TotalPages: 1, Total: 3, Limit: 20},
	})
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       fresh,
		Pagination: &transport.Pagination{Page: 1, TotalPages: 1, Total: 2, Limit: 20},
	})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.LoadConversations(ctx, false))
	require.Len(t, m.Conversations(), 3)

	require.NoError(t, m.LoadConversations(ctx, true))

	got := m.Conversations()
	require.Len(t, got, 2)
	assert.Equal(t, fresh[0].ID, got[0].ID)
	assert.Equal(t, 2, m.ConversationPage())
}

func TestLoadConversationsFailureKeepsState(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       testutils.NewSummaries(userID, 2),
		Pagination: &transport.Pagination{Page: 1, TotalPages: 2, Total: 4, Limit: 2},
	})
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Err: errors.New("backend rejected the request"),
	})
	m := newTestManager(ft, WithPageSizes(2, 50))

	ctx := context.Background()
	require.NoError(t, m.LoadConversations(ctx, false))
	err := m.LoadConversations(ctx, false)

	require.Error(t, err)
	assert.Len(t, m.Conversations(), 2)
	msg, show := m.LastError()
	assert.True(t, show)
	assert.Contains(t, msg, "rejected")
}

func stubConversationSelect(ft *testutils.FakeTransport, conv *models.Conversation, messages []models.ChatMessage) {
	ft.Stub(http.MethodGet, "/conversations/"+conv.ID.String(), testutils.Response{Data: conv})
	ft.Stub(http.MethodGet, "/conversations/"+conv.ID.String()+"/messages", testutils.Response{
		Data:       messages,
		Pagination: &transport.Pagination{Page: 1, TotalPages: 1, Total: len(messages), Limit: 50},
	})
}

func TestSelectConversationLoadsMessages(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Tech holdings")
	messages := []models.ChatMessage{
		testutils.NewMessage(conv.ID, userID, models.RoleUser, "How risky is my portfolio?"),
		testutils.NewMessage(conv.ID, userID, models.RoleAssistant, "Your allocation is tech heavy."),
	}
	stubConversationSelect(ft, conv, messages)
	m := newTestManager(ft)

	require.NoError(t, m.SelectConversation(context.Background(), conv.ID))

	active := m.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, conv.ID, active.ID)
	assert.Len(t, m.Messages(), 2)
	assert.False(t, m.HasMoreMessages())
}

func TestSelectConversationAlreadyActiveIsNoop(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Dividends")
	stubConversationSelect(ft, conv, nil)
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))
	callsBefore := len(ft.Calls())

	require.NoError(t, m.SelectConversation(ctx, conv.ID))

	assert.Equal(t, callsBefore, len(ft.Calls()))
}

func TestSelectConversationFailureKeepsActive(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Dividends")
	stubConversationSelect(ft, conv, nil)
	other := uuid.New()
	ft.Stub(http.MethodGet, "/conversations/"+other.String(), testutils.Response{
		Err: errors.New("conversation not found"),
	})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))
	err := m.SelectConversation(ctx, other)

	require.Error(t, err)
	active := m.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, conv.ID, active.ID)
}

func TestSendMessageAppendsAfterConfirmation(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Portfolio check-in")
	history := []models.ChatMessage{
		testutils.NewMessage(conv.ID, userID, models.RoleUser, "m1"),
		testutils.NewMessage(conv.ID, userID, models.RoleAssistant, "m2"),
		testutils.NewMessage(conv.ID, userID, models.RoleUser, "m3"),
	}
	stubConversationSelect(ft, conv, history)

	confirmed := testutils.NewMessage(conv.ID, userID, models.RoleUser, "Hello")
	ft.Stub(http.MethodPost, "/messages", testutils.Response{Data: confirmed})
	ft.Stub(http.MethodPut, "/conversations/"+conv.ID.String()+"/context", testutils.Response{
		Data: map[string]bool{"success": true},
	})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))

	msg, err := m.SendMessage(ctx, "Hello", models.RoleUser, nil)
	require.NoError(t, err)
	require.NotNil(t, msg)

	got := m.Messages()
	require.Len(t, got, 4)
	assert.Equal(t, confirmed.ID, got[3].ID)
	assert.Equal(t, models.RoleUser, got[3].Role)
	assert.Equal(t, "Hello", got[3].Content)

	active := m.ActiveConversation()
	require.NotNil(t, active)
	require.NotNil(t, active.SessionContext)
	assert.Equal(t, []string{"user_message"}, active.SessionContext.ConversationFlow)

	// merged context was pushed to the server
	assert.Equal(t, 1, ft.CallCount(http.MethodPut, "/conversations/"+conv.ID.String()+"/context"))
}

func TestSendMessageFailureLeavesListUnchanged(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Portfolio check-in")
	history := []models.ChatMessage{
		testutils.NewMessage(conv.ID, userID, models.RoleUser, "m1"),
	}
	stubConversationSelect(ft, conv, history)
	ft.Stub(http.MethodPost, "/messages", testutils.Response{
		Err: errors.New("message content is required"),
	})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))

	msg, err := m.SendMessage(ctx, "", models.RoleUser, nil)

	require.Error(t, err)
	assert.Nil(t, msg)
	assert.Len(t, m.Messages(), 1)
	_, show := m.LastError()
	assert.True(t, show)
}

func TestSendMessageWithoutActiveConversation(t *testing.T) {
	ft := testutils.NewFakeTransport()
	m := newTestManager(ft)

	msg, err := m.SendMessage(context.Background(), "Hello", models.RoleUser, nil)

	assert.Nil(t, msg)
	assert.NoError(t, err)
	assert.Empty(t, ft.Calls())
}

func TestSendMessageUpdatesSummaryPreview(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Portfolio check-in")
	summary := conv.Summary()
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       []models.ConversationSummary{summary},
		Pagination: &transport.Pagination{Page: 1, TotalPages: 1, Total: 1, Limit: 20},
	})
	stubConversationSelect(ft, conv, nil)
	confirmed := testutils.NewMessage(conv.ID, userID, models.RoleUser, "What changed today?")
	ft.Stub(http.MethodPost, "/messages", testutils.Response{Data: confirmed})
	ft.Stub(http.MethodPut, "/conversations/"+conv.ID.String()+"/context", testutils.Response{
		Data: map[string]bool{"success": true},
	})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.LoadConversations(ctx, false))
	require.NoError(t, m.SelectConversation(ctx, conv.ID))
	_, err := m.SendMessage(ctx, "What changed today?", models.RoleUser, nil)
	require.NoError(t, err)

	got := m.Conversations()
	require.Len(t, got, 1)
	assert.Equal(t, "What changed today?", got[0].LastMessagePreview)
	assert.Equal(t, 1, got[0].MessageCount)
	require.NotNil(t, got[0].LastMessageAt)
}

func TestDeleteConversationClearsActiveState(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "To be removed")
	stubConversationSelect(ft, conv, []models.ChatMessage{
		testutils.NewMessage(conv.ID, userID, models.RoleUser, "m1"),
	})
	deleted := *conv
	deleted.IsActive = false
	ft.Stub(http.MethodPut, "/conversations/"+conv.ID.String(), testutils.Response{Data: deleted})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))
	require.NotNil(t, m.ActiveConversation())

	require.NoError(t, m.DeleteConversation(ctx, conv.ID))

	assert.Nil(t, m.ActiveConversation())
	assert.Empty(t, m.Messages())

	// soft delete goes through PUT, never DELETE
	calls := ft.Calls()
	for _, c := range calls {
		assert.NotEqual(t, http.MethodDelete, c.Method)
	}
	body, ok := calls[len(calls)-1].Body.(*models.UpdateConversationRequest)
	require.True(t, ok)
	require.NotNil(t, body.IsActive)
	assert.False(t, *body.IsActive)
}

func TestDeleteMessageRemovesLocalCopy(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Cleanup")
	m1 := testutils.NewMessage(conv.ID, userID, models.RoleUser, "m1")
	m2 := testutils.NewMessage(conv.ID, userID, models.RoleAssistant, "m2")
	stubConversationSelect(ft, conv, []models.ChatMessage{m1, m2})
	ft.Stub(http.MethodDelete, "/messages/"+m1.ID.String(), testutils.Response{
		Data: map[string]bool{"success": true},
	})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))
	require.NoError(t, m.DeleteMessage(ctx, m1.ID))

	got := m.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, m2.ID, got[0].ID)
}

func TestCreateConversationPrependsSummary(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	existing := testutils.NewSummaries(userID, 2)
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Data:       existing,
		Pagination: &transport.Pagination{Page: 1, TotalPages: 1, Total: 2, Limit: 20},
	})
	created := testutils.NewConversation(userID, "Fresh thread")
	ft.Stub(http.MethodPost, "/conversations", testutils.Response{Data: created})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.LoadConversations(ctx, false))
	conv, err := m.CreateConversation(ctx, &models.CreateConversationRequest{
		Title:       "Fresh thread",
		ContextType: models.ContextPortfolio,
		SessionType: models.SessionChat,
	})
	require.NoError(t, err)

	got := m.Conversations()
	require.Len(t, got, 3)
	assert.Equal(t, conv.ID, got[0].ID)
	assert.Zero(t, got[0].MessageCount)
	active := m.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, conv.ID, active.ID)
}

func TestAttachmentsLoadedOncePerMessage(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Statements")
	withFile := testutils.NewMessage(conv.ID, userID, models.RoleUser, "See the attached statement")
	withFile.Metadata = &models.MessageMetadata{AttachmentCount: 1}
	plain := testutils.NewMessage(conv.ID, userID, models.RoleAssistant, "Looks fine overall")
	stubConversationSelect(ft, conv, []models.ChatMessage{withFile, plain})

	attachment := models.ChatAttachment{
		ID:        uuid.New(),
		MessageID: withFile.ID,
		FileName:  "statement.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 2048,
		Type:      models.AttachmentPDF,
		Status:    models.StatusProcessed,
	}
	attachPath := "/messages/" + withFile.ID.String() + "/attachments"
	ft.Stub(http.MethodGet, attachPath, testutils.Response{Data: []models.ChatAttachment{attachment}})
	m := newTestManager(ft)

	ctx := context.Background()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))

	got := m.Attachments(withFile.ID)
	require.Len(t, got, 1)
	assert.Equal(t, attachment.ID, got[0].ID)
	assert.Equal(t, 1, ft.CallCount(http.MethodGet, attachPath))

	// messages without attachments never trigger a fetch
	assert.Nil(t, m.Attachments(plain.ID))
	assert.Equal(t, 0, ft.CallCount(http.MethodGet, "/messages/"+plain.ID.String()+"/attachments"))

	// re-selecting refetches the messages but serves attachments from cache
	m.ClearActiveConversation()
	require.NoError(t, m.SelectConversation(ctx, conv.ID))
	assert.Equal(t, 1, ft.CallCount(http.MethodGet, attachPath))
	assert.Len(t, m.Attachments(withFile.ID), 1)
}

// gatedTransport blocks each request until released, to race async results
// against state changes.
type gatedTransport struct {
	inner   transport.Client
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedTransport) SendRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*transport.Envelope, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.inner.SendRequest(ctx, method, path, query, body)
}

func TestStaleSelectResultIsDropped(t *testing.T) {
	ft := testutils.NewFakeTransport()
	userID := uuid.New()
	conv := testutils.NewConversation(userID, "Slow fetch")
	stubConversationSelect(ft, conv, nil)

	gate := &gatedTransport{inner: ft, started: make(chan struct{}), release: make(chan struct{})}
	repo := NewRepo(gate).WithPolicies(instantPolicies())
	m := NewManager(repo)

	done := make(chan error, 1)
	go func() {
		done <- m.SelectConversation(context.Background(), conv.ID)
	}()

	<-gate.started
	// the user navigates away while the fetch is still in flight
	m.ClearActiveConversation()
	close(gate.release)

	require.NoError(t, <-done)
	assert.Nil(t, m.ActiveConversation())
	assert.Empty(t, m.Messages())
}

func TestClearError(t *testing.T) {
	ft := testutils.NewFakeTransport()
	ft.Stub(http.MethodGet, "/conversations", testutils.Response{
		Err: errors.New("backend rejected the request"),
	})
	m := newTestManager(ft)

	require.Error(t, m.LoadConversations(context.Background(), false))
	_, show := m.LastError()
	require.True(t, show)

	m.ClearError()
	msg, show := m.LastError()
	assert.False(t, show)
	assert.Empty(t, msg)
}
