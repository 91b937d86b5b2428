package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContextCloneIsDeep(t *testing.T) {
	topic := "dividends"
	original := &SessionContext{
		CurrentTopic:     &topic,
		ConversationFlow: []string{"user_message"},
		ContextualData:   map[string]string{"ticker": "AAPL"},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	*clone.CurrentTopic = "growth"
	clone.ConversationFlow[0] = "assistant_message"
	clone.ContextualData["ticker"] = "MSFT"

	assert.Equal(t, "dividends", *original.CurrentTopic)
	assert.Equal(t, []string{"user_message"}, original.ConversationFlow)
	assert.Equal(t, "AAPL", original.ContextualData["ticker"])
}

func TestWithFlowEventAppends(t *testing.T) {
	ctx := &SessionContext{ConversationFlow: []string{"user_message", "assistant_message"}}

	merged := ctx.WithFlowEvent("user_message")

	assert.Len(t, merged.ConversationFlow, 3)
	assert.Equal(t, "user_message", merged.ConversationFlow[2])
	// the input is untouched
	assert.Len(t, ctx.ConversationFlow, 2)
}

func TestWithFlowEventOnEmptyContext(t *testing.T) {
	var ctx *SessionContext

	merged := ctx.WithFlowEvent("assistant_message")

	require.NotNil(t, merged)
	assert.Equal(t, []string{"assistant_message"}, merged.ConversationFlow)
}

func TestSummaryDowngradeIsLossy(t *testing.T) {
	conv := &Conversation{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Title:       "Portfolio check-in",
		ContextType: ContextPortfolio,
		SessionType: SessionChat,
		SessionContext: &SessionContext{
			ConversationFlow: []string{"user_message"},
		},
		IsActive: true,
	}

	summary := conv.Summary()

	assert.Equal(t, conv.ID, summary.ID)
	assert.Equal(t, conv.Title, summary.Title)
	assert.Zero(t, summary.MessageCount)
	assert.Nil(t, summary.LastMessageAt)
	assert.Empty(t, summary.LastMessagePreview)
}
