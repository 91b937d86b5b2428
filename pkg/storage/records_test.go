package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/finora-labs/chat-sync/pkg/models"
)

func TestConversationToWire(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	record := Conversation{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Title:          "Tech holdings",
		ContextType:    "portfolio",
		SessionType:    "analysis",
		SessionContext: datatypes.JSON(`{"current_topic": "risk", "conversation_flow": ["user_message"]}`),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	wire, err := record.ToWire()
	require.NoError(t, err)

	assert.Equal(t, record.ID, wire.ID)
	assert.Equal(t, models.ContextPortfolio, wire.ContextType)
	assert.Equal(t, models.SessionAnalysis, wire.SessionType)
	require.NotNil(t, wire.SessionContext)
	require.NotNil(t, wire.SessionContext.CurrentTopic)
	assert.Equal(t, "risk", *wire.SessionContext.CurrentTopic)
	assert.Equal(t, []string{"user_message"}, wire.SessionContext.ConversationFlow)
}

func TestConversationToWireWithoutContext(t *testing.T) {
	record := Conversation{ID: uuid.New(), UserID: uuid.New(), Title: "Empty"}

	wire, err := record.ToWire()
	require.NoError(t, err)
	assert.Nil(t, wire.SessionContext)
}

func TestConversationToWireMalformedContext(t *testing.T) {
	record := Conversation{
		ID:             uuid.New(),
		SessionContext: datatypes.JSON(`{"current_topic": 42`),
	}

	_, err := record.ToWire()
	require.Error(t, err)
}

func TestMessageToWire(t *testing.T) {
	record := Message{
		ID:               uuid.New(),
		ConversationID:   uuid.New(),
		UserID:           uuid.New(),
		Role:             "assistant",
		Content:          "Your allocation is tech heavy.",
		Metadata:         datatypes.JSON(`{"model": "gpt-4", "attachment_count": 2}`),
		TokensUsed:       128,
		ProcessingTimeMs: 640,
	}

	wire, err := record.ToWire()
	require.NoError(t, err)

	assert.Equal(t, models.RoleAssistant, wire.Role)
	assert.Equal(t, 128, wire.TokensUsed)
	require.NotNil(t, wire.Metadata)
	assert.Equal(t, "gpt-4", wire.Metadata.Model)
	assert.Equal(t, 2, wire.AttachmentCount())
}

func TestAttachmentToWire(t *testing.T) {
	record := Attachment{
		ID:        uuid.New(),
		MessageID: uuid.New(),
		FileName:  "portfolio.pdf",
		MimeType:  "application/pdf",
		Type:      "pdf",
		SizeBytes: 1024,
		Status:    "processed",
		Metadata:  datatypes.JSON(`{"pages": "12"}`),
	}

	wire, err := record.ToWire()
	require.NoError(t, err)

	assert.Equal(t, models.AttachmentPDF, wire.Type)
	assert.Equal(t, models.StatusProcessed, wire.Status)
	assert.Equal(t, "12", wire.Metadata["pages"])
}

func TestTruncatePreview(t *testing.T) {
	short := "What changed today?"
	assert.Equal(t, short, TruncatePreview(short))

	long := strings.Repeat("ä", 200)
	got := TruncatePreview(long)
	assert.Equal(t, strings.Repeat("ä", 120), got)
}
