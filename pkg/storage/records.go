// Package storage holds the persistence layer of the chat backend: the
// gorm records, the migration entry point and the query helpers used by
// the HTTP handlers.
package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/finora-labs/chat-sync/pkg/models"
)

// MigrationFunc creates or updates the backend schema.
func MigrationFunc(conn *gorm.DB) error {
	return conn.AutoMigrate(&User{}, &Conversation{}, &Message{}, &Attachment{})
}

// User represents a registered account.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string         `gorm:"size:255;uniqueIndex;not null"                  json:"email"`
	PasswordHash string         `gorm:"size:255;not null"                              json:"-"`
	DisplayName  string         `gorm:"size:255"                                       json:"display_name,omitempty"`
	CreatedAt    time.Time      `                                                      json:"created_at"`
	UpdatedAt    time.Time      `                                                      json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index"                                          json:"-"`

	// Associations
	Conversations []Conversation `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook to ensure ID is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Conversation is the persisted chat conversation. The message count, last
// message timestamp and preview are denormalized onto the row so that the
// list endpoint never joins the messages table.
type Conversation struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title              string         `gorm:"size:500;not null;default:'New Conversation'" json:"title"`
	ContextType        string         `gorm:"size:50;not null;default:'general'" json:"context_type"`
	SessionType        string         `gorm:"size:50;not null;default:'chat'" json:"session_type"`
	SessionContext     datatypes.JSON `gorm:"type:jsonb" json:"session_context,omitempty"`
	IsActive           bool           `gorm:"not null;default:true;index" json:"is_active"`
	MessageCount       int            `gorm:"not null;default:0" json:"message_count"`
	LastMessageAt      *time.Time     `json:"last_message_at,omitempty"`
	LastMessagePreview string         `gorm:"size:500" json:"last_message_preview,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`

	// Associations
	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Conversation model
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate hook to ensure ID is set
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ToWire converts the record into the full wire representation.
func (c *Conversation) ToWire() (*models.Conversation, error) {
	var sc *models.SessionContext
	if len(c.SessionContext) > 0 {
		sc = &models.SessionContext{}
		if err := json.Unmarshal(c.SessionContext, sc); err != nil {
			return nil, errors.Wrap(err, "failed to decode session context")
		}
	}
	return &models.Conversation{
		ID:             c.ID,
		UserID:         c.UserID,
		Title:          c.Title,
		ContextType:    models.ContextType(c.ContextType),
		SessionType:    models.SessionType(c.SessionType),
		SessionContext: sc,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}, nil
}

// ToSummary converts the record into the listing representation using the
// denormalized columns.
func (c *Conversation) ToSummary() models.ConversationSummary {
	return models.ConversationSummary{
		ID:                 c.ID,
		UserID:             c.UserID,
		Title:              c.Title,
		ContextType:        models.ContextType(c.ContextType),
		SessionType:        models.SessionType(c.SessionType),
		IsActive:           c.IsActive,
		MessageCount:       c.MessageCount,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// Message represents a single message in a conversation
type Message struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConversationID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Role             string         `gorm:"size:20;not null;check:role IN ('user','assistant','system')" json:"role"`
	Content          string         `gorm:"type:text;not null" json:"content"`
	Metadata         datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	TokensUsed       int            `gorm:"not null;default:0" json:"tokens_used"`
	ProcessingTimeMs int64          `gorm:"not null;default:0" json:"processing_time_ms"`
	CreatedAt        time.Time      `json:"created_at"`

	// Associations
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
	Attachments  []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Message model
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate hook to ensure ID is set
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ToWire converts the record into the wire representation.
func (m *Message) ToWire() (*models.ChatMessage, error) {
	var meta *models.MessageMetadata
	if len(m.Metadata) > 0 {
		meta = &models.MessageMetadata{}
		if err := json.Unmarshal(m.Metadata, meta); err != nil {
			return nil, errors.Wrap(err, "failed to decode message metadata")
		}
	}
	return &models.ChatMessage{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		UserID:           m.UserID,
		Role:             models.MessageRole(m.Role),
		Content:          m.Content,
		Metadata:         meta,
		TokensUsed:       m.TokensUsed,
		ProcessingTimeMs: m.ProcessingTimeMs,
		CreatedAt:        m.CreatedAt,
	}, nil
}

// Attachment represents a file attached to a message.
type Attachment struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MessageID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"message_id"`
	FileName    string         `gorm:"size:500;not null" json:"file_name"`
	MimeType    string         `gorm:"size:255;not null" json:"mime_type"`
	Type        string         `gorm:"size:50;not null" json:"type"`
	SizeBytes   int64          `gorm:"not null" json:"size_bytes"`
	StoragePath string         `gorm:"size:1000" json:"storage_path"`
	Status      string         `gorm:"size:50;not null;default:'uploading'" json:"status"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Associations
	Message Message `gorm:"foreignKey:MessageID" json:"-"`
}

// TableName specifies the table name for Attachment model
func (Attachment) TableName() string {
	return "attachments"
}

// BeforeCreate hook to ensure ID is set
func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ToWire converts the record into the wire representation.
func (a *Attachment) ToWire() (models.ChatAttachment, error) {
	var meta map[string]string
	if len(a.Metadata) > 0 {
		if err := json.Unmarshal(a.Metadata, &meta); err != nil {
			return models.ChatAttachment{}, errors.Wrap(err, "failed to decode attachment metadata")
		}
	}
	return models.ChatAttachment{
		ID:          a.ID,
		MessageID:   a.MessageID,
		FileName:    a.FileName,
		MimeType:    a.MimeType,
		SizeBytes:   a.SizeBytes,
		StoragePath: a.StoragePath,
		Type:        models.AttachmentType(a.Type),
		Status:      models.AttachmentStatus(a.Status),
		Metadata:    meta,
		CreatedAt:   a.CreatedAt,
	}, nil
}
