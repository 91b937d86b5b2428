package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/d4l-data4life/go-svc/pkg/db"

	"github.com/finora-labs/chat-sync/pkg/models"
)

const summaryPreviewLength = 120

var (
	// ErrNotFound is returned when a record does not exist or is not
	// visible to the requesting user.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when an attachment status change
	// is not allowed by the lifecycle.
	ErrInvalidTransition = errors.New("invalid attachment status transition")
)

// Store wraps the database connection with the queries the handlers need.
// Every query is scoped to a user id; a row owned by someone else behaves
// like a missing row.
type Store struct {
	conn *gorm.DB
}

// NewStore creates a store on an explicit connection.
func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

// Default returns a store on the service-wide connection.
func Default() *Store {
	return &Store{conn: db.Get()}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(user *User) error {
	return errors.Wrap(s.conn.Create(user).Error, "failed to create user")
}

// FindUserByEmail looks an account up by email.
func (s *Store) FindUserByEmail(email string) (*User, error) {
	var user User
	if err := s.conn.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByID looks an account up by id.
func (s *Store) FindUserByID(id uuid.UUID) (*User, error) {
	var user User
	if err := s.conn.First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ListConversations returns one page of the user's active conversations,
// newest activity first, plus the total count of the feed.
func (s *Store) ListConversations(userID uuid.UUID, page, limit int) ([]Conversation, int64, error) {
	scope := s.conn.Model(&Conversation{}).
		Where("user_id = ? AND is_active = ?", userID, true)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count conversations")
	}

	var conversations []Conversation
	err := scope.
		Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list conversations")
	}
	return conversations, total, nil
}

// GetConversation returns one of the user's conversations.
func (s *Store) GetConversation(userID, id uuid.UUID) (*Conversation, error) {
	var conversation Conversation
	err := s.conn.
		Where("id = ? AND user_id = ?", id, userID).
		First(&conversation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conversation, nil
}

// CreateConversation inserts a new conversation.
func (s *Store) CreateConversation(conversation *Conversation) error {
	return errors.Wrap(s.conn.Create(conversation).Error, "failed to create conversation")
}

// UpdateConversation applies a partial update. Setting is_active to false
// is the soft delete: the row stays, the listing drops it.
func (s *Store) UpdateConversation(userID, id uuid.UUID, req *models.UpdateConversationRequest) (*Conversation, error) {
	conversation, err := s.GetConversation(userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return conversation, nil
	}

	if err := s.conn.Model(conversation).Updates(updates).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update conversation")
	}
	return conversation, nil
}

// UpdateSessionContext replaces the stored session context with the merged
// document pushed by the client.
func (s *Store) UpdateSessionContext(userID, id uuid.UUID, sc *models.SessionContext) (*Conversation, error) {
	conversation, err := s.GetConversation(userID, id)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(sc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session context")
	}
	err = s.conn.Model(conversation).Update("session_context", doc).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to update session context")
	}
	return conversation, nil
}

// ListMessages returns one page of a conversation's messages in creation
// order, plus the total count.
func (s *Store) ListMessages(userID, conversationID uuid.UUID, page, limit int) ([]Message, int64, error) {
	if _, err := s.GetConversation(userID, conversationID); err != nil {
		return nil, 0, err
	}

	scope := s.conn.Model(&Message{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count messages")
	}

	var messages []Message
	err := scope.
		Order("created_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list messages")
	}
	return messages, total, nil
}

// GetMessage returns one of the user's messages.
func (s *Store) GetMessage(userID, id uuid.UUID) (*Message, error) {
	var message Message
	err := s.conn.
		Where("id = ? AND user_id = ?", id, userID).
		First(&message).Error
	if err != nil {
		return nil, translate(err)
	}
	return &message, nil
}

// CreateMessage inserts a message and refreshes the conversation's
// denormalized summary columns in the same transaction.
func (s *Store) CreateMessage(message *Message) error {
	return s.conn.Transaction(func(tx *gorm.DB) error {
		var conversation Conversation
		err := tx.
			Where("id = ? AND user_id = ?", message.ConversationID, message.UserID).
			First(&conversation).Error
		if err != nil {
			return translate(err)
		}

		if err := tx.Create(message).Error; err != nil {
			return errors.Wrap(err, "failed to create message")
		}

		return tx.Model(&conversation).Updates(map[string]interface{}{
			"message_count":        gorm.Expr("message_count + 1"),
			"last_message_at":      message.CreatedAt,
			"last_message_preview": TruncatePreview(message.Content),
		}).Error
	})
}

// UpdateMessage applies a partial update to a message.
func (s *Store) UpdateMessage(userID, id uuid.UUID, req *models.UpdateMessageRequest) (*Message, error) {
	message, err := s.GetMessage(userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Metadata != nil {
		doc, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode message metadata")
		}
		updates["metadata"] = doc
	}
	if req.TokensUsed != nil {
		updates["tokens_used"] = *req.TokensUsed
	}
	if req.ProcessingTimeMs != nil {
		updates["processing_time_ms"] = *req.ProcessingTimeMs
	}
	if len(updates) == 0 {
		return message, nil
	}

	if err := s.conn.Model(message).Updates(updates).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update message")
	}
	return message, nil
}

// DeleteMessage removes a message and repairs the conversation's
// denormalized summary columns from the surviving rows.
func (s *Store) DeleteMessage(userID, id uuid.UUID) error {
	return s.conn.Transaction(func(tx *gorm.DB) error {
		message := Message{}
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&message).Error
		if err != nil {
			return translate(err)
		}

		if err := tx.Delete(&message).Error; err != nil {
			return errors.Wrap(err, "failed to delete message")
		}

		var last Message
		updates := map[string]interface{}{
			"message_count": gorm.Expr("message_count - 1"),
		}
		err = tx.
			Where("conversation_id = ?", message.ConversationID).
			Order("created_at DESC").
			First(&last).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			updates["last_message_at"] = (*time.Time)(nil)
			updates["last_message_preview"] = ""
		case err != nil:
			return errors.Wrap(err, "failed to find latest message")
		default:
			updates["last_message_at"] = last.CreatedAt
			updates["last_message_preview"] = TruncatePreview(last.Content)
		}

		return tx.Model(&Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(updates).Error
	})
}

// ListAttachments returns the attachments of one of the user's messages.
func (s *Store) ListAttachments(userID, messageID uuid.UUID) ([]Attachment, error) {
	if _, err := s.GetMessage(userID, messageID); err != nil {
		return nil, err
	}

	var attachments []Attachment
	err := s.conn.
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list attachments")
	}
	return attachments, nil
}

// CreateAttachment inserts an attachment and bumps the owning message's
// attachment count inside its metadata document.
func (s *Store) CreateAttachment(userID uuid.UUID, attachment *Attachment) error {
	return s.conn.Transaction(func(tx *gorm.DB) error {
		message := Message{}
		err := tx.Where("id = ? AND user_id = ?", attachment.MessageID, userID).First(&message).Error
		if err != nil {
			return translate(err)
		}

		if err := tx.Create(attachment).Error; err != nil {
			return errors.Wrap(err, "failed to create attachment")
		}

		meta := models.MessageMetadata{}
		if len(message.Metadata) > 0 {
			if err := json.Unmarshal(message.Metadata, &meta); err != nil {
				return errors.Wrap(err, "failed to decode message metadata")
			}
		}
		meta.AttachmentCount++
		doc, err := json.Marshal(&meta)
		if err != nil {
			return errors.Wrap(err, "failed to encode message metadata")
		}
		return tx.Model(&message).Update("metadata", doc).Error
	})
}

// AdvanceAttachmentStatus moves an attachment along its lifecycle,
// rejecting transitions the state machine does not allow.
func (s *Store) AdvanceAttachmentStatus(userID, id uuid.UUID, next models.AttachmentStatus) (*Attachment, error) {
	var attachment Attachment
	err := s.conn.
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("attachments.id = ? AND messages.user_id = ?", id, userID).
		First(&attachment).Error
	if err != nil {
		return nil, translate(err)
	}

	if !models.AttachmentStatus(attachment.Status).CanTransition(next) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", attachment.Status, next)
	}

	if err := s.conn.Model(&attachment).Update("status", string(next)).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update attachment status")
	}
	return &attachment, nil
}

// TruncatePreview shortens message content to the stored preview length
// without splitting a multibyte rune.
func TruncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryPreviewLength {
		return content
	}
	return string(runes[:summaryPreviewLength])
}
