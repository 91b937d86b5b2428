package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/metrics"
	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// MessagesHandler handles message endpoints
type MessagesHandler struct {
	store    *storage.Store
	upgrader websocket.Upgrader
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(store *storage.Store) *MessagesHandler {
	return &MessagesHandler{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}
}

// Routes returns message routes
func (h *MessagesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.SendMessage)
	r.Put("/{id}", h.UpdateMessage)
	r.Delete("/{id}", h.DeleteMessage)
	r.Get("/{id}/attachments", h.ListAttachments)
	r.Post("/{id}/attachments", h.CreateAttachment)

	return r
}

// ListMessages returns one page of a conversation's messages in creation
// order. Mounted under the conversation routes.
func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	page, limit := parsePageQuery(r, viper.GetInt("MESSAGE_PAGE_SIZE"))

	records, total, err := h.store.ListMessages(userID, convID, page, limit)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Conversation not found")
		} else {
			logging.LogErrorf(err, "Failed to list messages")
			respondError(w, r, http.StatusInternalServerError, "Failed to list messages")
		}
		return
	}

	messages := make([]models.ChatMessage, 0, len(records))
	for i := range records {
		wire, err := records[i].ToWire()
		if err != nil {
			logging.LogErrorf(err, "Failed to encode message %s", records[i].ID)
			respondError(w, r, http.StatusInternalServerError, "Failed to encode messages")
			return
		}
		messages = append(messages, *wire)
	}

	respondList(w, r, messages, page, limit, total)
}

// SendMessage persists a message in one of the user's conversations and
// returns the stored record, timestamps and all.
func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Content == "" {
		respondError(w, r, http.StatusUnprocessableEntity, "Message content is required")
		return
	}
	if req.ConversationID == uuid.Nil {
		respondError(w, r, http.StatusUnprocessableEntity, "Conversation ID is required")
		return
	}
	if !req.Role.Valid() {
		respondError(w, r, http.StatusUnprocessableEntity, "Invalid message role")
		return
	}

	record := storage.Message{
		ID:             uuid.New(),
		ConversationID: req.ConversationID,
		UserID:         userID,
		Role:           string(req.Role),
		Content:        req.Content,
	}
	if req.Metadata != nil {
		doc, err := json.Marshal(req.Metadata)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "Invalid message metadata")
			return
		}
		record.Metadata = doc
	}

	if err := h.store.CreateMessage(&record); err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Conversation not found")
		} else {
			logging.LogErrorf(err, "Failed to save message")
			respondError(w, r, http.StatusInternalServerError, "Failed to save message")
		}
		return
	}

	metrics.MessagesStoredTotal.WithLabelValues(string(req.Role)).Inc()
	logging.LogDebugf("Stored message %s in conversation %s", record.ID, record.ConversationID)

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode message")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode message")
		return
	}
	respondData(w, r, http.StatusCreated, wire)
}

// UpdateMessage applies a partial update to one of the user's messages.
func (h *MessagesHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req models.UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content != nil && *req.Content == "" {
		respondError(w, r, http.StatusUnprocessableEntity, "Message content must not be empty")
		return
	}

	record, err := h.store.UpdateMessage(userID, messageID, &req)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Message not found")
		} else {
			logging.LogErrorf(err, "Failed to update message")
			respondError(w, r, http.StatusInternalServerError, "Failed to update message")
		}
		return
	}

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode message")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode message")
		return
	}
	respondData(w, r, http.StatusOK, wire)
}

// DeleteMessage removes one of the user's messages.
func (h *MessagesHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid message ID")
		return
	}

	if err := h.store.DeleteMessage(userID, messageID); err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Message not found")
		} else {
			logging.LogErrorf(err, "Failed to delete message")
			respondError(w, r, http.StatusInternalServerError, "Failed to delete message")
		}
		return
	}

	logging.LogDebugf("Deleted message: %s", messageID)
	respondData(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

// StreamMessages accepts messages over a WebSocket and echoes each stored
// record back, so clients can keep a conversation open without polling.
// Mounted under the conversation routes.
func (h *MessagesHandler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetConversation(userID, convID); err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogErrorf(err, "Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	logging.LogDebugf("WebSocket connection established: conversation=%s user=%s", convID, userID)

	for {
		var req models.SendMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.LogDebugf("WebSocket closed normally")
			} else {
				logging.LogErrorf(err, "WebSocket read error")
			}
			break
		}

		if req.Content == "" {
			conn.WriteJSON(map[string]string{"error": "Message content is required"})
			continue
		}
		role := req.Role
		if !role.Valid() {
			role = models.RoleUser
		}

		record := storage.Message{
			ID:             uuid.New(),
			ConversationID: convID,
			UserID:         userID,
			Role:           string(role),
			Content:        req.Content,
		}
		if err := h.store.CreateMessage(&record); err != nil {
			logging.LogErrorf(err, "Failed to save streamed message")
			conn.WriteJSON(map[string]string{"error": "Failed to save message"})
			continue
		}

		metrics.MessagesStoredTotal.WithLabelValues(string(role)).Inc()

		wire, err := record.ToWire()
		if err != nil {
			logging.LogErrorf(err, "Failed to encode streamed message")
			continue
		}
		conn.WriteJSON(map[string]interface{}{
			"type":    "message_stored",
			"message": wire,
		})
	}
}
