package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/spf13/viper"

	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// ConversationsHandler handles conversation endpoints
type ConversationsHandler struct {
	store *storage.Store
}

// NewConversationsHandler creates a new conversations handler
func NewConversationsHandler(store *storage.Store) *ConversationsHandler {
	return &ConversationsHandler{
		store: store,
	}
}

// Routes returns conversation routes
func (h *ConversationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListConversations)
	r.Post("/", h.CreateConversation)
	r.Get("/{id}", h.GetConversation)
	r.Put("/{id}", h.UpdateConversation)
	r.Put("/{id}/context", h.UpdateSessionContext)

	return r
}

// ListConversations returns one page of the user's active conversations,
// newest activity first.
func (h *ConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	page, limit := parsePageQuery(r, viper.GetInt("CONVERSATION_PAGE_SIZE"))

	conversations, total, err := h.store.ListConversations(userID, page, limit)
	if err != nil {
		logging.LogErrorf(err, "Failed to list conversations")
		respondError(w, r, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for i := range conversations {
		summaries = append(summaries, conversations[i].ToSummary())
	}

	respondList(w, r, summaries, page, limit, total)
}

// CreateConversation creates a new conversation
func (h *ConversationsHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Set defaults
	if req.Title == "" {
		req.Title = "New Conversation"
	}
	if req.ContextType == "" {
		req.ContextType = models.ContextGeneral
	}
	if req.SessionType == "" {
		req.SessionType = models.SessionChat
	}

	record := storage.Conversation{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       req.Title,
		ContextType: string(req.ContextType),
		SessionType: string(req.SessionType),
		IsActive:    true,
	}
	if req.SessionContext != nil {
		doc, err := json.Marshal(req.SessionContext)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "Invalid session context")
			return
		}
		record.SessionContext = doc
	}

	if err := h.store.CreateConversation(&record); err != nil {
		logging.LogErrorf(err, "Failed to create conversation")
		respondError(w, r, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	logging.LogDebugf("Created conversation: %s for user: %s", record.ID, userID)

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode conversation")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode conversation")
		return
	}
	respondData(w, r, http.StatusCreated, wire)
}

// GetConversation returns a specific conversation
func (h *ConversationsHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	record, err := h.store.GetConversation(userID, convID)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Conversation not found")
		} else {
			logging.LogErrorf(err, "Failed to get conversation")
			respondError(w, r, http.StatusInternalServerError, "Failed to get conversation")
		}
		return
	}

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode conversation")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode conversation")
		return
	}
	respondData(w, r, http.StatusOK, wire)
}

// UpdateConversation applies a partial update. Clearing is_active is how
// clients delete a conversation.
func (h *ConversationsHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title != nil && *req.Title == "" {
		respondError(w, r, http.StatusUnprocessableEntity, "Title must not be empty")
		return
	}

	record, err := h.store.UpdateConversation(userID, convID, &req)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Conversation not found")
		} else {
			logging.LogErrorf(err, "Failed to update conversation")
			respondError(w, r, http.StatusInternalServerError, "Failed to update conversation")
		}
		return
	}

	logging.LogDebugf("Updated conversation: %s", convID)

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode conversation")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode conversation")
		return
	}
	respondData(w, r, http.StatusOK, wire)
}

// UpdateSessionContext stores the merged session context pushed by the
// client after a send.
func (h *ConversationsHandler) UpdateSessionContext(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.SessionContextUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ContextUpdates == nil {
		respondError(w, r, http.StatusUnprocessableEntity, "Context updates are required")
		return
	}

	record, err := h.store.UpdateSessionContext(userID, convID, req.ContextUpdates)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Conversation not found")
		} else {
			logging.LogErrorf(err, "Failed to update session context")
			respondError(w, r, http.StatusInternalServerError, "Failed to update session context")
		}
		return
	}

	logging.LogDebugf("Updated session context for conversation: %s", record.ID)
	respondData(w, r, http.StatusOK, map[string]bool{"updated": true})
}
