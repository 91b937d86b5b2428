package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// CreateAttachmentRequest is the body for POST /messages/{id}/attachments.
type CreateAttachmentRequest struct {
	FileName    string            `json:"file_name"`
	MimeType    string            `json:"mime_type"`
	SizeBytes   int64             `json:"size_bytes"`
	StoragePath string            `json:"storage_path"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// UpdateAttachmentStatusRequest is the body for PUT /attachments/{id}/status.
type UpdateAttachmentStatusRequest struct {
	Status models.AttachmentStatus `json:"status"`
}

// ListAttachments returns the attachments of one of the user's messages.
func (h *MessagesHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid message ID")
		return
	}

	records, err := h.store.ListAttachments(userID, messageID)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Message not found")
		} else {
			logging.LogErrorf(err, "Failed to list attachments")
			respondError(w, r, http.StatusInternalServerError, "Failed to list attachments")
		}
		return
	}

	attachments := make([]models.ChatAttachment, 0, len(records))
	for i := range records {
		wire, err := records[i].ToWire()
		if err != nil {
			logging.LogErrorf(err, "Failed to encode attachment %s", records[i].ID)
			respondError(w, r, http.StatusInternalServerError, "Failed to encode attachments")
			return
		}
		attachments = append(attachments, wire)
	}

	respondData(w, r, http.StatusOK, attachments)
}

// CreateAttachment validates and registers an attachment on one of the
// user's messages. The file content itself goes to object storage; only
// its descriptor lands here.
func (h *MessagesHandler) CreateAttachment(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req CreateAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	attachment := models.ChatAttachment{
		ID:          uuid.New(),
		MessageID:   messageID,
		FileName:    req.FileName,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		StoragePath: req.StoragePath,
		Status:      models.StatusUploading,
		Metadata:    req.Metadata,
	}
	if err := attachment.Validate(models.AttachmentRules{}); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	record := storage.Attachment{
		ID:          attachment.ID,
		MessageID:   messageID,
		FileName:    attachment.FileName,
		MimeType:    attachment.MimeType,
		Type:        string(attachment.Type),
		SizeBytes:   attachment.SizeBytes,
		StoragePath: attachment.StoragePath,
		Status:      string(attachment.Status),
	}
	if len(req.Metadata) > 0 {
		doc, err := json.Marshal(req.Metadata)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "Invalid attachment metadata")
			return
		}
		record.Metadata = doc
	}

	if err := h.store.CreateAttachment(userID, &record); err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "Message not found")
		} else {
			logging.LogErrorf(err, "Failed to create attachment")
			respondError(w, r, http.StatusInternalServerError, "Failed to create attachment")
		}
		return
	}

	logging.LogDebugf("Registered attachment %s on message %s", record.ID, messageID)

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode attachment")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode attachment")
		return
	}
	respondData(w, r, http.StatusCreated, wire)
}

// UpdateAttachmentStatus moves an attachment along its lifecycle.
func (h *MessagesHandler) UpdateAttachmentStatus(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	attachmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid attachment ID")
		return
	}

	var req UpdateAttachmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.store.AdvanceAttachmentStatus(userID, attachmentID, req.Status)
	if err != nil {
		switch {
		case err == storage.ErrNotFound:
			respondError(w, r, http.StatusNotFound, "Attachment not found")
		case errors.Is(err, storage.ErrInvalidTransition):
			respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			logging.LogErrorf(err, "Failed to update attachment status")
			respondError(w, r, http.StatusInternalServerError, "Failed to update attachment status")
		}
		return
	}

	wire, err := record.ToWire()
	if err != nil {
		logging.LogErrorf(err, "Failed to encode attachment")
		respondError(w, r, http.StatusInternalServerError, "Failed to encode attachment")
		return
	}
	respondData(w, r, http.StatusOK, wire)
}
