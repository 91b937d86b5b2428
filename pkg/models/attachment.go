package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttachmentType is the classification derived from an attachment's
// declared MIME type.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
	AttachmentPDF      AttachmentType = "pdf"
	AttachmentCSV      AttachmentType = "csv"
	AttachmentJSON     AttachmentType = "json"
	AttachmentText     AttachmentType = "text"
	AttachmentOther    AttachmentType = "other"
)

// AttachmentStatus is the lifecycle state of an attachment. The happy path
// is linear (uploading → uploaded → processing → processed); error and
// deleted are absorbing and reachable from any non-terminal state.
type AttachmentStatus string

const (
	StatusUploading  AttachmentStatus = "uploading"
	StatusUploaded   AttachmentStatus = "uploaded"
	StatusProcessing AttachmentStatus = "processing"
	StatusProcessed  AttachmentStatus = "processed"
	StatusError      AttachmentStatus = "error"
	StatusDeleted    AttachmentStatus = "deleted"
)

// Terminal reports whether the status is absorbing.
func (s AttachmentStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusError || s == StatusDeleted
}

// nextStatus maps each state to its linear successor.
var nextStatus = map[AttachmentStatus]AttachmentStatus{
	StatusUploading:  StatusUploaded,
	StatusUploaded:   StatusProcessing,
	StatusProcessing: StatusProcessed,
}

// CanTransition reports whether from → to is a legal lifecycle step.
func (s AttachmentStatus) CanTransition(to AttachmentStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusError || to == StatusDeleted {
		return true
	}
	return nextStatus[s] == to
}

// Per-type size caps in bytes.
const (
	maxImageSize    = 10 << 20
	maxDocumentSize = 25 << 20
	maxTextSize     = 5 << 20
	maxOtherSize    = 15 << 20
)

// MaxSize returns the size cap for the attachment type.
func (t AttachmentType) MaxSize() int64 {
	switch t {
	case AttachmentImage:
		return maxImageSize
	case AttachmentDocument, AttachmentPDF:
		return maxDocumentSize
	case AttachmentCSV, AttachmentJSON, AttachmentText:
		return maxTextSize
	default:
		return maxOtherSize
	}
}

// ClassifyMIME derives the attachment type from a declared MIME type.
func ClassifyMIME(mimeType string) AttachmentType {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return AttachmentImage
	case mt == "application/pdf":
		return AttachmentPDF
	case mt == "text/csv", mt == "application/csv":
		return AttachmentCSV
	case mt == "application/json":
		return AttachmentJSON
	case strings.HasPrefix(mt, "text/"):
		return AttachmentText
	case strings.HasPrefix(mt, "application/vnd."),
		mt == "application/msword",
		mt == "application/rtf":
		return AttachmentDocument
	default:
		return AttachmentOther
	}
}

// ChatAttachment is a file attached to a message.
type ChatAttachment struct {
	ID          uuid.UUID         `json:"id"`
	MessageID   uuid.UUID         `json:"message_id"`
	FileName    string            `json:"file_name"`
	MimeType    string            `json:"mime_type"`
	SizeBytes   int64             `json:"size_bytes"`
	StoragePath string            `json:"storage_path"`
	Type        AttachmentType    `json:"type"`
	Status      AttachmentStatus  `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// AttachmentRules configures attachment validation. An empty AllowedTypes
// list allows every classification.
type AttachmentRules struct {
	AllowedTypes []AttachmentType
}

// Validate checks size caps and the allowed-type list. The derived Type is
// recomputed from MimeType before checking.
func (a *ChatAttachment) Validate(rules AttachmentRules) error {
	a.Type = ClassifyMIME(a.MimeType)

	if a.FileName == "" {
		return fmt.Errorf("attachment file name must not be empty")
	}
	if a.SizeBytes <= 0 {
		return fmt.Errorf("attachment size must be positive, got %d", a.SizeBytes)
	}
	if limit := a.Type.MaxSize(); a.SizeBytes > limit {
		return fmt.Errorf("attachment of type %s exceeds %d byte limit: %d", a.Type, limit, a.SizeBytes)
	}

	if len(rules.AllowedTypes) > 0 {
		for _, t := range rules.AllowedTypes {
			if a.Type == t {
				return nil
			}
		}
		return fmt.Errorf("attachment type %s is not allowed", a.Type)
	}

	return nil
}
