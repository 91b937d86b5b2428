// Package transport implements the authenticated HTTP capability the chat
// client talks through. Responses are carried in a uniform envelope of
// shape {success, data, pagination}.
package transport

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/finora-labs/chat-sync/pkg/failure"
)

// Pagination is the page descriptor the backend attaches to list responses.
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
	Limit      int `json:"limit"`
}

// Envelope is the backend's response wrapper. The success flag alone is not
// trusted; callers decode Data and treat shape mismatches as parse failures.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Decode unmarshals the envelope payload into v. A missing payload or a
// JSON shape mismatch is a parse failure.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return failure.New(failure.TypeParse, "response envelope has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return failure.Wrap(err, failure.TypeParse, "failed to decode response data")
	}
	return nil
}

// Client performs one authenticated request against the chat backend.
type Client interface {
	SendRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*Envelope, error)
}
