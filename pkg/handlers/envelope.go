package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/finora-labs/chat-sync/pkg/transport"
)

// envelope is the uniform response body: data on success, a message on
// failure, page info on list endpoints.
type envelope struct {
	Success    bool                  `json:"success"`
	Data       interface{}           `json:"data,omitempty"`
	Pagination *transport.Pagination `json:"pagination,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, r *http.Request, data interface{}, page, limit int, total int64) {
	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	render.JSON(w, r, envelope{
		Success: true,
		Data:    data,
		Pagination: &transport.Pagination{
			Page:       page,
			TotalPages: totalPages,
			Total:      int(total),
			Limit:      limit,
		},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Success: false, Error: message})
}

// parsePageQuery reads page and limit query parameters, falling back to
// the given defaults and clamping nonsense values.
func parsePageQuery(r *http.Request, defaultLimit int) (int, int) {
	// a misconfigured page size must never reach the divisions downstream
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultLimit)
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
