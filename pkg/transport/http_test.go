package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finora-labs/chat-sync/pkg/failure"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewHTTPClient(Config{
		BaseURL:       server.URL,
		TokenProvider: func() string { return "test-token" },
		Headers:       map[string]string{"X-Client": "chat-sync-test"},
	})
	require.NoError(t, err)
	return client, server
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(Config{})
	require.Error(t, err)
}

func TestSendRequestDecodesEnvelope(t *testing.T) {
	var gotAuth, gotClient, gotAccept string
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClient = r.Header.Get("X-Client")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {"title": "Tech holdings"},
			"pagination": {"page": 1, "totalPages": 3, "total": 42, "limit": 20}
		}`))
	})

	query := url.Values{"page": {"1"}, "limit": {"20"}}
	envelope, err := client.SendRequest(context.Background(), http.MethodGet, "/conversations", query, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "chat-sync-test", gotClient)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "1", gotQuery.Get("page"))

	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 3, envelope.Pagination.TotalPages)
	assert.Equal(t, 42, envelope.Pagination.Total)

	var payload struct {
		Title string `json:"title"`
	}
	require.NoError(t, envelope.Decode(&payload))
	assert.Equal(t, "Tech holdings", payload.Title)
}

func TestSendRequestEncodesBody(t *testing.T) {
	var gotBody map[string]interface{}
	var gotContentType string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"success": true, "data": {}}`))
	})

	body := map[string]string{"content": "Hello"}
	_, err := client.SendRequest(context.Background(), http.MethodPost, "/messages", nil, body)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Hello", gotBody["content"])
}

func TestSendRequestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
		want   failure.Type
	}{
		{"unauthorized", http.MethodGet, http.StatusUnauthorized, failure.TypeAuth},
		{"forbidden", http.MethodPost, http.StatusForbidden, failure.TypeAuth},
		{"bad request", http.MethodPost, http.StatusBadRequest, failure.TypeValidation},
		{"unprocessable", http.MethodPut, http.StatusUnprocessableEntity, failure.TypeValidation},
		{"server error on read", http.MethodGet, http.StatusInternalServerError, failure.TypeFetch},
		{"server error on create", http.MethodPost, http.StatusInternalServerError, failure.TypeInsert},
		{"server error on update", http.MethodPut, http.StatusBadGateway, failure.TypeUpdate},
		{"server error on delete", http.MethodDelete, http.StatusInternalServerError, failure.TypeDelete},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"success": false, "error": "backend rejected the request"}`))
			})

			_, err := client.SendRequest(context.Background(), tc.method, "/conversations", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tc.want, failure.TypeOf(err))
			assert.Contains(t, err.Error(), "rejected")
		})
	}
}

func TestSendRequestUnsuccessfulEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "conversation not found"}`))
	})

	_, err := client.SendRequest(context.Background(), http.MethodGet, "/conversations/abc", nil, nil)
	require.Error(t, err)
	assert.Equal(t, failure.TypeParse, failure.TypeOf(err))
	assert.Contains(t, err.Error(), "conversation not found")
}

func TestSendRequestMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.SendRequest(context.Background(), http.MethodGet, "/conversations", nil, nil)
	require.Error(t, err)
	assert.Equal(t, failure.TypeParse, failure.TypeOf(err))
}

func TestSendRequestNonJSONGatewayError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`<html><body>503 Service Unavailable</body></html>`))
	})

	_, err := client.SendRequest(context.Background(), http.MethodGet, "/conversations", nil, nil)
	require.Error(t, err)
	assert.Equal(t, failure.TypeFetch, failure.TypeOf(err))
	assert.Contains(t, err.Error(), "503")
}

func TestSendRequestConnectionRefused(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.SendRequest(context.Background(), http.MethodGet, "/conversations", nil, nil)
	require.Error(t, err)
	assert.Equal(t, failure.TypeNetwork, failure.TypeOf(err))
}

func TestEnvelopeDecodeMissingData(t *testing.T) {
	tests := []struct {
		name string
		data json.RawMessage
	}{
		{"absent", nil},
		{"null", json.RawMessage("null")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			envelope := &Envelope{Success: true, Data: tc.data}
			var out map[string]interface{}
			err := envelope.Decode(&out)
			require.Error(t, err)
			assert.Equal(t, failure.TypeParse, failure.TypeOf(err))
		})
	}
}
