package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/failure"
	"github.com/finora-labs/chat-sync/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP transport.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// TokenProvider supplies the bearer token per request. Optional.
	TokenProvider func() string

	// Headers are added to every request.
	Headers map[string]string

	TLSSkipVerify bool
}

// HTTPClient is the http.Client-backed transport implementation.
type HTTPClient struct {
	baseURL       string
	client        *http.Client
	tokenProvider func() string
	headers       map[string]string
}

// NewHTTPClient creates a transport rooted at cfg.BaseURL.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transport base URL must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpTransport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
	}

	logging.LogDebugf("Created chat transport: %s", cfg.BaseURL)

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: httpTransport,
		},
		tokenProvider: cfg.TokenProvider,
		headers:       cfg.Headers,
	}, nil
}

// SendRequest performs one request and returns the decoded envelope.
// Transport-level errors are classified as network failures; non-2xx
// responses are mapped onto the failure taxonomy by status and verb.
func (c *HTTPClient) SendRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, failure.Wrap(err, failure.TypeParse, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, failure.Wrap(err, failure.TypeUnknown, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.tokenProvider != nil {
		if token := c.tokenProvider(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logging.LogDebugf("chat transport request: %s %s", method, path)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, failure.Wrap(err, failure.TypeNetwork, "request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, failure.Wrap(err, failure.TypeNetwork, "failed to read response")
	}

	metrics.RequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	var envelope Envelope
	decodeErr := json.Unmarshal(payload, &envelope)

	// Classify by status first: gateways answer with non-JSON bodies on
	// 502/503 and those are not parse failures.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := envelope.Error
		if message == "" {
			message = "request rejected with status " + resp.Status
		}
		return nil, failure.New(classifyStatus(method, resp.StatusCode), message)
	}

	if decodeErr != nil {
		return nil, failure.Wrap(decodeErr, failure.TypeParse, "malformed response envelope")
	}

	if !envelope.Success {
		message := envelope.Error
		if message == "" {
			message = "backend reported an unsuccessful operation"
		}
		return nil, failure.New(failure.TypeParse, message)
	}

	return &envelope, nil
}

// classifyStatus maps an HTTP error status onto the failure taxonomy,
// falling back to the verb-derived type for server-side errors.
func classifyStatus(method string, status int) failure.Type {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return failure.TypeAuth
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return failure.TypeValidation
	}

	switch method {
	case http.MethodGet:
		return failure.TypeFetch
	case http.MethodPost:
		return failure.TypeInsert
	case http.MethodPut:
		return failure.TypeUpdate
	case http.MethodDelete:
		return failure.TypeDelete
	}
	return failure.TypeUnknown
}
