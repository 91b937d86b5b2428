package server_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/cors"
	"github.com/stretchr/testify/assert"

	"github.com/finora-labs/chat-sync/pkg/config"
	"github.com/finora-labs/chat-sync/pkg/server"
)

// Executed before test runs in this package (fails otherwise)
func TestMain(m *testing.M) {
	config.SetupEnv()
	os.Exit(m.Run())
}

func newTestServer() *server.Server {
	corsOptions := config.CorsConfig([]string{"localhost"})
	srv := server.NewServer("chat-sync-test", cors.New(corsOptions), 8, 10*time.Second)
	srv.Mux().Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`"pong"`))
	})
	return srv
}

func TestServerServesMountedRoute(t *testing.T) {
	srv := newTestServer()

	request := httptest.NewRequest(http.MethodGet, "/ping", strings.NewReader(""))
	writer := httptest.NewRecorder()
	srv.Mux().ServeHTTP(writer, request)

	assert.Equal(t, http.StatusOK, writer.Code)
	assert.Contains(t, writer.Header().Get("Content-Type"), "application/json")
}

func TestCors(t *testing.T) {
	tests := []struct {
		name                  string
		origin                string
		expectHeaders         bool
		expectedHeader        string
		expectedHeaderContent string
	}{
		{
			name:                  "Access-Control-Allow-Origin header should be present",
			origin:                "localhost",
			expectHeaders:         true,
			expectedHeader:        "Access-Control-Allow-Origin",
			expectedHeaderContent: "localhost",
		},
		{
			name:                  "Access-Control-Allow-Credentials header should be present",
			origin:                "localhost",
			expectHeaders:         true,
			expectedHeader:        "Access-Control-Allow-Credentials",
			expectedHeaderContent: "true",
		},
		{
			name:           "Origin matches not",
			origin:         "http://www.example.com",
			expectHeaders:  false,
			expectedHeader: "Access-Control-Allow-Origin",
		},
	}

	srv := newTestServer()

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/ping", strings.NewReader(""))
			request.Header.Set("Origin", test.origin)
			writer := httptest.NewRecorder()

			srv.Mux().ServeHTTP(writer, request)
			if test.expectHeaders {
				assert.Equal(t, test.expectedHeaderContent, writer.Header().Get(test.expectedHeader))
			} else {
				assert.Equal(t, "", writer.Header().Get(test.expectedHeader))
			}
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer()
	srv.Mux().Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	request := httptest.NewRequest(http.MethodGet, "/boom", strings.NewReader(""))
	writer := httptest.NewRecorder()
	srv.Mux().ServeHTTP(writer, request)

	assert.Equal(t, http.StatusInternalServerError, writer.Code)
}
