package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/auth"
	"github.com/finora-labs/chat-sync/pkg/config"
	"github.com/finora-labs/chat-sync/pkg/handlers"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// SetupRoutes adds all routes that the server should listen to
func SetupRoutes(mux *chi.Mux) {
	store := storage.Default()
	jwtSecret := []byte(viper.GetString("JWT_SECRET"))
	validator := buildTokenValidator(jwtSecret)

	ch := handlers.NewChecksHandler()
	mux.Mount("/checks", ch.Routes())
	mux.Mount("/metrics", promhttp.Handler())

	authHandler := handlers.NewAuthHandler(store, jwtSecret)
	conversationsHandler := handlers.NewConversationsHandler(store)
	messagesHandler := handlers.NewMessagesHandler(store)

	mux.
		With(RequestLogger()).
		Route(config.APIPrefixV1, func(r chi.Router) {
			// no auth
			r.Mount("/auth", authHandler.Routes())

			// Auth: JWT
			r.Group(func(r chi.Router) {
				r.Use(handlers.AuthMiddleware(store, validator))

				r.Get("/users/me", authHandler.GetCurrentUser)

				r.Mount("/conversations", conversationsHandler.Routes())
				r.Route("/conversations/{id}/messages", func(r chi.Router) {
					r.Get("/", messagesHandler.ListMessages)
					r.Get("/stream", messagesHandler.StreamMessages)
				})

				r.Mount("/messages", messagesHandler.Routes())
				r.Put("/attachments/{id}/status", messagesHandler.UpdateAttachmentStatus)
			})
		})

	// Displays all API paths in when debug enabled
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		route = strings.Replace(route, "/*/", "/", -1)
		logging.LogDebugf("%s %s\n", method, route)
		return nil
	}
	if err := chi.Walk(mux, walkFunc); err != nil {
		logging.LogErrorf(err, "logging error")
	}
}

// buildTokenValidator prefers the remote JWKS endpoint when configured
// and falls back to the local symmetric key.
func buildTokenValidator(jwtSecret []byte) auth.TokenValidator {
	if keysURL := viper.GetString("JWT_KEYS_URL"); keysURL != "" {
		validator, err := auth.NewRemoteKeyStore(context.Background(), keysURL)
		if err == nil {
			return validator
		}
		logging.LogErrorf(err, "Failed to initialize remote key store, falling back to local key")
	}

	validator, err := auth.NewLocalJWTValidator(jwtSecret)
	if err != nil {
		logging.LogError("Failed to initialize local JWT validator", err)
		return nil
	}
	return validator
}
