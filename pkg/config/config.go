package config

import (
	"fmt"
	"runtime"

	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

// Build information. Populated at build-time.
var (
	Name      string = "chat-sync"
	Version   string
	Branch    string
	Commit    string
	BuildUser string
	GoVersion = runtime.Version()
)

const (
	// EnvPrefix is a prefix to all ENV variables used in this app
	EnvPrefix = "CHAT_SYNC"
	// APIPrefixV1 URL prefix in API version 1
	APIPrefixV1 = "/api/v1"
	// MigrationVersion tracks the schema generation applied on startup
	MigrationVersion = 1

	// ##### GENERAL VARIABLES
	// Debug is a flag used to display debug messages
	Debug = false
	// DebugCORS is a flag used to display CORS debug messages
	DebugCORS = false
	// HumanReadableLogs set to true disables JSON formatting of logging
	HumanReadableLogs = false
	// DefaultHost default host for the service
	DefaultHost = "localhost"
	// DefaultPort default port the service is served on
	DefaultPort = "8080"
	// DefaultCorsHosts default cors hosts for local development
	DefaultCorsHosts = "https://localhost:3000 http://localhost:3456"

	// ##### DATABASE VARIABLES

	// DefaultDBHost default host for the database connection
	DefaultDBHost = "localhost"
	// DefaultDBPort default port for the database connection
	DefaultDBPort = "5440"
	// DefaultDBName default name for the database connection
	DefaultDBName = "chat-sync"
	// DefaultDBUser default user for the database connection
	DefaultDBUser = "postgres"
	// DefaultDBPassword default password for the database connection
	DefaultDBPassword = "postgres"
	// DefaultDBSSLMode default ssl mode for the database connection
	DefaultDBSSLMode = "disable"

	// ##### AUTHENTICATION VARIABLES

	// DefaultAuthHeaderName defines the name of the auth header
	DefaultAuthHeaderName = "Authorization"
	// DefaultJWTSecret is the local development HS256 signing key.
	// It is not a production secret; deployments set CHAT_SYNC_JWT_SECRET.
	DefaultJWTSecret = "finora-local-dev-secret" // #nosec
	// DefaultJWTKeysURL is the remote JWK set used in deployed environments.
	// Empty means local HS256 validation.
	DefaultJWTKeysURL = ""

	// ##### CLIENT SYNC VARIABLES

	// DefaultAPIBaseURL is where the sync client reaches the chat backend
	DefaultAPIBaseURL = "http://localhost:8080/api/v1"
	// DefaultConversationPageSize is the page size for the conversation feed
	DefaultConversationPageSize = 20
	// DefaultMessagePageSize is the page size for the message feed
	DefaultMessagePageSize = 50
	// DefaultReadRetryAttempts bounds retries on fetches
	DefaultReadRetryAttempts = 3
	// DefaultWriteRetryAttempts bounds retries on mutations
	DefaultWriteRetryAttempts = 2
)

// ErrorMessage defines the type for the errors channel
type ErrorMessage struct {
	Message string
	Err     error
}

func bindEnvVariable(name string, fallback interface{}) {
	if fallback != "" {
		viper.SetDefault(name, fallback)
	}
	err := viper.BindEnv(name)
	if err != nil {
		// cannot use logging.LogError due to import cycle
		fmt.Printf("Error binding Env Variable: %v", err)
	}
}

// SetupEnv configures app to read ENV variables
func SetupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	// General
	bindEnvVariable("DEBUG", Debug)
	bindEnvVariable("HUMAN_READABLE_LOGS", HumanReadableLogs)
	bindEnvVariable("DEBUG_CORS", DebugCORS)
	bindEnvVariable("HOST", DefaultHost)
	bindEnvVariable("PORT", DefaultPort)
	bindEnvVariable("CORS_HOSTS", DefaultCorsHosts)
	bindEnvVariable("HTTP_MAX_PARALLEL_REQUESTS", 8)
	bindEnvVariable("HTTP_REQUEST_TIMEOUT", "60s")
	// Database
	bindEnvVariable("DB_HOST", DefaultDBHost)
	bindEnvVariable("DB_PORT", DefaultDBPort)
	bindEnvVariable("DB_NAME", DefaultDBName)
	bindEnvVariable("DB_USER", DefaultDBUser)
	bindEnvVariable("DB_PASS", DefaultDBPassword)
	bindEnvVariable("DB_SSL_MODE", DefaultDBSSLMode)
	// Authentication
	bindEnvVariable("AUTH_HEADER_NAME", DefaultAuthHeaderName)
	bindEnvVariable("JWT_SECRET", DefaultJWTSecret)
	bindEnvVariable("JWT_KEYS_URL", DefaultJWTKeysURL)
	// Client sync
	bindEnvVariable("API_BASE_URL", DefaultAPIBaseURL)
	bindEnvVariable("API_TIMEOUT", "30s")
	bindEnvVariable("CONVERSATION_PAGE_SIZE", DefaultConversationPageSize)
	bindEnvVariable("MESSAGE_PAGE_SIZE", DefaultMessagePageSize)
	bindEnvVariable("READ_RETRY_ATTEMPTS", DefaultReadRetryAttempts)
	bindEnvVariable("WRITE_RETRY_ATTEMPTS", DefaultWriteRetryAttempts)
}

// CorsConfig stores default configuration for CORS middleware
func CorsConfig(corsHosts []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   corsHosts,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Language"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true, // header "Access-Control-Allow-Credentials" is not present if this is set to false
		MaxAge:           300,  // Maximum value not ignored by any of major browsers,
		Debug:            viper.GetBool("DEBUG_CORS"),
	}
}
