package main

import (
	"context"
	"strings"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	db2 "github.com/d4l-data4life/go-svc/pkg/db"
	"github.com/d4l-data4life/go-svc/pkg/standard"

	"github.com/finora-labs/chat-sync/pkg/config"
	"github.com/finora-labs/chat-sync/pkg/metrics"
	"github.com/finora-labs/chat-sync/pkg/server"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

func main() {
	// Load .env if present, for local development
	_ = godotenv.Load()
	config.SetupEnv()

	dbOpts := db2.NewConnection(
		db2.WithDebug(viper.GetBool("DEBUG")),
		db2.WithHost(viper.GetString("DB_HOST")),
		db2.WithPort(viper.GetString("DB_PORT")),
		db2.WithDatabaseName(viper.GetString("DB_NAME")),
		db2.WithUser(viper.GetString("DB_USER")),
		db2.WithPassword(viper.GetString("DB_PASS")),
		db2.WithSSLMode(viper.GetString("DB_SSL_MODE")),
		db2.WithMigrationFunc(storage.MigrationFunc),
		db2.WithMigrationVersion(config.MigrationVersion),
	)
	standard.Main(mainAPI, config.Name, standard.WithPostgres(dbOpts))
}

// mainAPI contains the main service logic - it must finish on runCtx cancelation!
func mainAPI(runCtx context.Context, svcName string) <-chan struct{} {
	port := viper.GetString("PORT")
	corsOptions := config.CorsConfig(strings.Split(viper.GetString("CORS_HOSTS"), " "))
	srv := server.NewServer(svcName,
		cors.New(corsOptions),
		viper.GetInt("HTTP_MAX_PARALLEL_REQUESTS"),
		viper.GetDuration("HTTP_REQUEST_TIMEOUT"),
	)

	server.SetupRoutes(srv.Mux())
	metrics.AddBuildInfoMetric()
	return standard.ListenAndServe(runCtx, srv.Mux(), port)
}
