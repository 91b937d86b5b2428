package main

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	db2 "github.com/d4l-data4life/go-svc/pkg/db"
	"github.com/d4l-data4life/go-svc/pkg/logging"
	"github.com/d4l-data4life/go-svc/pkg/standard"

	"github.com/finora-labs/chat-sync/pkg/config"
	"github.com/finora-labs/chat-sync/pkg/models"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// Inserts a demo account with a couple of conversations, for local
// development against a fresh database.
func main() {
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
	standard.Main(seed, config.Name+"-seed", standard.WithPostgres(dbOpts))
}

func seed(_ context.Context, _ string) <-chan struct{} {
	done := make(chan struct{})
	defer close(done)

	store := storage.Default()

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
	if err != nil {
		logging.LogErrorf(err, "Failed to hash demo password")
		return done
	}

	user := storage.User{
		Email:        "demo@finora.local",
		PasswordHash: string(hash),
		DisplayName:  "Demo User",
	}
	if err := store.CreateUser(&user); err != nil {
		logging.LogErrorf(err, "Failed to create demo user, maybe it already exists")
		return done
	}
	logging.LogInfof("Created demo user %s (demo@finora.local / demo-password)", user.ID)

	topic := "portfolio risk"
	contextDoc, _ := json.Marshal(&models.SessionContext{
		CurrentTopic:     &topic,
		ConversationFlow: []string{"user_message", "assistant_message"},
	})

	conversations := []storage.Conversation{
		{
			ID:             uuid.New(),
			UserID:         user.ID,
			Title:          "Portfolio check-in",
			ContextType:    string(models.ContextPortfolio),
			SessionType:    string(models.SessionChat),
			SessionContext: contextDoc,
			IsActive:       true,
		},
		{
			ID:          uuid.New(),
			UserID:      user.ID,
			Title:       "Tech sector outlook",
			ContextType: string(models.ContextMarketInsights),
			SessionType: string(models.SessionResearch),
			IsActive:    true,
		},
	}

	for i := range conversations {
		if err := store.CreateConversation(&conversations[i]); err != nil {
			logging.LogErrorf(err, "Failed to create demo conversation")
			return done
		}
	}

	messages := []storage.Message{
		{
			ID:             uuid.New(),
			ConversationID: conversations[0].ID,
			UserID:         user.ID,
			Role:           string(models.RoleUser),
			Content:        "How risky is my portfolio right now?",
		},
		{
			ID:             uuid.New(),
			ConversationID: conversations[0].ID,
			UserID:         user.ID,
			Role:           string(models.RoleAssistant),
			Content:        "Your allocation is tech heavy; about 60% sits in three positions.",
			TokensUsed:     96,
		},
	}
	for i := range messages {
		if err := store.CreateMessage(&messages[i]); err != nil {
			logging.LogErrorf(err, "Failed to create demo message")
			return done
		}
	}

	logging.LogInfof("Seeded %d conversations and %d messages", len(conversations), len(messages))
	return done
}
