package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/spacecopilot/server/internal/agent/model"
	"github.com/spacecopilot/server/internal/core"
	logx "github.com/spacecopilot/server/pkg/logger"
	pkgredis "github.com/spacecopilot/server/pkg/redis"
	pkgsqlite "github.com/spacecopilot/server/pkg/sqlite"
)

// AppConfig defines all configurable parameters of the assistant,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	SQLite pkgsqlite.Config

	// LLM provider. Only commands that call a model need the key.
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Answer       model.AnswerModelConfig
	Embedding    model.EmbeddingConfig
	Query        model.QueryConfig
	Knowledge    model.KnowledgeConfig
	Dataset      model.DatasetConfig
	Conversation model.ConversationConfig
}

// loadConfig reads .env when present, then the environment.
func loadConfig(envFile string) (AppConfig, error) {
	if err := godotenv.Load(envFile); err != nil {
		logx.Warn().Err(err).Str("file", envFile).Msg("Could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func main() {
	logx.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
