package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spacecopilot/server/internal/agent/database"
	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/geometry"
	"github.com/spacecopilot/server/internal/agent/graph"
	"github.com/spacecopilot/server/internal/agent/graph/conversations"
	"github.com/spacecopilot/server/internal/agent/intent"
	"github.com/spacecopilot/server/internal/agent/knowledge"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	"github.com/spacecopilot/server/internal/agent/negotiation"
	"github.com/spacecopilot/server/internal/agent/repo"
	"github.com/spacecopilot/server/internal/agent/retrieval"
	"github.com/spacecopilot/server/internal/agent/router"
	"github.com/spacecopilot/server/internal/agent/spaces"
	"github.com/spacecopilot/server/internal/agent/sqlagent"
	logx "github.com/spacecopilot/server/pkg/logger"
)

const (
	// maxStoredMessages caps a session list in the conversation store.
	maxStoredMessages = 200

	queryTemperature       = 0.0
	negotiationTemperature = 0.2
	geometryTemperature    = 0.7
	assignmentTemperature  = 0.3
)

// app owns every long-lived resource of one command run. Components are
// built on first use so commands that never call a model need no API key.
type app struct {
	cfg AppConfig

	db    *database.DB
	store *dataset.Store

	models    *llm.Models
	retriever *retrieval.VectorRetriever
	history   *conversations.MessagesManager

	closers []func() error
}

// openApp opens the building database and the dataset store over it.
func openApp(ctx context.Context, cfg AppConfig) (*app, error) {
	sqlDB, err := cfg.SQLite.New(ctx)
	if err != nil {
		return nil, err
	}
	db := database.New(sqlDB, database.WithSampleRows(cfg.Query.SampleRows))
	return &app{
		cfg:     cfg,
		db:      db,
		store:   dataset.NewStore(db, cfg.Dataset),
		closers: []func() error{sqlDB.Close},
	}, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) languageModels(ctx context.Context) (*llm.Models, error) {
	if a.models != nil {
		return a.models, nil
	}
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	models, err := llm.NewGeminiModels(ctx, llm.GeminiConfig{
		APIKey:     a.cfg.APIKey,
		BaseURL:    a.cfg.BaseURL,
		Classifier: &a.cfg.Classifier,
		Answer:     &a.cfg.Answer,
	})
	if err != nil {
		return nil, err
	}
	logx.Debug().
		Str("classifier", models.Classifier.ModelName()).
		Str("answer", models.Answer.ModelName()).
		Msg("Language models ready")
	a.models = models
	return models, nil
}

// vectorRetriever embeds queries with Gemini, through the badger cache when
// a cache directory is configured.
func (a *app) vectorRetriever(ctx context.Context) (*retrieval.VectorRetriever, error) {
	if a.retriever != nil {
		return a.retriever, nil
	}
	models, err := a.languageModels(ctx)
	if err != nil {
		return nil, err
	}

	var embedder retrieval.Embedder = retrieval.NewGenAIEmbedder(models.Client, a.cfg.Embedding.Model, a.cfg.Embedding.Dimensions)
	if dir := a.cfg.Embedding.CacheDir; dir != "" {
		ttl, err := time.ParseDuration(a.cfg.Embedding.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid EMBEDDING_CACHE_TTL '%s': %w", a.cfg.Embedding.CacheTTL, err)
		}
		cache, err := retrieval.OpenBadgerCache(dir, ttl)
		if err != nil {
			logx.Warn().Err(err).Str("dir", dir).Msg("Embedding cache unavailable, embedding without it")
		} else {
			a.closers = append(a.closers, cache.Close)
			embedder = retrieval.NewCachedEmbedder(embedder, cache, a.cfg.Embedding.Model)
		}
	}

	a.retriever = retrieval.NewVectorRetriever(embedder, a.cfg.Knowledge.Dir)
	return a.retriever, nil
}

// conversationHistory keeps history in Redis when REDIS_URL is set, otherwise in
// process memory.
func (a *app) conversationHistory(ctx context.Context) (*conversations.MessagesManager, error) {
	if a.history != nil {
		return a.history, nil
	}
	ttl, err := time.ParseDuration(a.cfg.Conversation.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid CONVERSATION_TTL '%s': %w", a.cfg.Conversation.TTL, err)
	}

	var repository model.ConversationRepository
	if a.cfg.Redis.Enabled() {
		rdb, err := a.cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		repository = repo.NewRedisConversationRepository(rdb, ttl, maxStoredMessages)
		logx.Debug().Msg("Conversation history in Redis")
	} else {
		repository = repo.NewMemoryConversationRepository(maxStoredMessages)
		logx.Debug().Msg("Conversation history in memory")
	}

	a.history = conversations.NewMessagesManager(repository, a.cfg.Conversation)
	return a.history, nil
}

// questionAnswerer wires the router with the SQL and knowledge answerers.
func (a *app) questionAnswerer(ctx context.Context) (*router.QuestionAnswerer, error) {
	models, err := a.languageModels(ctx)
	if err != nil {
		return nil, err
	}
	retriever, err := a.vectorRetriever(ctx)
	if err != nil {
		return nil, err
	}
	history, err := a.conversationHistory(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := router.LoadRules(a.cfg.Knowledge.RulesFile)
	if err != nil {
		return nil, err
	}

	sqlAnswerer := sqlagent.NewAnswerer(sqlagent.AnswererConfig{
		DB:                 a.db,
		Retriever:          retriever,
		Describer:          retriever,
		Generator:          models.Answer,
		Answerer:           models.Answer,
		Repairer:           sqlagent.NewRepairer(sqlagent.NewLLMFixer(models.Answer, queryTemperature), a.cfg.Query.MaxAttempts),
		DescriptionsCorpus: a.cfg.Query.TableDescriptions,
		QueryTemperature:   queryTemperature,
		AnswerTemperature:  a.cfg.Answer.Temperature,
	})
	kb := knowledge.NewAnswerer(retriever, models.Answer, history, a.cfg.Knowledge.TopK, a.cfg.Answer.Temperature)
	return router.NewQuestionAnswerer(router.New(models.Classifier, rules, a.cfg.Classifier.Temperature), sqlAnswerer, kb), nil
}

func (a *app) negotiator(ctx context.Context) (*negotiation.Negotiator, error) {
	models, err := a.languageModels(ctx)
	if err != nil {
		return nil, err
	}
	return negotiation.NewNegotiator(models.Answer, a.store, negotiationTemperature), nil
}

func (a *app) geometryAdvisor(ctx context.Context) (*geometry.Advisor, error) {
	models, err := a.languageModels(ctx)
	if err != nil {
		return nil, err
	}
	return geometry.NewAdvisor(geometry.AdvisorConfig{
		Data:        a.store,
		Details:     a.db,
		Generator:   models.Answer,
		Table:       a.cfg.Dataset.SpacesTable,
		IDColumn:    a.cfg.Dataset.SpacesIDColumn,
		Temperature: geometryTemperature,
	}), nil
}

func (a *app) assigner(ctx context.Context) (*geometry.Assigner, error) {
	models, err := a.languageModels(ctx)
	if err != nil {
		return nil, err
	}
	return geometry.NewAssigner(a.store, models.Answer, assignmentTemperature), nil
}

// chatRunner builds the chat graph over every component.
func (a *app) chatRunner(ctx context.Context) (graph.Runner, error) {
	models, err := a.languageModels(ctx)
	if err != nil {
		return nil, err
	}
	questions, err := a.questionAnswerer(ctx)
	if err != nil {
		return nil, err
	}
	negotiator, err := a.negotiator(ctx)
	if err != nil {
		return nil, err
	}
	return graph.NewRunner(ctx, &graph.GraphConfig{
		Classifier:      intent.NewClassifier(models.Classifier, a.cfg.Classifier.Temperature),
		Spaces:          spaces.NewAdvisor(a.store, models.Answer, spaces.DefaultTemperature),
		Negotiator:      negotiator,
		Questions:       questions,
		MessagesManager: a.history,
	})
}

// watchData reloads the dataset when a data file or the building database
// changes, and the knowledge corpora when a corpus file changes, until ctx
// is done.
func (a *app) watchData(ctx context.Context) error {
	if !a.cfg.Dataset.Watch {
		return nil
	}
	w, err := dataset.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch data files: %w", err)
	}
	a.closers = append(a.closers, w.Close)

	files := a.store.Files()
	if db := a.cfg.SQLite.Path; db != "" {
		files = append(files, db, db+"-wal")
	}
	if err := w.WatchFiles(files, a.store); err != nil {
		return fmt.Errorf("watch data files: %w", err)
	}
	if a.retriever != nil && a.cfg.Knowledge.Dir != "" {
		if err := w.WatchDir(a.cfg.Knowledge.Dir, ".json", a.retriever); err != nil {
			return fmt.Errorf("watch knowledge dir: %w", err)
		}
	}
	go w.Run(ctx)
	logx.Debug().Strs("files", files).Str("knowledge_dir", a.cfg.Knowledge.Dir).Msg("Watching data files")
	return nil
}
