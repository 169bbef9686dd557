package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// GeminiConfig holds the configuration for chat model creation
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Classifier *model.ClassifierModelConfig
	Answer     *model.AnswerModelConfig
}

// Models holds the classifier and answer generators plus the shared client,
// which the embedder reuses.
type Models struct {
	Client     *genai.Client
	Classifier *ChatGenerator
	Answer     *ChatGenerator
}

// NewGeminiModels creates the classifier and answer chat models.
func NewGeminiModels(ctx context.Context, config GeminiConfig) (*Models, error) {
	if config.Classifier == nil || config.Answer == nil {
		return nil, fmt.Errorf("model configs are nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// Classifier output must be bare JSON, so thinking stays off for it.
	classifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Classifier.Model,
		Temperature: &config.Classifier.Temperature,
		MaxTokens:   &config.Classifier.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	answer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Answer.Model,
		Temperature: &config.Answer.Temperature,
		MaxTokens:   &config.Answer.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating answer model")
		return nil, fmt.Errorf("error creating answer model: %w", err)
	}

	return &Models{
		Client:     client,
		Classifier: NewChatGenerator(classifier, config.Classifier.Model, "classifier"),
		Answer:     NewChatGenerator(answer, config.Answer.Model, "answer"),
	}, nil
}
