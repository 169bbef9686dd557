package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxHistory       int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxHistory:       config.MaxHistory,
	}
}

// BuildContext returns the system prompt, the last maxHistory messages of
// the session and the current question, in that order. A history that
// cannot be loaded is skipped.
func (cm *MessagesManager) BuildContext(ctx context.Context, sessionID, systemPrompt, question string) []*schema.Message {
	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	messages = append(messages, cm.Recent(ctx, sessionID)...)
	messages = append(messages, schema.UserMessage(question))
	return messages
}

// Recent returns the tail of the session history.
func (cm *MessagesManager) Recent(ctx context.Context, sessionID string) []*schema.Message {
	if cm == nil || cm.conversationRepo == nil || sessionID == "" {
		return nil
	}
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("history unavailable, answering without it")
		return nil
	}
	return trimTail(history.Messages, cm.maxHistory)
}

// SaveTurn appends the resident message and the reply to the session.
func (cm *MessagesManager) SaveTurn(ctx context.Context, sessionID, question, answer string) error {
	if cm == nil || cm.conversationRepo == nil || sessionID == "" {
		return nil
	}
	if err := cm.conversationRepo.AddMessage(ctx, sessionID, schema.UserMessage(question)); err != nil {
		return err
	}
	return cm.conversationRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(strings.TrimSpace(answer), nil))
}

// Clear forgets a session.
func (cm *MessagesManager) Clear(ctx context.Context, sessionID string) error {
	if cm == nil || cm.conversationRepo == nil {
		return nil
	}
	return cm.conversationRepo.ClearHistory(ctx, sessionID)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	source := messages
	if maxTurns > 0 && len(messages) > maxTurns {
		source = messages[len(messages)-maxTurns:]
	}
	result := make([]*schema.Message, 0, len(source))
	for _, msg := range source {
		if msg == nil || msg.Content == "" {
			continue
		}
		result = append(result, msg)
	}
	return result
}
