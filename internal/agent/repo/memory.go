package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/spacecopilot/server/internal/agent/model"
)

// MemoryConversationRepository keeps history in process memory. It backs
// the CLI when no Redis URL is configured.
type MemoryConversationRepository struct {
	mu        sync.Mutex
	sessions  map[string][]*schema.Message
	maxStored int
}

func NewMemoryConversationRepository(maxStored int) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		sessions:  make(map[string][]*schema.Message),
		maxStored: maxStored,
	}
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := append(r.sessions[sessionID], message)
	if r.maxStored > 0 && len(msgs) > r.maxStored {
		msgs = append([]*schema.Message(nil), msgs[len(msgs)-r.maxStored:]...)
	}
	r.sessions[sessionID] = msgs
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]*schema.Message, len(r.sessions[sessionID]))
	copy(msgs, r.sessions[sessionID])
	return &model.ConversationHistory{SessionID: sessionID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[sessionID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
