package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacecopilot/server/internal/agent/graph/conversations"
	"github.com/spacecopilot/server/internal/agent/model"
	"github.com/spacecopilot/server/internal/agent/repo"
	"github.com/spacecopilot/server/internal/agent/retrieval"
	errx "github.com/spacecopilot/server/internal/core/error"
)

type fakeRetriever struct {
	matches []retrieval.Match
	err     error
	k       int
	corpus  string
}

func (r *fakeRetriever) Retrieve(_ context.Context, _, corpusID string, k int) ([]retrieval.Match, error) {
	r.k = k
	r.corpus = corpusID
	return r.matches, r.err
}

type fakeChat struct {
	seen  []*schema.Message
	reply string
	err   error
}

func (c *fakeChat) Converse(_ context.Context, messages []*schema.Message, _ float32) (string, error) {
	c.seen = messages
	return c.reply, c.err
}

func TestAnswerUsesPassagesAndHistory(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryConversationRepository(0)
	history := conversations.NewMessagesManager(store, model.ConversationConfig{MaxHistory: 10})
	require.NoError(t, history.SaveTurn(ctx, "s1", "What is co-living?", "Shared housing."))

	ret := &fakeRetriever{matches: []retrieval.Match{
		{Name: "a", Content: "Co-living mixes private rooms with shared spaces."},
		{Name: "b", Content: "It grew in dense cities."},
	}}
	chat := &fakeChat{reply: "It grew because of housing costs."}
	a := NewAnswerer(ret, chat, history, 0, DefaultTemperature)

	got := a.Answer(ctx, "s1", "Why did it grow?", "knowledge/the rise of co-living.json")
	assert.Equal(t, "It grew because of housing costs.", got)
	assert.Equal(t, DefaultTopK, ret.k)
	assert.Equal(t, "knowledge/the rise of co-living.json", ret.corpus)

	require.Len(t, chat.seen, 4)
	assert.Contains(t, chat.seen[0].Content, "Co-living mixes private rooms with shared spaces.\n\nIt grew in dense cities.")
	assert.Equal(t, "What is co-living?", chat.seen[1].Content)
	assert.Equal(t, "Why did it grow?", chat.seen[3].Content)
}

func TestAnswerDegrades(t *testing.T) {
	ctx := context.Background()

	a := NewAnswerer(&fakeRetriever{err: errors.New("no corpus")}, &fakeChat{}, nil, 3, 0.4)
	assert.Equal(t, errx.ApologyGeneric, a.Answer(ctx, "", "q", "missing.json"))

	a = NewAnswerer(&fakeRetriever{}, &fakeChat{err: errors.New("503")}, nil, 3, 0.4)
	assert.Equal(t, errx.ApologyGeneric, a.Answer(ctx, "", "q", "c.json"))
}
