package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/spacecopilot/server/internal/agent/graph/conversations"
	"github.com/spacecopilot/server/internal/agent/model"
	"github.com/spacecopilot/server/internal/agent/negotiation"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// IntentClassifier labels a chat message with one chat intent.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) model.ActionRequest
}

// SpaceAdvisor answers questions about the spaces near a house.
type SpaceAdvisor interface {
	Answer(ctx context.Context, houseKey, question string) string
}

// Negotiator suggests and runs negotiation actions.
type Negotiator interface {
	Negotiate(ctx context.Context, houseKey, message string) negotiation.Outcome
}

// QuestionAnswerer answers data and knowledge questions.
type QuestionAnswerer interface {
	Answer(ctx context.Context, sessionID, question string) string
}

// NewInputConverterPreHandler records the incoming message in state.
func NewInputConverterPreHandler() func(context.Context, model.ChatInput, *model.ChatState) (model.ChatInput, error) {
	return func(ctx context.Context, in model.ChatInput, s *model.ChatState) (model.ChatInput, error) {
		s.SessionID = in.SessionID
		s.HouseKey = strings.TrimSpace(in.HouseKey)
		s.Message = strings.TrimSpace(in.Message)
		s.Intent = ""
		return in, nil
	}
}

// NewInputConverterNode normalises the chat input.
func NewInputConverterNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ChatInput) (model.ChatInput, error) {
		in.HouseKey = strings.TrimSpace(in.HouseKey)
		in.Message = strings.TrimSpace(in.Message)
		return in, nil
	})
}

// NewIntentClassifierNode attaches the classified intent to the input.
func NewIntentClassifierNode(classifier IntentClassifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ChatInput) (model.ClassifiedInput, error) {
		return model.ClassifiedInput{ChatInput: in, Intent: classifier.Classify(ctx, in.Message)}, nil
	})
}

// NewIntentClassifierPostHandler stores the intent name in state.
func NewIntentClassifierPostHandler() func(context.Context, model.ClassifiedInput, *model.ChatState) (model.ClassifiedInput, error) {
	return func(ctx context.Context, out model.ClassifiedInput, state *model.ChatState) (model.ClassifiedInput, error) {
		state.Intent = out.Intent.Action()
		logx.Debug().
			Str("session_id", state.SessionID).
			Str("intent", state.Intent).
			Str("reasoning", out.Intent.Reasoning).
			Msg("Intent classified")
		return out, nil
	}
}

// NewIntentCondition picks the answering node for the classified intent.
func NewIntentCondition() func(context.Context, model.ClassifiedInput) (string, error) {
	return func(ctx context.Context, in model.ClassifiedInput) (string, error) {
		switch in.Intent.Action() {
		case model.IntentSpaceQnA:
			return NodeSpaceQnA, nil
		case model.IntentNegotiate:
			return NodeNegotiator, nil
		case model.IntentSQLQuery:
			return NodeQuestionAnswerer, nil
		default:
			return NodeFallback, nil
		}
	}
}

// NewSpaceQnANode answers nearby-space questions for the resident's house.
func NewSpaceQnANode(advisor SpaceAdvisor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ClassifiedInput) (model.ChatReply, error) {
		return reply(model.IntentSpaceQnA, advisor.Answer(ctx, in.HouseKey, in.Message)), nil
	})
}

// NewNegotiatorNode runs the suggested negotiation actions and echoes their
// parameters.
func NewNegotiatorNode(negotiator Negotiator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ClassifiedInput) (model.ChatReply, error) {
		out := negotiator.Negotiate(ctx, in.HouseKey, in.Message)
		r := reply(model.IntentNegotiate, out.Dispatch.Text())
		r.Params = paramsOf(out.Request)
		return r, nil
	})
}

// NewQuestionAnswererNode routes the message through the question router.
func NewQuestionAnswererNode(answerer QuestionAnswerer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ClassifiedInput) (model.ChatReply, error) {
		return reply(model.IntentSQLQuery, answerer.Answer(ctx, in.SessionID, in.Message)), nil
	})
}

// NewFallbackNode answers messages no component handles.
func NewFallbackNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ClassifiedInput) (model.ChatReply, error) {
		return reply(model.IntentOther, errx.ApologyUnknownRequest), nil
	})
}

// NewReplyPostHandler saves the resident message and the reply to the
// session history. A failed save is logged and the reply still returned.
func NewReplyPostHandler(mm *conversations.MessagesManager) func(context.Context, model.ChatReply, *model.ChatState) (model.ChatReply, error) {
	return func(ctx context.Context, out model.ChatReply, state *model.ChatState) (model.ChatReply, error) {
		if state.Message == "" {
			return out, nil
		}
		if err := mm.SaveTurn(ctx, state.SessionID, state.Message, out.Result); err != nil {
			logx.Error().
				Str("session_id", state.SessionID).
				Err(err).
				Msg("Error saving chat turn")
		}
		return out, nil
	}
}
