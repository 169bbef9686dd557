package nodes

import (
	"github.com/spacecopilot/server/internal/agent/model"
)

// Node names of the chat graph.
const (
	NodeInputConverter   = "InputConverter"
	NodeIntentClassifier = "IntentClassifier"
	NodeSpaceQnA         = "SpaceQnA"
	NodeNegotiator       = "Negotiator"
	NodeQuestionAnswerer = "QuestionAnswerer"
	NodeFallback         = "Fallback"
)

// AnswerNodes are the branch targets after intent classification.
var AnswerNodes = []string{NodeSpaceQnA, NodeNegotiator, NodeQuestionAnswerer, NodeFallback}

func reply(intent, result string) model.ChatReply {
	return model.ChatReply{Intent: intent, Result: result}
}

// paramsOf returns nil for requests without parameters so replies omit them.
func paramsOf(req model.ActionRequest) map[string]any {
	if req.Parameters.Len() == 0 {
		return nil
	}
	return req.Parameters.Map()
}
