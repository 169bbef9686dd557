package model

// Intent names emitted by the chat intent classifier.
const (
	IntentSpaceQnA  = "llm_nearby_space_qna"
	IntentNegotiate = "llm_negotiate"
	IntentSQLQuery  = "sql_query"
	IntentOther     = "other"
)

// KnownIntent reports whether name is one of the chat intents.
func KnownIntent(name string) bool {
	switch name {
	case IntentSpaceQnA, IntentNegotiate, IntentSQLQuery, IntentOther:
		return true
	}
	return false
}

// ChatInput is one resident message entering the chat graph.
type ChatInput struct {
	SessionID string `json:"session_id"`
	HouseKey  string `json:"house_key"`
	Message   string `json:"message"`
}

// ClassifiedInput is a chat message with its classified intent.
type ClassifiedInput struct {
	ChatInput
	Intent ActionRequest
}

// ChatReply is what the graph returns for one message.
type ChatReply struct {
	Intent string `json:"intent"`
	Result string `json:"result"`
	// Params echoes action parameters for negotiation replies.
	Params map[string]any `json:"params,omitempty"`
}

// ChatState stores per-invocation state for the chat graph.
// It is registered as graph local state and only touched inside state
// handlers or compose.ProcessState.
type ChatState struct {
	SessionID string
	HouseKey  string
	Message   string
	Intent    string
}
