package domain

// RequestState is the single record threaded through the answer workflow.
// It is an immutable value: stage functions take the prior state and return
// a new state via the With* helpers, which copy on write. The conversation
// is append-only; nothing ever rewrites or removes an earlier message.
type RequestState struct {
	// Conversation is the ordered message history for this request.
	// It always holds at least one (user) message before the workflow starts.
	Conversation []Message

	// Query is the current working query text. Initialised from the latest
	// user message and overwritten by the rewrite stage.
	Query string

	// Context is the newline-joined text of the passages selected for this
	// turn. Empty until retrieval runs; a function only of the latest
	// retrieve call, never accumulated across stages.
	Context string
}

// NewRequestState builds the initial state for a query. The conversation
// starts with the query as its sole user message.
func NewRequestState(query string) RequestState {
	return RequestState{
		Conversation: []Message{UserMessage(query)},
		Query:        query,
	}
}

// WithQuery returns a copy of the state with the working query replaced.
func (s RequestState) WithQuery(query string) RequestState {
	s.Query = query
	return s
}

// WithContext returns a copy of the state with the retrieved context replaced.
func (s RequestState) WithContext(context string) RequestState {
	s.Context = context
	return s
}

// WithMessage returns a copy of the state with msg appended to the
// conversation. The conversation slice is copied so the original state and
// any snapshots of it are never aliased.
func (s RequestState) WithMessage(msg Message) RequestState {
	conversation := make([]Message, len(s.Conversation), len(s.Conversation)+1)
	copy(conversation, s.Conversation)
	s.Conversation = append(conversation, msg)
	return s
}

// LastMessage returns the most recent conversation message, or the zero
// Message when the conversation is empty.
func (s RequestState) LastMessage() Message {
	if len(s.Conversation) == 0 {
		return Message{}
	}
	return s.Conversation[len(s.Conversation)-1]
}

// LatestUserMessage returns the content of the most recent user-authored
// message, or empty when there is none.
func (s RequestState) LatestUserMessage() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == RoleUser {
			return s.Conversation[i].Content
		}
	}
	return ""
}
