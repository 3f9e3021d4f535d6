package core

// UserAuthor is the author of the seed message of every run.
const UserAuthor = "user"

// Message is one entry of the conversation history.
type Message struct {
	Content string `json:"content" yaml:"content"`
	Author  string `json:"author" yaml:"author"`
}

// State is the conversation state threaded through one orchestration run.
// Messages is append-only; Next is overwritten by the supervisor each turn and
// only meaningful immediately after it ran.
type State struct {
	Messages []Message `json:"messages" yaml:"messages"`
	Next     Route     `json:"next" yaml:"next"`
}

// NewState seeds a fresh state with the request text authored by the user.
func NewState(text string) *State {
	return &State{Messages: []Message{{Content: text, Author: UserAuthor}}}
}

// Append adds messages to the end of the history.
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Len returns the number of messages.
func (s *State) Len() int { return len(s.Messages) }

// Last returns the most recent message.
func (s *State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Snapshot returns a copy that does not share the message backing array.
func (s *State) Snapshot() State {
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return State{Messages: msgs, Next: s.Next}
}

// Update is the partial state a node returns. The graph applies it to the
// shared state after validating the node's contract.
type Update struct {
	Messages []Message
	Next     *Route
}
