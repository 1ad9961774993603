package llm

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Payload is the outbound request body for a model call.
// The wire shape matches the Responses API: system prompt and history
// travel together in Input.
type Payload struct {
	Model       string    `json:"model"`
	Input       []Message `json:"input"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

// EventType discriminates decoded stream events.
type EventType int

const (
	// EventTextDelta carries an incremental fragment of assistant text.
	EventTextDelta EventType = iota
	// EventDone marks the end of output for the turn.
	EventDone
	// EventMalformed is an unparsable or unrecognized stream line.
	// Non-fatal; callers skip it.
	EventMalformed
	// EventError is a terminal failure surfaced through the stream.
	EventError
)

// Event is one decoded unit of model output.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream delivers decoded events for one turn.
// Recv returns io.EOF after the final event; Close cancels the turn and
// releases the underlying connection.
type Stream interface {
	Recv() (Event, error)
	Close() error
}
