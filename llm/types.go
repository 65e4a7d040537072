package llm

import "strings"

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a single text message in a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// Request is a complete generation request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int64
	Temperature *float64
}

// Clone returns a copy of the request that can be modified independently.
func (r *Request) Clone() *Request {
	out := *r
	out.Messages = append([]Message(nil), r.Messages...)
	if r.Temperature != nil {
		t := *r.Temperature
		out.Temperature = &t
	}
	return &out
}

// Response is a complete generation response.
type Response struct {
	Text       string
	Usage      *Usage
	StopReason string
}

// Usage represents token usage information from a response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// NewTextMessage creates a message with the given role and text.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: text}
}

// Float returns a pointer to v, for optional sampling settings.
func Float(v float64) *float64 { return &v }

// JoinText joins the text parts of a multi-part reply and trims the result.
func JoinText(parts ...string) string {
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
