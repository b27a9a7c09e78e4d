package domain

import (
	"strings"
	"time"
)

// Message is a single conversation turn. The client owns the full history and
// resubmits it on every request; the gateway keeps no per-session state.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// TurnRequest is the inbound payload of POST /v1/chat.
type TurnRequest struct {
	Messages       []Message `json:"messages"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// LastUserText returns the content of the last user-role message in
// submission order, trimmed. The second return is false when the history
// contains no user message at all.
func (r TurnRequest) LastUserText() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return strings.TrimSpace(r.Messages[i].Content), true
		}
	}
	return "", false
}

// TurnReply is the success payload of POST /v1/chat.
type TurnReply struct {
	Reply string `json:"reply"`
}

// ChatRequest is the outbound completion request in the OpenAI chat shape.
// All providers convert from this type.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Text returns the content of the first choice, or "" when the response
// carries no usable message.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return ""
	}
	return r.Choices[0].Message.Content
}

// UsageRecord captures one processed turn for observability sinks.
type UsageRecord struct {
	RequestID        string    `json:"request_id"`
	ClientID         string    `json:"client_id"`
	Intent           string    `json:"intent"`
	Topic            string    `json:"topic,omitempty"`
	Provider         string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	Cached           bool      `json:"cached"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
