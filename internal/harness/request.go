// ABOUTME: Chat-completion request body sent on every iteration of a reliability run
// ABOUTME: Built fresh from config each time; stream is always true

package harness

import (
	"errors"
	"fmt"

	"github.com/mauromedda/streamcheck/internal/config"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body of a streaming chat-completion call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// NewChatRequest builds the request for one iteration from cfg.
func NewChatRequest(cfg *config.Config) ChatRequest {
	msgs := make([]Message, 0, 2)
	if cfg.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: cfg.SystemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: cfg.Prompt})

	return ChatRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stream:      true,
	}
}

// Validate reports whether r is a well-formed streaming request.
func (r ChatRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", r.MaxTokens)
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", r.Temperature)
	}
	if !r.Stream {
		return errors.New("stream must be true")
	}
	return nil
}
