// Package provider defines the completion provider contract and its adapters.
// Each adapter (openai.go, anthropic.go) implements Provider, translating the
// unified Request into the vendor's API and the vendor's reply into Response.
package provider

import (
	"context"
	"errors"
)

// ── Message types ────────────────────────────────────────────────────────────

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// Content is a single content block within a message.
type Content struct {
	Type        ContentType
	Text        string
	ImageURL    string // image: data URI ("data:image/jpeg;base64,...")
	ImageDetail string // image: "low" | "high" | "auto"
}

// Message is a single message sent to the provider.
type Message struct {
	Role    Role
	Content []Content
}

// TextMessage builds a single-part text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Content{{Type: ContentTypeText, Text: text}}}
}

// ── Request / response ───────────────────────────────────────────────────────

// Request is the unified request format sent to a provider.
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
	// User labels the end user on whose behalf the call is made.
	User string
}

// Usage records token consumption for an API call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's answer. Text may be empty when the model
// produced nothing usable.
type Response struct {
	Text  string
	Usage Usage
}

// ErrEmptyRequest is returned when a request carries no messages.
var ErrEmptyRequest = errors.New("provider: request has no messages")

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is the unified interface for completion providers.
type Provider interface {
	// Complete sends the request and blocks until the full answer is
	// available or ctx is done.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider identifier, e.g. "openai", "anthropic".
	Name() string

	// DefaultModel returns the model used when Request.Model is empty.
	DefaultModel() string
}

// splitSystem separates leading system text from the conversation. Both
// vendor APIs need this: Anthropic takes the system prompt out of band and
// OpenAI wants it as the first message.
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			for _, c := range m.Content {
				if c.Type == ContentTypeText {
					if system != "" {
						system += "\n\n"
					}
					system += c.Text
				}
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
