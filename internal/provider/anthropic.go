package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// primingPrompt stands in for the conversation when only a system prompt is
// sent; the Messages API rejects requests without a user turn.
const primingPrompt = "Hello."

// AnthropicProvider implements Provider using the Anthropic native API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyRequest
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	system, rest := splitSystem(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  p.buildMessages(rest),
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.User != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(req.User)}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Response{
		Text: text.String(),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

// buildMessages converts unified messages to Anthropic params. The API wants
// the conversation to open with a user turn and roles to alternate, so
// leading assistant turns are dropped and consecutive same-role turns merge.
func (p *AnthropicProvider) buildMessages(msgs []Message) []anthropic.MessageParam {
	type group struct {
		role   Role
		blocks []anthropic.ContentBlockParamUnion
	}
	var groups []group

	for _, msg := range msgs {
		if len(groups) == 0 && msg.Role != RoleUser {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		for _, c := range msg.Content {
			switch c.Type {
			case ContentTypeText:
				if c.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(c.Text))
				}
			case ContentTypeImage:
				mediaType, data, ok := parseDataURI(c.ImageURL)
				if ok {
					blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if n := len(groups); n > 0 && groups[n-1].role == msg.Role {
			groups[n-1].blocks = append(groups[n-1].blocks, blocks...)
			continue
		}
		groups = append(groups, group{role: msg.Role, blocks: blocks})
	}

	if len(groups) == 0 {
		return []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(primingPrompt))}
	}

	params := make([]anthropic.MessageParam, 0, len(groups))
	for _, g := range groups {
		switch g.role {
		case RoleUser:
			params = append(params, anthropic.NewUserMessage(g.blocks...))
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(g.blocks...))
		}
	}
	return params
}

// parseDataURI splits "data:<mime>;base64,<data>".
func parseDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(header, ";base64")
	if !found || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}
