package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider for all OpenAI-compatible chat
// completion APIs, including OpenAI, DeepSeek, Groq, Qwen, etc.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	name    string
	baseURL string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	// Retries are handled by Retrying so attempts are counted in one place.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	name := "openai"
	if baseURL != "" {
		switch {
		case strings.Contains(baseURL, "deepseek"):
			name = "deepseek"
		case strings.Contains(baseURL, "generativelanguage.googleapis.com"):
			name = "gemini"
		case strings.Contains(baseURL, "dashscope"):
			name = "qwen"
		case strings.Contains(baseURL, "groq"):
			name = "groq"
		case strings.Contains(baseURL, "openrouter"):
			name = "openrouter"
		}
	}

	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		model:   model,
		name:    name,
		baseURL: baseURL,
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyRequest
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: p.buildMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.User != "" {
		params.User = openai.String(req.User)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", p.name, err)
	}

	resp := &Response{
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
	if len(completion.Choices) > 0 {
		resp.Text = completion.Choices[0].Message.Content
	}
	return resp, nil
}

// buildMessages converts unified Message types to OpenAI API params.
func (p *OpenAIProvider) buildMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	system, rest := splitSystem(msgs)

	var params []openai.ChatCompletionMessageParamUnion
	if system != "" {
		params = append(params, openai.SystemMessage(system))
	}

	for _, msg := range rest {
		switch msg.Role {
		case RoleUser:
			var textParts []string
			var imageParts []Content
			for _, c := range msg.Content {
				switch c.Type {
				case ContentTypeText:
					textParts = append(textParts, c.Text)
				case ContentTypeImage:
					imageParts = append(imageParts, c)
				}
			}

			// Images need a multipart user message.
			if len(imageParts) > 0 {
				var parts []openai.ChatCompletionContentPartUnionParam
				for _, t := range textParts {
					if t != "" {
						parts = append(parts, openai.TextContentPart(t))
					}
				}
				for _, img := range imageParts {
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL:    img.ImageURL,
						Detail: img.ImageDetail,
					}))
				}
				params = append(params, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfArrayOfContentParts: parts,
						},
					},
				})
			} else {
				params = append(params, openai.UserMessage(strings.Join(textParts, "\n")))
			}

		case RoleAssistant:
			var text strings.Builder
			for _, c := range msg.Content {
				if c.Type == ContentTypeText {
					text.WriteString(c.Text)
				}
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text.String())},
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return params
}
