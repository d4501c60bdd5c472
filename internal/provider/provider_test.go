package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSplitSystem(t *testing.T) {
	msgs := []Message{
		TextMessage(RoleSystem, "be brief"),
		TextMessage(RoleUser, "hi"),
		TextMessage(RoleAssistant, "hello"),
	}
	system, rest := splitSystem(msgs)
	if system != "be brief" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Errorf("rest = %+v", rest)
	}
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		in       string
		wantType string
		wantData string
		wantOK   bool
	}{
		{"data:image/png;base64,AAAA", "image/png", "AAAA", true},
		{"data:image/jpeg;base64,", "image/jpeg", "", true},
		{"https://example.com/a.png", "", "", false},
		{"data:image/png,AAAA", "", "", false},
		{"data:;base64,AAAA", "", "", false},
	}
	for _, tt := range tests {
		mt, data, ok := parseDataURI(tt.in)
		if ok != tt.wantOK || mt != tt.wantType || data != tt.wantData {
			t.Errorf("parseDataURI(%q) = %q, %q, %v", tt.in, mt, data, ok)
		}
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Nova says: hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1", "gpt-4o-mini")
	resp, err := p.Complete(context.Background(), &Request{
		Messages: []Message{
			TextMessage(RoleSystem, "You are Nova."),
			{Role: RoleUser, Content: []Content{
				{Type: ContentTypeText, Text: "Alice says: look"},
				{Type: ContentTypeImage, ImageURL: "data:image/png;base64,AAAA", ImageDetail: "low"},
			}},
		},
		MaxTokens: 50,
		User:      "alice",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Nova says: hi" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if body["user"] != "alice" {
		t.Errorf("user = %v", body["user"])
	}
	if body["max_tokens"] != float64(50) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	user, _ := msgs[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("user content = %v", user["content"])
	}
	img, _ := parts[1].(map[string]any)
	imageURL, _ := img["image_url"].(map[string]any)
	if imageURL["detail"] != "low" || imageURL["url"] != "data:image/png;base64,AAAA" {
		t.Errorf("image part = %v", img)
	}
}

func TestOpenAIProvider_EmptyRequest(t *testing.T) {
	p := NewOpenAIProvider("sk-test", "http://127.0.0.1:1", "")
	if _, err := p.Complete(context.Background(), &Request{}); err != ErrEmptyRequest {
		t.Errorf("err = %v, want ErrEmptyRequest", err)
	}
}

func TestOpenAIProvider_Name(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
	}{
		{"", "openai"},
		{"https://api.deepseek.com/v1", "deepseek"},
		{"https://api.groq.com/openai/v1", "groq"},
		{"https://openrouter.ai/api/v1", "openrouter"},
		{"http://localhost:11434/v1", "openai"},
	}
	for _, tt := range tests {
		if got := NewOpenAIProvider("k", tt.baseURL, "").Name(); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.baseURL, got, tt.want)
		}
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 3}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", srv.URL, "claude-test")
	resp, err := p.Complete(context.Background(), &Request{
		Messages: []Message{
			TextMessage(RoleSystem, "You are Nova."),
			TextMessage(RoleAssistant, "stale greeting"),
			TextMessage(RoleUser, "hi"),
		},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello there" || resp.Usage.InputTokens != 20 || resp.Usage.OutputTokens != 3 {
		t.Errorf("resp = %+v", resp)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", body["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "user" {
		t.Errorf("first role = %v, want user", first["role"])
	}
	if body["system"] == nil {
		t.Error("system prompt not sent")
	}
}

func TestAnthropicProvider_SystemOnlyIsPrimed(t *testing.T) {
	p := NewAnthropicProvider("key", "", "")
	msgs := p.buildMessages(nil)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want a single priming message", len(msgs))
	}
}

func TestAnthropicProvider_MergesConsecutiveRoles(t *testing.T) {
	p := NewAnthropicProvider("key", "", "")
	msgs := p.buildMessages([]Message{
		TextMessage(RoleUser, "a"),
		TextMessage(RoleUser, "b"),
		TextMessage(RoleAssistant, "c"),
		TextMessage(RoleUser, "d"),
	})
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if len(msgs[0].Content) != 2 {
		t.Errorf("first message has %d blocks, want 2", len(msgs[0].Content))
	}
}
