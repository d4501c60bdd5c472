package relay

import (
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/window"
)

func TestAnswer(t *testing.T) {
	tests := []struct {
		name   string
		res    *provider.Response
		want   string
		wantOK bool
	}{
		{"plain", &provider.Response{Text: "  hi there \n"}, "hi there", true},
		{"strips echo", &provider.Response{Text: "Nova says: hi"}, "hi", true},
		{"echo only at start", &provider.Response{Text: "I heard Nova says: hi"}, "I heard Nova says: hi", true},
		{"empty", &provider.Response{Text: ""}, FallbackText, false},
		{"whitespace", &provider.Response{Text: " \n\t"}, FallbackText, false},
		{"echo with nothing after", &provider.Response{Text: "Nova says: "}, FallbackText, false},
		{"nil", nil, FallbackText, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Answer(tt.res, "Nova")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Answer = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIngest_AppendsPairWithUsageCosts(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	w := window.New("You are Nova.", 10, now.Add(-time.Hour))
	c := Composition{
		Turn:        window.Turn{Role: window.RoleUser, Content: window.Text("Alice says: hi")},
		ContextCost: 10,
	}
	res := &provider.Response{Text: "Nova says: hello Alice", Usage: provider.Usage{InputTokens: 25, OutputTokens: 4}}

	got := Ingest(w, c, res, window.UsageEstimator{}, "Nova", now)
	if got != "hello Alice" {
		t.Errorf("display text = %q", got)
	}

	turns := w.Turns()
	if len(turns) != 3 {
		t.Fatalf("window has %d turns, want 3", len(turns))
	}
	user, assistant := turns[1], turns[2]
	if user.Role != window.RoleUser || user.Cost != 15 || !user.Timestamp.Equal(now) {
		t.Errorf("user turn = %+v", user)
	}
	if assistant.Role != window.RoleAssistant || assistant.Cost != 4 || assistant.Content.Text != "hello Alice" {
		t.Errorf("assistant turn = %+v", assistant)
	}
}

func TestIngest_FallbackScenario(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	w := window.New("sys", 5, now)
	c := Composition{
		Turn:        window.Turn{Role: window.RoleUser, Content: window.Text("Alice says: ???")},
		ContextCost: 5,
	}
	res := &provider.Response{Text: "   ", Usage: provider.Usage{InputTokens: 12, OutputTokens: 0}}

	got := Ingest(w, c, res, window.UsageEstimator{}, "Nova", now)
	if got != FallbackText {
		t.Errorf("display text = %q, want fallback", got)
	}
	turns := w.Turns()
	if len(turns) != 3 {
		t.Fatalf("window has %d turns, want 3", len(turns))
	}
	if turns[2].Content.Text != FallbackText || turns[2].Cost != 16 {
		t.Errorf("fallback turn = %+v", turns[2])
	}
	if turns[1].Cost != 7 {
		t.Errorf("user cost = %d, want 7", turns[1].Cost)
	}
}

func TestIngest_CharEstimator(t *testing.T) {
	now := time.Now().UTC()
	w := window.New("sys", 1, now)
	c := Composition{Turn: window.Turn{Role: window.RoleUser, Content: window.Text("abcdef")}}
	Ingest(w, c, &provider.Response{Text: "abc", Usage: provider.Usage{InputTokens: 999, OutputTokens: 999}}, window.CharEstimator{}, "", now)

	turns := w.Turns()
	if turns[1].Cost != 2 || turns[2].Cost != 1 {
		t.Errorf("costs = %d, %d; want 2, 1", turns[1].Cost, turns[2].Cost)
	}
}
