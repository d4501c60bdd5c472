package window

import "testing"

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		kind    string
		want    CostEstimator
		wantErr bool
	}{
		{"", UsageEstimator{}, false},
		{"usage", UsageEstimator{}, false},
		{"CHARS", CharEstimator{}, false},
		{"tiktoken", nil, true},
	}
	for _, tt := range tests {
		got, err := NewEstimator(tt.kind)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewEstimator(%q) err = %v, wantErr %v", tt.kind, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NewEstimator(%q) = %T, want %T", tt.kind, got, tt.want)
		}
	}
}

func TestCharEstimator(t *testing.T) {
	e := CharEstimator{}
	if got := e.SystemCost("abcdefg", Usage{InputTokens: 999}); got != 3 {
		t.Errorf("SystemCost = %d, want 3", got)
	}
	u, a := e.ExchangeCosts(Text("abc"), Text("abcdef"), Usage{InputTokens: 500, OutputTokens: 500}, 0)
	if u != 1 || a != 2 {
		t.Errorf("ExchangeCosts = %d,%d, want 1,2", u, a)
	}
}

func TestUsageEstimator(t *testing.T) {
	e := UsageEstimator{}

	if got := e.SystemCost("ignored", Usage{InputTokens: 42}); got != 42 {
		t.Errorf("SystemCost = %d, want 42", got)
	}
	if got := e.SystemCost("abcdef", Usage{}); got != 2 {
		t.Errorf("SystemCost without usage = %d, want 2", got)
	}

	u, a := e.ExchangeCosts(Text("hello"), Text("world"), Usage{InputTokens: 130, OutputTokens: 17}, 100)
	if u != 30 || a != 17 {
		t.Errorf("ExchangeCosts = %d,%d, want 30,17", u, a)
	}

	// Usage smaller than the context falls back to the heuristic.
	u, a = e.ExchangeCosts(Text("abcdef"), Text("abc"), Usage{InputTokens: 50}, 100)
	if u != 2 || a != 1 {
		t.Errorf("fallback ExchangeCosts = %d,%d, want 2,1", u, a)
	}
}

func TestEstimateContent_Image(t *testing.T) {
	got := EstimateContent(Image("data:image/png;base64,AAAA", DetailLow, "cat"))
	if got != imageTokens+1 {
		t.Errorf("image estimate = %d, want %d", got, imageTokens+1)
	}
}
