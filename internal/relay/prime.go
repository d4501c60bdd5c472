package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/window"
)

// Prime sends the system prompt alone to learn its cost and returns a new
// window holding just the system turn.
func Prime(ctx context.Context, p provider.Provider, prompt, model string, maxTokens int, est window.CostEstimator, now time.Time) (*window.Window, error) {
	res, err := p.Complete(ctx, &provider.Request{
		Model:     model,
		Messages:  []provider.Message{provider.TextMessage(provider.RoleSystem, prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("priming call: %w", err)
	}
	cost := est.SystemCost(prompt, window.Usage{
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
	})
	return window.New(prompt, cost, now), nil
}
