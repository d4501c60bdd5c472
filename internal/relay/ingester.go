package relay

import (
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/window"
)

// FallbackText replaces an empty completion.
const FallbackText = "Sorry, I do not know an answer to this. Perhaps try asking differently."

// fallbackCost is the fixed cost recorded for FallbackText.
const fallbackCost = 16

// Answer extracts the display text from a completion. ok is false when the
// model produced nothing and FallbackText was substituted.
func Answer(res *provider.Response, personality string) (text string, ok bool) {
	if res == nil {
		return FallbackText, false
	}
	text = strings.TrimSpace(res.Text)
	if text == "" {
		return FallbackText, false
	}
	if personality != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, personality+" says: "))
		if text == "" {
			return FallbackText, false
		}
	}
	return text, true
}

// Ingest appends the composed user turn and the answer to w and returns
// the text to display. Both turns are stamped with now.
func Ingest(w *window.Window, c Composition, res *provider.Response, est window.CostEstimator, personality string, now time.Time) string {
	text, ok := Answer(res, personality)

	var usage window.Usage
	if res != nil {
		usage = window.Usage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens}
	}

	assistant := window.Text(text)
	userCost, assistantCost := est.ExchangeCosts(c.Turn.Content, assistant, usage, c.ContextCost)
	if !ok {
		assistantCost = fallbackCost
	}

	user := c.Turn
	user.Timestamp = now
	user.Cost = userCost
	w.Append(user, window.Turn{
		Role:      window.RoleAssistant,
		Content:   assistant,
		Timestamp: now,
		Cost:      assistantCost,
	})
	return text
}
