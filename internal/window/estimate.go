package window

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Estimator names accepted by NewEstimator.
const (
	EstimatorUsage = "usage"
	EstimatorChars = "chars"
)

// charsPerToken is the ratio used when no usage figures are available.
const charsPerToken = 3

// imageTokens is the flat charge for an image part under character
// estimation (the provider's base cost for a low-detail image).
const imageTokens = 85

// Usage is the token accounting a provider reports for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CostEstimator decides the cost recorded for new turns.
type CostEstimator interface {
	// SystemCost returns the cost of the system turn given the usage of
	// the priming call.
	SystemCost(prompt string, u Usage) int

	// ExchangeCosts returns the costs of a committed user/assistant pair.
	// contextCost is the total cost of the turns that were sent along with
	// the user turn.
	ExchangeCosts(user, assistant Content, u Usage, contextCost int) (userCost, assistantCost int)
}

// NewEstimator returns the estimator registered under kind.
func NewEstimator(kind string) (CostEstimator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", EstimatorUsage:
		return UsageEstimator{}, nil
	case EstimatorChars:
		return CharEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown cost estimator %q (want %q or %q)", kind, EstimatorUsage, EstimatorChars)
	}
}

// UsageEstimator records the provider's own token counts. The prompt count
// of a call covers the whole request, so the user turn is charged only the
// part not already held by the context. Missing figures fall back to the
// character heuristic.
type UsageEstimator struct{}

func (UsageEstimator) SystemCost(prompt string, u Usage) int {
	if u.InputTokens > 0 {
		return u.InputTokens
	}
	return CharEstimator{}.SystemCost(prompt, u)
}

func (UsageEstimator) ExchangeCosts(user, assistant Content, u Usage, contextCost int) (int, int) {
	userCost := u.InputTokens - contextCost
	if u.InputTokens <= 0 || userCost <= 0 {
		userCost = EstimateContent(user)
	}
	assistantCost := u.OutputTokens
	if assistantCost <= 0 {
		assistantCost = EstimateContent(assistant)
	}
	return userCost, assistantCost
}

// CharEstimator ignores usage figures and charges one token per three
// characters.
type CharEstimator struct{}

func (CharEstimator) SystemCost(prompt string, _ Usage) int {
	return estimateText(prompt)
}

func (CharEstimator) ExchangeCosts(user, assistant Content, _ Usage, _ int) (int, int) {
	return EstimateContent(user), EstimateContent(assistant)
}

// EstimateContent applies the character heuristic to a content value.
func EstimateContent(c Content) int {
	if c.Kind == KindImage {
		return imageTokens + estimateText(c.Caption)
	}
	return estimateText(c.Text)
}

func estimateText(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}
