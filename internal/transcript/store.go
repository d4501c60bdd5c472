// Package transcript keeps an append-only log of answered exchanges. The
// relay only writes to it; the window is never rebuilt from it.
package transcript

import (
	"context"
	"time"
)

// Exchange is one handled message and the relay's answer.
type Exchange struct {
	ID           string
	ChatID       int64
	MessageID    int
	Author       string
	Prompt       string
	HasImage     bool
	Answer       string
	Outcome      string
	Model        string
	InputTokens  int
	OutputTokens int
	CreatedAt    time.Time
}

// Store abstracts transcript persistence.
type Store interface {
	Record(ctx context.Context, e *Exchange) error
	List(ctx context.Context, limit int) ([]Exchange, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
