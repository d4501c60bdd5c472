package window

import "time"

// Budget bounds the window. A zero field disables that pass.
type Budget struct {
	MaxAge    time.Duration
	MaxTokens int
}

// Window is an ordered list of turns whose first entry is the system turn.
// It is not safe for concurrent use; share it through a Store.
type Window struct {
	turns []Turn
}

// New creates a window holding only the system turn.
func New(systemPrompt string, cost int, now time.Time) *Window {
	return &Window{
		turns: []Turn{{
			Role:      RoleSystem,
			Content:   Text(systemPrompt),
			Timestamp: now.UTC(),
			Cost:      cost,
		}},
	}
}

// Len returns the number of turns including the system turn.
func (w *Window) Len() int { return len(w.turns) }

// Turns returns a copy of the turns, system turn first.
func (w *Window) Turns() []Turn {
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Append adds turns at the end. System turns are rejected: the window holds
// exactly one and it is always at index 0.
func (w *Window) Append(turns ...Turn) {
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		if t.Cost < 0 {
			t.Cost = 0
		}
		w.turns = append(w.turns, t)
	}
}

// TotalCost sums the cost of every turn, system turn included.
func (w *Window) TotalCost() int {
	return sumCost(w.turns)
}

// Evict drops the oldest non-system turns until the window fits the budget,
// age first and tokens second. The most recent turn always survives so the
// next request never goes out without context. Returns how many turns were
// removed; calling it again on a compliant window removes nothing.
func (w *Window) Evict(now time.Time, b Budget) int {
	removed := 0

	if b.MaxAge > 0 {
		cutoff := now.Add(-b.MaxAge)
		for len(w.turns) > 2 && w.turns[1].Timestamp.Before(cutoff) {
			w.removeOldest()
			removed++
		}
	}

	if b.MaxTokens > 0 {
		total := w.TotalCost()
		for len(w.turns) > 2 && total > b.MaxTokens {
			total -= w.turns[1].Cost
			w.removeOldest()
			removed++
		}
	}

	return removed
}

func (w *Window) removeOldest() {
	copy(w.turns[1:], w.turns[2:])
	w.turns[len(w.turns)-1] = Turn{}
	w.turns = w.turns[:len(w.turns)-1]
}

func sumCost(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += t.Cost
	}
	return total
}
