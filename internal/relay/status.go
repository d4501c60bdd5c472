package relay

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/window"
)

// StatusSettings is the configuration echoed by /status.
type StatusSettings struct {
	Name          string
	Model         string
	TokensToKeep  int
	MinutesToKeep int
}

// Status is the memory summary behind a /status reply.
type Status struct {
	Uptime           time.Duration
	TokensInMemory   int
	MessagesInMemory int
	OldestAge        time.Duration
}

// Measure computes the figures reported by /status. A window holding only
// the system turn reports zero memory.
func Measure(turns []window.Turn, now time.Time) Status {
	var s Status
	if len(turns) == 0 {
		return s
	}
	s.Uptime = now.Sub(turns[0].Timestamp)
	for _, t := range turns[1:] {
		s.TokensInMemory += t.Cost
		s.MessagesInMemory++
	}
	if len(turns) > 1 {
		s.OldestAge = now.Sub(turns[1].Timestamp)
	}
	return s
}

// Report renders the /status reply in Telegram HTML.
func Report(turns []window.Turn, now time.Time, s StatusSettings) string {
	st := Measure(turns, now)

	var b strings.Builder
	fmt.Fprintf(&b, "ℹ️ This is <b>%s</b>, using <b>chatrelay</b> and the <code>%s</code>-model.\n\n",
		html.EscapeString(s.Name), html.EscapeString(s.Model))
	fmt.Fprintf(&b, "⚙️ I am configured to keep <b>~%d tokens</b> or <b>~%d minutes</b> of conversation history.\n\n",
		s.TokensToKeep, s.MinutesToKeep)
	if st.MessagesInMemory == 0 {
		b.WriteString("💭 I don't currently have any messages in memory.\n\n")
	} else {
		fmt.Fprintf(&b, "💭 I'm currently keeping <b>~%d tokens</b> and <b>%d messages</b> in memory.\n",
			st.TokensInMemory, st.MessagesInMemory)
		fmt.Fprintf(&b, "⏳ My oldest message is from <b>%d</b> minutes ago.\n\n", int(st.OldestAge.Minutes()))
	}
	days, hours, minutes := splitDuration(st.Uptime)
	fmt.Fprintf(&b, "🔆 I was last restarted <b>%d days, %d hours and %d minutes</b> ago.", days, hours, minutes)
	return b.String()
}

func splitDuration(d time.Duration) (days, hours, minutes int) {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return total / (24 * 60), (total / 60) % 24, total % 60
}
