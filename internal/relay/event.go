// Package relay turns inbound chat events into completion requests and the
// provider's answers into replies, keeping the shared conversation window
// up to date along the way.
package relay

import (
	"context"

	"github.com/chatrelay/chatrelay/internal/transcript"
)

// ImageRef points at an image attached to an event. Transports fill the
// fields they understand: Telegram sets FileID, the console sets Path.
type ImageRef struct {
	FileID string
	Path   string
	Width  int
	Height int
}

// Event is an inbound chat message, already decoded from the transport.
type Event struct {
	ChatID          int64
	MessageID       int
	AuthorID        int64
	AuthorName      string
	ChatIsPrivate   bool
	Text            string
	Caption         string
	Image           *ImageRef
	IsReply         bool
	ReplyToAuthorID int64
	Edited          bool
}

// prompt is the text the addressing rules look at: the message text, or
// the caption for a photo.
func (e Event) prompt() string {
	if e.Image != nil {
		return e.Caption
	}
	return e.Text
}

// Reply is an outbound message.
type Reply struct {
	ChatID  int64
	ReplyTo int
	Text    string
	// HTML selects Telegram HTML parse mode and disables link previews.
	HTML bool
}

// Sender delivers replies and the typing indicator.
type Sender interface {
	Send(ctx context.Context, r Reply) (int, error)
	Typing(ctx context.Context, chatID int64) error
}

// ImageFetcher downloads the bytes behind an ImageRef.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref ImageRef) ([]byte, error)
}

// Recorder receives a copy of every exchange the relay answered.
type Recorder interface {
	Record(ctx context.Context, e *transcript.Exchange) error
}
