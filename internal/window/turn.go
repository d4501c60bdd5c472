// Package window holds the conversation state shared by every chat the relay
// answers: a pinned system turn followed by user/assistant turns, kept within
// a time budget and a token budget.
package window

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind tags the variant held by a Content value.
type ContentKind int

const (
	KindText ContentKind = iota
	KindImage
)

// Detail is the fidelity hint sent with an image part.
type Detail string

const (
	DetailLow  Detail = "low"
	DetailHigh Detail = "high"
	DetailAuto Detail = "auto"
)

// Content is the payload of a turn. Exactly one variant is populated,
// selected by Kind. Values are never modified after construction.
type Content struct {
	Kind ContentKind

	// KindText
	Text string

	// KindImage. DataURI is a complete "data:<mime>;base64,..." URI and
	// Caption is the text that accompanied the image (may be empty).
	DataURI string
	Detail  Detail
	Caption string
}

// Text returns a text content value.
func Text(s string) Content {
	return Content{Kind: KindText, Text: s}
}

// Image returns an image content value.
func Image(dataURI string, detail Detail, caption string) Content {
	return Content{Kind: KindImage, DataURI: dataURI, Detail: detail, Caption: caption}
}

// PlainText returns the human-readable part of the content: the text itself
// or the image caption.
func (c Content) PlainText() string {
	if c.Kind == KindImage {
		return c.Caption
	}
	return c.Text
}

// Turn is one entry in the window.
type Turn struct {
	Role      Role
	Content   Content
	Timestamp time.Time
	Cost      int
}
