package relay

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/window"
)

// Input is the addressed prompt plus what came with it.
type Input struct {
	Author string
	Text   string
	// Image holds the raw photo bytes, nil for text messages.
	Image []byte
}

// Limits bounds what Compose accepts and how images are sent.
type Limits struct {
	MessageLengthLimit int
	PhotoQuality       config.PhotoQuality
}

// Composition is a ready-to-send request and the turn it will commit.
type Composition struct {
	Messages []provider.Message
	// Turn is the user turn appended on success. Its timestamp and cost
	// are set at commit time.
	Turn window.Turn
	// ContextCost is the total cost of the snapshot sent with Turn.
	ContextCost int
}

// Compose builds the request for in on top of snapshot. The snapshot is
// read, never modified.
func Compose(snapshot []window.Turn, in Input, limits Limits) (Composition, error) {
	if err := CheckLength(in.Text, limits.MessageLengthLimit); err != nil {
		return Composition{}, err
	}

	var content window.Content
	var outgoing provider.Message
	if in.Image != nil {
		uri := dataURI(in.Image)
		// The window keeps the image at auto detail; the request uses the
		// configured quality.
		content = window.Image(uri, window.DetailAuto, in.Text)
		outgoing = imageMessage(in.Text, uri, limits.PhotoQuality.Detail())
	} else {
		text := in.Text
		if in.Author != "" {
			text = in.Author + " says: " + in.Text
		}
		content = window.Text(text)
		outgoing = provider.TextMessage(provider.RoleUser, text)
	}

	msgs := make([]provider.Message, 0, len(snapshot)+1)
	cost := 0
	for _, t := range snapshot {
		msgs = append(msgs, turnMessage(t))
		cost += t.Cost
	}
	msgs = append(msgs, outgoing)

	return Composition{
		Messages:    msgs,
		Turn:        window.Turn{Role: window.RoleUser, Content: content},
		ContextCost: cost,
	}, nil
}

// turnMessage converts a stored turn to the provider's message form.
func turnMessage(t window.Turn) provider.Message {
	role := provider.Role(t.Role)
	if t.Content.Kind == window.KindImage {
		return imageMessage(t.Content.Caption, t.Content.DataURI, t.Content.Detail)
	}
	return provider.TextMessage(role, t.Content.Text)
}

func imageMessage(caption, uri string, detail window.Detail) provider.Message {
	var parts []provider.Content
	if caption != "" {
		parts = append(parts, provider.Content{Type: provider.ContentTypeText, Text: caption})
	}
	parts = append(parts, provider.Content{
		Type:        provider.ContentTypeImage,
		ImageURL:    uri,
		ImageDetail: string(detail),
	})
	return provider.Message{Role: provider.RoleUser, Content: parts}
}

// dataURI base64-encodes b with its sniffed MIME type.
func dataURI(b []byte) string {
	mime := http.DetectContentType(b)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}
