// Package addressing decides whether an incoming chat message is meant for
// the bot and, if so, what prompt text should be forwarded.
package addressing

import "strings"

// Reason explains a Decision. It is only used for trace logging.
type Reason int

const (
	ReasonNotAddressed Reason = iota
	ReasonMention
	ReasonReplyToBot
	ReasonPrivateChat
	ReasonNameMatch
)

func (r Reason) String() string {
	switch r {
	case ReasonMention:
		return "mention"
	case ReasonReplyToBot:
		return "reply"
	case ReasonPrivateChat:
		return "private"
	case ReasonNameMatch:
		return "name"
	default:
		return "not_addressed"
	}
}

// Message carries the parts of an inbound message the resolver looks at.
type Message struct {
	Text            string
	ChatIsPrivate   bool
	IsReply         bool
	ReplyToAuthorID int64
}

// Identity describes the bot.
type Identity struct {
	Handle        string // e.g. "@NovaBot"
	UserID        int64
	RespondToName bool
	Name          string // personality display name
}

// Decision is the resolver's verdict.
type Decision struct {
	Respond bool
	Prompt  string
	Reason  Reason
}

// Resolve applies the addressing rules in order; the first match wins:
//
//  1. text starts with the bot handle: respond, handle stripped
//  2. reply to one of the bot's messages
//  3. private chat
//  4. name matching enabled and the text contains the personality name
//
// Anything else is ignored.
func Resolve(msg Message, id Identity) Decision {
	if id.Handle != "" && hasPrefixFold(msg.Text, id.Handle) {
		return Decision{
			Respond: true,
			Prompt:  strings.TrimSpace(msg.Text[len(id.Handle):]),
			Reason:  ReasonMention,
		}
	}
	if msg.IsReply && msg.ReplyToAuthorID == id.UserID {
		return Decision{Respond: true, Prompt: msg.Text, Reason: ReasonReplyToBot}
	}
	if msg.ChatIsPrivate {
		return Decision{Respond: true, Prompt: msg.Text, Reason: ReasonPrivateChat}
	}
	if id.RespondToName && id.Name != "" && containsFold(msg.Text, id.Name) {
		return Decision{Respond: true, Prompt: msg.Text, Reason: ReasonNameMatch}
	}
	return Decision{Reason: ReasonNotAddressed}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
