// Package console is a line-based stdin/stdout transport for trying a
// configuration without a Telegram bot.
package console

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/chatrelay/chatrelay/internal/addressing"
	"github.com/chatrelay/chatrelay/internal/relay"
)

// ChatID and BotUserID are the fixed ids of the console conversation.
const (
	ChatID    int64 = 1
	BotUserID int64 = -1
	userID    int64 = 2
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Console reads prompts from in and prints replies to out. It implements
// relay.Sender and relay.ImageFetcher.
type Console struct {
	scanner *bufio.Scanner
	out     io.Writer
	author  string
	bot     string

	mu     sync.Mutex
	nextID int
}

// New creates a console speaking as author to a bot named bot.
func New(in io.Reader, out io.Writer, author, bot string) *Console {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &Console{scanner: s, out: out, author: author, bot: bot}
}

// Identity returns the bot identity used for addressing console messages.
func Identity(handle, name string, respondToName bool) addressing.Identity {
	return addressing.Identity{Handle: handle, UserID: BotUserID, RespondToName: respondToName, Name: name}
}

// Run reads lines until EOF, "/quit" or ctx is done and hands each one to
// handle synchronously.
//
//	/image <path> [caption]   send a local image file
//	/group <text>             send as a group message instead of privately
func (c *Console) Run(ctx context.Context, handle func(context.Context, relay.Event)) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := c.readLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		ev, err := c.parse(line)
		if err != nil {
			fmt.Fprintf(c.out, "error: %s\n", err)
			continue
		}
		handle(ctx, ev)
	}
}

func (c *Console) readLine() (string, error) {
	fmt.Fprint(c.out, "\n> ")
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.scanner.Text()), nil
}

func (c *Console) parse(line string) (relay.Event, error) {
	ev := relay.Event{
		ChatID:        ChatID,
		MessageID:     c.id(),
		AuthorID:      userID,
		AuthorName:    c.author,
		ChatIsPrivate: true,
	}

	if rest, ok := strings.CutPrefix(line, "/group "); ok {
		ev.ChatIsPrivate = false
		line = strings.TrimSpace(rest)
	}

	if line == "/image" || strings.HasPrefix(line, "/image ") {
		rest := strings.TrimSpace(strings.TrimPrefix(line, "/image"))
		path, caption, _ := strings.Cut(rest, " ")
		if path == "" {
			return relay.Event{}, fmt.Errorf("usage: /image <path> [caption]")
		}
		ev.Image = &relay.ImageRef{Path: path}
		ev.Caption = strings.TrimSpace(caption)
		return ev, nil
	}

	ev.Text = line
	return ev, nil
}

func (c *Console) id() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// Send prints the reply. HTML replies are reduced to plain text.
func (c *Console) Send(_ context.Context, r relay.Reply) (int, error) {
	text := r.Text
	if r.HTML {
		text = html.UnescapeString(tagPattern.ReplaceAllString(text, ""))
	}
	if _, err := fmt.Fprintf(c.out, "%s: %s\n", c.bot, text); err != nil {
		return 0, err
	}
	return c.id(), nil
}

func (c *Console) Typing(_ context.Context, _ int64) error {
	_, err := fmt.Fprintf(c.out, "%s is typing...\n", c.bot)
	return err
}

// Fetch reads the image from the local path in ref.
func (c *Console) Fetch(_ context.Context, ref relay.ImageRef) ([]byte, error) {
	if ref.Path == "" {
		return nil, fmt.Errorf("image has no local path")
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}
