// Package telegram connects the relay to the Telegram Bot API: long polling
// for updates, replies, the typing indicator and photo downloads.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/chatrelay/chatrelay/internal/addressing"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/relay"
)

// ErrIdentityMismatch is returned when the token belongs to a different bot
// than the configured username.
var ErrIdentityMismatch = errors.New("telegram: bot identity does not match configured username")

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// maxPhotoBytes caps a single photo download.
const maxPhotoBytes = 20 << 20

// Options configures a Bot.
type Options struct {
	Token    string
	Username string // "@BotName", checked against getMe

	PhotoQuality   config.PhotoQuality
	SendsPerSecond float64 // 0 disables throttling
	PollTimeout    int     // long-poll timeout in seconds, default 60

	// APIEndpoint and FileEndpoint default to the public Bot API; both are
	// fmt patterns taking the token and the method or file path.
	APIEndpoint  string
	FileEndpoint string
	HTTPClient   *http.Client

	Logger *slog.Logger
}

// Bot is a connected Telegram bot. It implements relay.Sender and
// relay.ImageFetcher.
type Bot struct {
	api          *tgbotapi.BotAPI
	limiter      *rate.Limiter
	quality      config.PhotoQuality
	pollTimeout  int
	fileEndpoint string
	http         *http.Client
	logger       *slog.Logger
}

// New connects with the token, verifies the bot's identity, and routes the
// library's own polling log output through the logger.
func New(opts Options) (*Bot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := opts.FileEndpoint
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}

	_ = tgbotapi.SetLogger(botLogger{logger: logger})

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %s", describeError(err))
	}
	if err := CheckIdentity(opts.Username, api.Self.UserName); err != nil {
		return nil, err
	}

	limit := rate.Inf
	burst := 1
	if opts.SendsPerSecond > 0 {
		limit = rate.Limit(opts.SendsPerSecond)
		burst = max(1, int(opts.SendsPerSecond))
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60
	}

	logger.Info("connected to telegram", "username", "@"+api.Self.UserName, "id", api.Self.ID)
	return &Bot{
		api:          api,
		limiter:      rate.NewLimiter(limit, burst),
		quality:      opts.PhotoQuality,
		pollTimeout:  pollTimeout,
		fileEndpoint: fileEndpoint,
		http:         client,
		logger:       logger,
	}, nil
}

// CheckIdentity compares the configured "@name" with the account's
// username, ignoring case.
func CheckIdentity(configured, actual string) error {
	if strings.EqualFold(configured, "@"+actual) {
		return nil
	}
	return fmt.Errorf("%w: connected as @%s but configured name is %s", ErrIdentityMismatch, actual, configured)
}

// Identity describes the bot for the addressing rules.
func (b *Bot) Identity(name string, respondToName bool) addressing.Identity {
	return addressing.Identity{
		Handle:        "@" + b.api.Self.UserName,
		UserID:        b.api.Self.ID,
		RespondToName: respondToName,
		Name:          name,
	}
}

// Run polls for updates until ctx is done, handing each message to handle
// in its own goroutine. It returns after every in-flight handler finished.
func (b *Bot) Run(ctx context.Context, handle func(context.Context, relay.Event)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message", "edited_message"}
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := EventFromUpdate(upd, b.quality)
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error("panic while handling update",
							"update_id", upd.UpdateID, "panic", r, "stack", string(debug.Stack()))
					}
				}()
				handle(ctx, ev)
			}()
		}
	}
}

// EventFromUpdate converts an update into a relay event. Edited messages
// are treated as new ones. ok is false for updates carrying no message.
func EventFromUpdate(u tgbotapi.Update, quality config.PhotoQuality) (relay.Event, bool) {
	msg := u.Message
	edited := false
	if msg == nil && u.EditedMessage != nil {
		msg, edited = u.EditedMessage, true
	}
	if msg == nil || msg.Chat == nil {
		return relay.Event{}, false
	}

	ev := relay.Event{
		ChatID:        msg.Chat.ID,
		MessageID:     msg.MessageID,
		ChatIsPrivate: msg.Chat.IsPrivate(),
		Text:          msg.Text,
		Caption:       msg.Caption,
		Edited:        edited,
	}
	if msg.From != nil {
		ev.AuthorID = msg.From.ID
		ev.AuthorName = msg.From.FirstName
	}
	if r := msg.ReplyToMessage; r != nil {
		ev.IsReply = true
		if r.From != nil {
			ev.ReplyToAuthorID = r.From.ID
		}
	}
	if len(msg.Photo) > 0 {
		p := selectPhoto(msg.Photo, quality)
		ev.Image = &relay.ImageRef{FileID: p.FileID, Width: p.Width, Height: p.Height}
	}
	return ev, true
}

// selectPhoto picks a size by quality index: Telegram lists sizes from
// smallest to largest, and the index is clamped to what is available.
func selectPhoto(sizes []tgbotapi.PhotoSize, q config.PhotoQuality) tgbotapi.PhotoSize {
	i := int(q)
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	if i < 0 {
		i = 0
	}
	return sizes[i]
}

// Send delivers r, splitting text longer than one Telegram message. The
// returned id is that of the first message sent.
//
// The Bot API client takes no context, so ctx is checked before each call;
// a call already in flight is bounded only by the HTTP client timeout.
func (b *Bot) Send(ctx context.Context, r relay.Reply) (int, error) {
	firstID := 0
	for i, chunk := range splitMessage(r.Text, maxMessageRunes) {
		if err := b.wait(ctx); err != nil {
			return firstID, err
		}
		msg := tgbotapi.NewMessage(r.ChatID, chunk)
		if i == 0 {
			msg.ReplyToMessageID = r.ReplyTo
		}
		if r.HTML {
			msg.ParseMode = tgbotapi.ModeHTML
			msg.DisableWebPagePreview = true
		}
		sent, err := b.api.Send(msg)
		if err != nil {
			return firstID, fmt.Errorf("send message: %s", describeError(err))
		}
		if i == 0 {
			firstID = sent.MessageID
		}
	}
	return firstID, nil
}

// Typing shows the typing indicator in chatID.
func (b *Bot) Typing(ctx context.Context, chatID int64) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send chat action: %s", describeError(err))
	}
	return nil
}

// Fetch downloads the photo behind ref.
func (b *Bot) Fetch(ctx context.Context, ref relay.ImageRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: ref.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file %s: %s", ref.FileID, describeError(err))
	}

	url := fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("download file: larger than %d bytes", maxPhotoBytes)
	}
	return data, nil
}

// wait blocks for a send slot and fails if ctx is done.
func (b *Bot) wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

// splitMessage cuts s into pieces of at most limit runes, preferring to
// break at a newline.
func splitMessage(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var out []string
	for utf8.RuneCountInString(s) > limit {
		cut := runeOffset(s, limit)
		if nl := strings.LastIndexByte(s[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// runeOffset returns the byte offset of the n-th rune in s.
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}

// describeError renders Bot API errors as "[Error <code>] <description>".
func describeError(err error) string {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("[Error %d] %s", apiErr.Code, apiErr.Message)
	}
	return err.Error()
}

// botLogger adapts slog to the library's logger, which reports polling
// failures.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn("telegram: " + strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn("telegram: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}
