package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/addressing"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/transcript"
	"github.com/chatrelay/chatrelay/internal/window"
)

// statusCommand bypasses the provider and reports the window state.
const statusCommand = "/status"

// Outcome is how Handle disposed of an event.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeRejected
	OutcomeStatus
	OutcomeAnswered
	OutcomeFallback
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRejected:
		return "rejected"
	case OutcomeStatus:
		return "status"
	case OutcomeAnswered:
		return "answered"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Settings is the slice of configuration the pipeline needs.
type Settings struct {
	Personality    string
	Model          string
	MaxTokens      int
	Limits         Limits
	VisionSupport  bool
	AllowPrivate   bool
	AllowedChats   []int64
	RequestTimeout time.Duration
	Status         StatusSettings
}

// Options wires a Relay. Recorder, Images and Logger are optional.
type Options struct {
	Store     *window.Store
	Provider  provider.Provider
	Sender    Sender
	Images    ImageFetcher
	Recorder  Recorder
	Estimator window.CostEstimator
	Identity  addressing.Identity
	Settings  Settings
	Logger    *slog.Logger
}

// Relay runs the per-message pipeline. Handle is safe for concurrent use;
// all window access goes through the Store.
type Relay struct {
	store     *window.Store
	provider  provider.Provider
	sender    Sender
	images    ImageFetcher
	recorder  Recorder
	estimator window.CostEstimator
	identity  addressing.Identity
	settings  Settings
	logger    *slog.Logger
}

func New(opts Options) *Relay {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	est := opts.Estimator
	if est == nil {
		est = window.UsageEstimator{}
	}
	return &Relay{
		store:     opts.Store,
		provider:  opts.Provider,
		sender:    opts.Sender,
		images:    opts.Images,
		recorder:  opts.Recorder,
		estimator: est,
		identity:  opts.Identity,
		settings:  opts.Settings,
		logger:    logger,
	}
}

// Handle processes one inbound event end to end. Errors are logged and
// folded into the returned Outcome; none escape.
func (r *Relay) Handle(ctx context.Context, ev Event) Outcome {
	log := r.logger.With("chat_id", ev.ChatID, "message_id", ev.MessageID, "author", ev.AuthorName)

	if reason := r.admit(ev); reason != "" {
		log.Debug("event not admitted", "reason", reason)
		return OutcomeIgnored
	}

	decision := addressing.Resolve(addressing.Message{
		Text:            ev.prompt(),
		ChatIsPrivate:   ev.ChatIsPrivate,
		IsReply:         ev.IsReply,
		ReplyToAuthorID: ev.ReplyToAuthorID,
	}, r.identity)
	if !decision.Respond {
		log.Debug("message not addressed to bot")
		return OutcomeIgnored
	}
	prompt := decision.Prompt
	log = log.With("reason", decision.Reason.String())

	if err := CheckLength(prompt, r.settings.Limits.MessageLengthLimit); err != nil {
		log.Info("rejected input", "err", err)
		r.send(ctx, log, Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: TooLongText})
		return OutcomeRejected
	}

	log.Info("prompt received", "prompt", prompt, "edited", ev.Edited)

	if err := r.sender.Typing(ctx, ev.ChatID); err != nil {
		log.Warn("typing indicator failed", "err", err)
	}

	snapshot, evicted := r.store.EvictAndSnapshot()
	if evicted > 0 {
		log.Debug("evicted turns", "evicted", evicted, "remaining", len(snapshot))
	}

	if strings.HasPrefix(prompt, statusCommand) {
		text := Report(snapshot, r.store.Now(), r.settings.Status)
		if err := r.send(ctx, log, Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: text, HTML: true}); err != nil {
			return OutcomeFailed
		}
		return OutcomeStatus
	}

	in := Input{Author: ev.AuthorName, Text: prompt}
	if ev.Image != nil {
		img, err := r.fetchImage(ctx, *ev.Image)
		if err != nil {
			log.Error("image download failed", "err", err)
			return OutcomeFailed
		}
		log.Info("image received", "width", ev.Image.Width, "height", ev.Image.Height,
			"bytes", len(img), "quality", r.settings.Limits.PhotoQuality.String())
		in.Image = img
	}

	comp, err := Compose(snapshot, in, r.settings.Limits)
	if err != nil {
		if errors.Is(err, ErrTooLong) {
			r.send(ctx, log, Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: TooLongText})
			return OutcomeRejected
		}
		log.Error("compose request", "err", err)
		return OutcomeFailed
	}

	res, err := r.complete(ctx, comp, ev.AuthorName)
	if err != nil {
		log.Error("completion failed", "provider", r.provider.Name(), "err", err)
		return OutcomeFailed
	}

	var answer string
	r.store.Commit(func(w *window.Window, now time.Time) {
		answer = Ingest(w, comp, res, r.estimator, r.settings.Personality, now)
	})
	_, ok := Answer(res, r.settings.Personality)
	outcome := OutcomeAnswered
	if !ok {
		outcome = OutcomeFallback
	}

	var usage provider.Usage
	if res != nil {
		usage = res.Usage
	}
	log.Info("answer ready",
		"answer", answer,
		"outcome", outcome.String(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens)

	if err := r.send(ctx, log, Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: answer}); err != nil {
		outcome = OutcomeFailed
	}
	r.record(ctx, log, ev, prompt, answer, outcome, usage)
	return outcome
}

// admit applies the allow-list and message-type filters. It returns the
// reason for dropping the event, or "" to keep it.
func (r *Relay) admit(ev Event) string {
	switch {
	case ev.Image != nil && !r.settings.VisionSupport:
		return "vision disabled"
	case ev.Image == nil && ev.Text == "":
		return "no text"
	case !config.AllowsChat(r.settings.AllowedChats, ev.ChatID):
		return "chat not allowed"
	case ev.ChatIsPrivate && !r.settings.AllowPrivate:
		return "private messages disabled"
	}
	return ""
}

func (r *Relay) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.settings.RequestTimeout > 0 {
		return context.WithTimeout(ctx, r.settings.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Relay) fetchImage(ctx context.Context, ref ImageRef) ([]byte, error) {
	if r.images == nil {
		return nil, errors.New("no image fetcher configured")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.images.Fetch(ctx, ref)
}

func (r *Relay) complete(ctx context.Context, comp Composition, user string) (*provider.Response, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.provider.Complete(ctx, &provider.Request{
		Model:     r.settings.Model,
		Messages:  comp.Messages,
		MaxTokens: r.settings.MaxTokens,
		User:      user,
	})
}

func (r *Relay) send(ctx context.Context, log *slog.Logger, reply Reply) error {
	if _, err := r.sender.Send(ctx, reply); err != nil {
		log.Error("send reply failed", "err", err)
		return err
	}
	return nil
}

func (r *Relay) record(ctx context.Context, log *slog.Logger, ev Event, prompt, answer string, outcome Outcome, usage provider.Usage) {
	if r.recorder == nil {
		return
	}
	err := r.recorder.Record(ctx, &transcript.Exchange{
		ChatID:       ev.ChatID,
		MessageID:    ev.MessageID,
		Author:       ev.AuthorName,
		Prompt:       prompt,
		HasImage:     ev.Image != nil,
		Answer:       answer,
		Outcome:      outcome.String(),
		Model:        r.settings.Model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CreatedAt:    r.store.Now(),
	})
	if err != nil {
		log.Warn("transcript record failed", "err", err)
	}
}
