package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return &Response{Text: "ok"}, nil
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "m" }

func newTestRetrying(p Provider, max int) *Retrying {
	r := WithRetry(p, max, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.delay = func(int) time.Duration { return time.Millisecond }
	return r
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"rate limit 429", errors.New("status 429 too many requests"), true},
		{"overloaded 529", errors.New("529 overloaded"), true},
		{"server 500", errors.New("internal server error 500"), true},
		{"gateway timeout 504", errors.New("504 gateway timeout"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"context canceled", context.Canceled, false},
		{"wrapped deadline", errors.Join(errors.New("timeout"), context.DeadlineExceeded), false},
		{"empty request", ErrEmptyRequest, false},
		{"auth error", errors.New("401 unauthorized"), false},
		{"random error", errors.New("something went wrong"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.expected {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	d0 := retryDelay(0)
	d2 := retryDelay(2)
	if d0 < 1*time.Second || d0 > 4*time.Second {
		t.Errorf("attempt 0 delay %v out of expected range [1s, 4s]", d0)
	}
	if d2 < 4*time.Second || d2 > 16*time.Second {
		t.Errorf("attempt 2 delay %v out of expected range [4s, 16s]", d2)
	}
	for range 20 {
		if d := retryDelay(10); d > maxDelay+maxDelay*jitterPercent/100 {
			t.Errorf("attempt 10 delay %v exceeds cap", d)
		}
	}
}

func TestRetrying_RecoversFromTransientErrors(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("503 service unavailable"), errors.New("429 rate limit")}}
	r := newTestRetrying(p, 3)

	resp, err := r.Complete(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" || p.calls != 3 {
		t.Errorf("text=%q calls=%d, want ok after 3 calls", resp.Text, p.calls)
	}
}

func TestRetrying_StopsOnPermanentError(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("401 unauthorized")}}
	r := newTestRetrying(p, 3)

	if _, err := r.Complete(context.Background(), &Request{}); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestRetrying_GivesUpAfterMaxRetries(t *testing.T) {
	fail := errors.New("502 bad gateway")
	p := &scriptedProvider{errs: []error{fail, fail, fail, fail, fail}}
	r := newTestRetrying(p, 2)

	_, err := r.Complete(context.Background(), &Request{})
	if !errors.Is(err, fail) {
		t.Errorf("err = %v, want %v", err, fail)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestRetrying_ContextCancelledDuringBackoff(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("503"), errors.New("503")}}
	r := newTestRetrying(p, 3)
	r.delay = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Complete(ctx, &Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWithRetry_Defaults(t *testing.T) {
	r := WithRetry(&scriptedProvider{}, -1, nil)
	if r.MaxRetries != defaultMaxRetries || r.Logger == nil {
		t.Errorf("MaxRetries=%d Logger=%v", r.MaxRetries, r.Logger)
	}
	if r.Name() != "scripted" {
		t.Errorf("Name = %q", r.Name())
	}
}
