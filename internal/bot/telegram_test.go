package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSource struct {
	ch      chan tgbotapi.Update
	timeout int
	stopped atomic.Bool
}

func (s *fakeSource) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	s.timeout = cfg.Timeout
	return s.ch
}

func (s *fakeSource) StopReceivingUpdates() { s.stopped.Store(true) }

func runBot(ctx context.Context, b *Bot) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx) }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) {
	t.Helper()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBotRun_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	src := &fakeSource{ch: make(chan tgbotapi.Update, 2)}
	b := NewBot(src, f.handler, BotConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	src.ch <- textUpdate("https://panic.example.com/")
	src.ch <- commandUpdate("/start")
	close(src.ch)

	waitRun(t, runBot(context.Background(), b))

	if src.timeout != defaultPollTimeout {
		t.Errorf("poll timeout: got %d, want %d", src.timeout, defaultPollTimeout)
	}
	var sawWelcome bool
	for _, text := range f.msgr.texts() {
		if text == welcomeText {
			sawWelcome = true
		}
	}
	if !sawWelcome {
		t.Errorf("update after panic not handled: %q", f.msgr.texts())
	}
}

func TestBotRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	src := &fakeSource{ch: make(chan tgbotapi.Update)}
	b := NewBot(src, f.handler, BotConfig{PollTimeout: 5, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runBot(ctx, b)
	cancel()
	waitRun(t, errc)

	if !src.stopped.Load() {
		t.Error("StopReceivingUpdates not called")
	}
	if src.timeout != 5 {
		t.Errorf("poll timeout: got %d, want 5", src.timeout)
	}
}

func TestBotRun_WaitsForInflight(t *testing.T) {
	f := newFixture(t)
	src := &fakeSource{ch: make(chan tgbotapi.Update, 1)}
	b := NewBot(src, f.handler, BotConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	src.ch <- textUpdate("https://example.com/post")
	close(src.ch)
	waitRun(t, runBot(context.Background(), b))

	if f.deliverer.calls != 1 {
		t.Errorf("deliver calls after Run returned: got %d, want 1", f.deliverer.calls)
	}
}
