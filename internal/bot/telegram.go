package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultPollTimeout = 30

// UpdateSource is the long-polling half of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type BotConfig struct {
	PollTimeout int // seconds
	Logger      *slog.Logger
}

// Bot feeds updates from Telegram to a Handler, one goroutine per update.
type Bot struct {
	source      UpdateSource
	handler     *Handler
	pollTimeout int
	logger      *slog.Logger

	wg sync.WaitGroup
}

func NewBot(source UpdateSource, handler *Handler, cfg BotConfig) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bot{
		source:      source,
		handler:     handler,
		pollTimeout: cfg.PollTimeout,
		logger:      cfg.Logger,
	}
}

// Run polls for updates until ctx is cancelled or the update channel
// closes, then waits for in-flight requests to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.source.GetUpdatesChan(u)

	b.logger.Info("telegram polling started")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram polling stopping")
			b.source.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in update handler",
				"update_id", update.UpdateID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	b.handler.HandleUpdate(ctx, update)
}
