// Package bot routes Telegram updates through the fetch, package and
// deliver pipeline and reports progress by editing a single chat message.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"rmbot/internal/domain"
	"rmbot/internal/epub"
	"rmbot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// Messenger sends and edits chat messages. *tgbotapi.BotAPI satisfies it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type HandlerConfig struct {
	Folder    string
	AllowFrom []int64 // empty allows everyone
	TempDir   string  // parent of per-request work dirs; os.TempDir() when empty
	Logger    *slog.Logger
	Metrics   *metrics.Collector
}

type Handler struct {
	msgr      Messenger
	fetcher   domain.Fetcher
	packager  domain.Packager
	deliverer domain.Deliverer

	folder    string
	allowFrom []int64
	tempDir   string
	logger    *slog.Logger
	metrics   *metrics.Collector
}

func NewHandler(msgr Messenger, f domain.Fetcher, p domain.Packager, d domain.Deliverer, cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Handler{
		msgr:      msgr,
		fetcher:   f,
		packager:  p,
		deliverer: d,
		folder:    cfg.Folder,
		allowFrom: cfg.AllowFrom,
		tempDir:   cfg.TempDir,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// HandleUpdate processes one update to completion. It is safe to call
// concurrently; requests share nothing but the handler's read-only fields.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	chatID := msg.Chat.ID
	if msg.From != nil && !h.isAllowed(msg.From.ID) {
		h.logger.Warn("unauthorized telegram user",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		h.metrics.ObserveRequest(metrics.OutcomeUnauthorized)
		h.reply(chatID, msg.MessageID, msgUnauthorized)
		return
	}

	if msg.IsCommand() {
		h.handleCommand(ctx, chatID, msg)
		return
	}

	if !looksLikeURL(text) {
		h.reply(chatID, msg.MessageID, msgInstructions)
		return
	}

	if _, err := ValidateURL(text); err != nil {
		h.logger.Info("rejected url", "text", text, "err", err)
		h.metrics.ObserveRequest(metrics.OutcomeInvalidURL)
		h.reply(chatID, msg.MessageID, msgInvalidURL)
		return
	}
	h.processURL(ctx, chatID, msg.MessageID, text)
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.reply(chatID, msg.MessageID, welcomeText)
	case "help":
		h.reply(chatID, msg.MessageID, helpText(h.folder))
	case "status":
		status := h.deliverer.Status(ctx)
		h.metrics.ObserveStatus(string(status.State))
		h.logger.Info("status check", "state", status.State, "diagnostic", status.Diagnostic)
		h.reply(chatID, msg.MessageID, statusText(status))
	default:
		h.reply(chatID, msg.MessageID, msgUnknownCmd)
	}
}

func (h *Handler) processURL(ctx context.Context, chatID int64, replyTo int, rawURL string) {
	log := h.logger.With("request_id", uuid.NewString(), "url", rawURL, "chat_id", chatID)
	done := h.metrics.Track()
	defer done()

	log.Info("processing article")
	p := h.startProgress(chatID, replyTo)

	article, outcome, err := h.run(ctx, log, p, rawURL)
	switch {
	case err != nil:
		log.Error("error processing url", "err", err)
		h.metrics.ObserveRequest(outcomeFor(err))
		p.update(errorText(err))
	case outcome.Succeeded:
		log.Info("article delivered", "title", article.Title)
		h.metrics.ObserveRequest(metrics.OutcomeDelivered)
		p.update(successText(article, h.folder))
	default:
		log.Error("upload failed", "diagnostic", outcome.Diagnostic)
		h.metrics.ObserveRequest(metrics.OutcomeDeliveryFailed)
		p.update(uploadFailedText(outcome.Diagnostic))
	}
}

// run drives fetch, package and deliver in order. The work directory is
// removed before run returns, whatever the outcome.
func (h *Handler) run(ctx context.Context, log *slog.Logger, p *progress, rawURL string) (*domain.Article, domain.DeliveryOutcome, error) {
	p.update(msgDownloading)
	start := time.Now()
	article, err := h.fetcher.Fetch(ctx, rawURL)
	h.metrics.ObserveStage(metrics.StageFetch, time.Since(start))
	if err != nil {
		return nil, domain.DeliveryOutcome{}, err
	}

	p.update(msgConverting)
	dir, err := os.MkdirTemp(h.tempDir, "rmbot-*")
	if err != nil {
		return nil, domain.DeliveryOutcome{}, domain.Errorf(domain.ErrPackaging, "create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove work dir", "dir", dir, "err", err)
		}
	}()

	path := filepath.Join(dir, epub.FileName(article.Title))
	start = time.Now()
	err = h.packager.Package(article, path)
	h.metrics.ObserveStage(metrics.StagePackage, time.Since(start))
	if err != nil {
		return nil, domain.DeliveryOutcome{}, err
	}

	p.update(msgUploading)
	start = time.Now()
	outcome := h.deliverer.Deliver(ctx, path)
	h.metrics.ObserveStage(metrics.StageDeliver, time.Since(start))
	return article, outcome, nil
}

func (h *Handler) isAllowed(userID int64) bool {
	return len(h.allowFrom) == 0 || slices.Contains(h.allowFrom, userID)
}

func (h *Handler) reply(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessageLen))
	msg.ReplyToMessageID = replyTo
	if _, err := h.msgr.Send(msg); err != nil {
		h.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
	}
}

// ValidateURL accepts absolute URLs that carry both a scheme and a host.
// Failures match domain.ErrValidation.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "parse %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, domain.Errorf(domain.ErrValidation, "%q needs a scheme and a host", raw)
	}
	return u, nil
}

func looksLikeURL(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrPackaging):
		return metrics.OutcomePackagingFailed
	case errors.Is(err, domain.ErrDelivery):
		return metrics.OutcomeDeliveryFailed
	default:
		return metrics.OutcomeFetchFailed
	}
}
