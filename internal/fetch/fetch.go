// Package fetch downloads web pages and reduces them to readable articles.
package fetch

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"rmbot/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; rmbot/0.1)"
)

// page is a downloaded document and the URL it was finally served from.
type page struct {
	URL  *url.URL
	Body []byte
}

type downloader interface {
	Download(ctx context.Context, rawURL string) (*page, error)
}

// Config controls how pages are downloaded.
type Config struct {
	Renderer      string // "http" (default) or "chrome"
	UserAgent     string
	Timeout       time.Duration
	MaxBodyBytes  int
	ChromeProfile string // Chrome user data dir, chrome renderer only
	Logger        *slog.Logger
}

// Fetcher implements domain.Fetcher.
type Fetcher struct {
	dl     downloader
	logger *slog.Logger
}

func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var dl downloader
	switch cfg.Renderer {
	case "chrome":
		dl = newChromeDownloader(cfg)
	default:
		dl = newCollyDownloader(cfg)
	}
	return &Fetcher{dl: dl, logger: cfg.Logger}
}

// Fetch downloads rawURL once and extracts its article. Download problems
// match domain.ErrFetch; pages without readable text match domain.ErrExtraction.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.Article, error) {
	f.logger.Info("extracting article", "url", rawURL)

	p, err := f.dl.Download(ctx, rawURL)
	if err != nil {
		f.logger.Error("download failed", "url", rawURL, "err", err)
		return nil, domain.Errorf(domain.ErrFetch, "failed to download webpage: %w", err)
	}

	article, err := Extract(p.Body, p.URL)
	if err != nil {
		f.logger.Error("extraction failed", "url", rawURL, "err", err)
		return nil, err
	}
	article.SourceURL = rawURL

	f.logger.Info("extracted article",
		"title", article.Title,
		"author", article.Author,
		"chars", len(article.Body),
	)
	return article, nil
}
