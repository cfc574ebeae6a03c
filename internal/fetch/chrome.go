package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// chromeDownloader renders pages in headless Chrome, for sites that build
// their article body with JavaScript.
type chromeDownloader struct {
	userAgent  string
	timeout    time.Duration
	profileDir string
}

func newChromeDownloader(cfg Config) *chromeDownloader {
	return &chromeDownloader{
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		profileDir: cfg.ChromeProfile,
	}
}

func (d *chromeDownloader) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(d.userAgent),
	)
	if d.profileDir != "" {
		// Reuse the profile's cookies and logins.
		opts = append(opts, chromedp.UserDataDir(d.profileDir))
	}
	return opts
}

func (d *chromeDownloader) Download(ctx context.Context, rawURL string) (*page, error) {
	if d.profileDir != "" {
		if err := os.MkdirAll(d.profileDir, 0o755); err != nil {
			return nil, fmt.Errorf("create chrome profile dir: %w", err)
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, d.allocatorOptions()...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, d.timeout)
	defer cancel()

	var html, location string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome render: %w", err)
	}

	final, err := url.Parse(location)
	if err != nil || final.Host == "" {
		final, err = url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
	}
	return &page{URL: final, Body: []byte(html)}, nil
}
