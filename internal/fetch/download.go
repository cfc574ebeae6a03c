package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// collyDownloader performs a single GET per call using a fresh collector.
type collyDownloader struct {
	userAgent string
	timeout   time.Duration
	maxBody   int
	transport http.RoundTripper
}

func newCollyDownloader(cfg Config) *collyDownloader {
	return &collyDownloader{
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxBody:   cfg.MaxBodyBytes,
		transport: newHTTPTransport(),
	}
}

func (d *collyDownloader) Download(ctx context.Context, rawURL string) (*page, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(d.userAgent),
		colly.MaxBodySize(d.maxBody),
	)
	c.WithTransport(d.transport)
	c.SetRequestTimeout(d.timeout)

	var (
		result   *page
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		result = &page{
			URL:  r.Request.URL,
			Body: append([]byte(nil), r.Body...),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("HTTP %d from %s", r.StatusCode, rawURL)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if fetchErr != nil {
			return nil, fetchErr
		}
		if err != nil {
			return nil, err
		}
	}
	if result == nil {
		return nil, errors.New("empty response")
	}
	return result, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
