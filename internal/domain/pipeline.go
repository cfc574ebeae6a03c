package domain

import "context"

// Fetcher downloads a page and extracts its readable article.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Article, error)
}

// Packager writes an article as an e-book file at dest.
type Packager interface {
	Package(article *Article, dest string) error
}

// Deliverer pushes a packaged document to the reading device.
type Deliverer interface {
	Deliver(ctx context.Context, path string) DeliveryOutcome
	Status(ctx context.Context) SyncStatus
}
