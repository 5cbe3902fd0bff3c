package domain

import "context"

type FeedSource interface {
	Fetch(ctx context.Context, query FeedQuery) ([]FeedRecord, error)
}

type PayloadFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}
