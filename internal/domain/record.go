package domain

import "time"

// FeedRecord is one normalized feed entry that carries a downloadable payload.
type FeedRecord struct {
	Identifier  string
	Title       string
	Published   string
	PublishedAt time.Time
	Updated     string
	UpdatedAt   *time.Time
	PayloadURL  string
	Summary     string
}

type FeedQuery struct {
	SearchQuery string
	Start       int
	MaxResults  int
	SortBy      string
	SortOrder   string
	Last24Hours bool
}
