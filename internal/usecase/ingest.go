package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/arxivsync/internal/domain"
)

// Ingest fetches one feed window and synchronizes it into the store.
type Ingest struct {
	source domain.FeedSource
	sync   *Sync
	logger Logger
}

func NewIngest(source domain.FeedSource, sync *Sync, logger Logger) *Ingest {
	return &Ingest{source: source, sync: sync, logger: logger}
}

// Execute fails only when the feed cannot be fetched; per-record failures are in the report.
func (uc *Ingest) Execute(ctx context.Context, query domain.FeedQuery) (domain.SyncReport, error) {
	uc.logger.Infof("Fetching feed (max %d, sort %s %s, last 24h: %t)",
		query.MaxResults, query.SortBy, query.SortOrder, query.Last24Hours)

	records, err := uc.source.Fetch(ctx, query)
	if err != nil {
		return domain.SyncReport{}, fmt.Errorf("fetch feed: %w", err)
	}
	uc.logger.Infof("Found %d paper(s)", len(records))

	return uc.sync.SyncAll(ctx, records), nil
}
