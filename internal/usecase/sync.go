package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/arxivsync/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	PayloadContentType = "application/pdf"
	MaxTitleLength     = 1024

	MetaIdentifier = "arxiv-id"
	MetaTitle      = "title"
	MetaPublished  = "published"
)

// Sync copies feed records into the store under deterministic keys. A record whose
// key already exists is skipped without downloading anything.
type Sync struct {
	store       domain.ObjectStore
	prober      Prober
	fetcher     domain.PayloadFetcher
	keys        KeyDeriver
	logger      Logger
	concurrency int
}

func NewSync(
	store domain.ObjectStore,
	prober Prober,
	fetcher domain.PayloadFetcher,
	keys KeyDeriver,
	logger Logger,
	concurrency int,
) *Sync {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sync{
		store:       store,
		prober:      prober,
		fetcher:     fetcher,
		keys:        keys,
		logger:      logger,
		concurrency: concurrency,
	}
}

// SyncAll processes every record independently; one failure never stops the others.
// Outcomes are reported in input order. Once ctx is done no further record is started.
func (uc *Sync) SyncAll(ctx context.Context, records []domain.FeedRecord) domain.SyncReport {
	start := time.Now()
	outcomes := make([]domain.SyncOutcome, len(records))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			outcomes[i] = failed(record.Identifier, "", domain.ReasonCancelled, err)
			continue
		}
		g.Go(func() error {
			outcomes[i] = uc.Sync(ctx, record)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewSyncReport(outcomes)
	uc.logger.Infof("Sync finished in %s: %d uploaded, %d already stored, %d failed",
		time.Since(start).Round(time.Millisecond), report.Uploaded, report.Skipped, report.Failed)
	for _, o := range report.Failures() {
		uc.logger.Errorf("  ✗ %s", o)
	}

	return report
}

func (uc *Sync) Sync(ctx context.Context, record domain.FeedRecord) domain.SyncOutcome {
	id := record.Identifier

	if record.Identifier == "" {
		return failed(id, "", domain.ReasonMissingField, fmt.Errorf("%w: identifier", domain.ErrMissingField))
	}
	if record.PayloadURL == "" {
		return failed(id, "", domain.ReasonMissingField, fmt.Errorf("%w: payload url", domain.ErrMissingField))
	}

	key, err := uc.keys.Derive(record.Identifier, record.Published)
	if err != nil {
		return failed(id, "", domain.ReasonInvalidDate, err)
	}

	if uc.prober.Exists(ctx, key) {
		uc.logger.Infof("✓ Already exists: %s - %s", id, SanitizeTitle(record.Title))
		return domain.SyncOutcome{Identifier: id, Key: key, Status: domain.StatusSkippedExists}
	}

	uc.logger.Infof("↓ Downloading: %s from %s", id, record.PayloadURL)
	payload, err := uc.fetcher.Download(ctx, record.PayloadURL)
	if err != nil {
		return failed(id, key, domain.ReasonDownloadError, err)
	}
	uc.logger.Debugf("Downloaded %d bytes for %s", len(payload), id)

	err = uc.store.Put(ctx, domain.PutObject{
		Key:         key,
		Body:        payload,
		ContentType: PayloadContentType,
		Metadata: map[string]string{
			MetaIdentifier: record.Identifier,
			MetaTitle:      SanitizeTitle(record.Title),
			MetaPublished:  record.Published,
		},
	})
	if err != nil {
		return failed(id, key, domain.ReasonUploadError, err)
	}

	uc.logger.Infof("✓ Uploaded: %s", key)
	return domain.SyncOutcome{Identifier: id, Key: key, Status: domain.StatusUploaded}
}

// SanitizeTitle collapses whitespace runs, line breaks included, to single spaces and
// caps the result at MaxTitleLength runes so it fits in object metadata.
func SanitizeTitle(title string) string {
	clean := strings.Join(strings.Fields(title), " ")
	if runes := []rune(clean); len(runes) > MaxTitleLength {
		clean = string(runes[:MaxTitleLength])
	}
	return clean
}

func failed(id, key string, reason domain.FailureReason, err error) domain.SyncOutcome {
	return domain.SyncOutcome{
		Identifier: id,
		Key:        key,
		Status:     domain.StatusFailed,
		Reason:     reason,
		Err:        err,
	}
}
