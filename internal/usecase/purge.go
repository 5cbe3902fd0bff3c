package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/semmidev/arxivsync/internal/domain"
)

const DefaultPageSize = 1000

var errNothingListed = errors.New("nothing listed")

type PurgeOptions struct {
	PageSize  int
	BatchSize int
	DryRun    bool
}

// Purge deletes the objects selected by a DeletionFilter, one listing page at a time.
// It is not atomic: an interrupted run leaves the prefix partially pruned and can be
// repeated with the same filter.
type Purge struct {
	store  domain.ObjectStore
	logger Logger
	opts   PurgeOptions
}

func NewPurge(store domain.ObjectStore, logger Logger, opts PurgeOptions) *Purge {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.BatchSize < 1 || opts.BatchSize > opts.PageSize {
		opts.BatchSize = opts.PageSize
	}
	return &Purge{store: store, logger: logger, opts: opts}
}

// Execute returns an error only when a listing page cannot be fetched or ctx ends;
// per-key deletion failures are collected in the report.
func (uc *Purge) Execute(ctx context.Context, filter domain.DeletionFilter) (domain.PurgeReport, error) {
	start := time.Now()
	report := domain.PurgeReport{DryRun: uc.opts.DryRun}

	uc.logger.Infof("Starting purge: %s (dry run: %t)", filter, uc.opts.DryRun)

	err := uc.store.WalkPages(ctx, filter.Prefix, uc.opts.PageSize, func(page []domain.StoredObject) error {
		report.Pages++
		if len(page) == 0 {
			if report.Pages == 1 {
				return errNothingListed
			}
			return nil
		}
		report.Scanned += len(page)

		keys := selectKeys(page, filter)
		if len(keys) == 0 {
			uc.logger.Infof("Page %d: no objects match the filter", report.Pages)
			return nil
		}
		report.Matched += len(keys)

		if uc.opts.DryRun {
			for _, key := range keys {
				uc.logger.Infof("  would delete: %s", key)
			}
			return nil
		}

		uc.logger.Infof("Page %d: deleting %d of %d objects", report.Pages, len(keys), len(page))
		return uc.deleteKeys(ctx, keys, &report)
	})

	if errors.Is(err, errNothingListed) {
		uc.logger.Infof("No objects found under %q", filter.Prefix)
		err = nil
	}
	if err != nil {
		uc.logger.Errorf("Purge stopped after %d page(s): %v", report.Pages, err)
		return report, fmt.Errorf("purge: %w", err)
	}

	uc.logger.Infof("Purge complete in %s: deleted %d object(s), %d error(s), %d scanned",
		time.Since(start).Round(time.Millisecond), report.Deleted, len(report.Errors), report.Scanned)
	return report, nil
}

// selectKeys applies the age predicate and then the pattern predicate.
func selectKeys(page []domain.StoredObject, filter domain.DeletionFilter) []string {
	var keys []string
	for _, obj := range page {
		if !filter.MatchesPrefix(obj) || !filter.MatchesAge(obj) {
			continue
		}
		if !filter.MatchesPattern(obj) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys
}

func (uc *Purge) deleteKeys(ctx context.Context, keys []string, report *domain.PurgeReport) error {
	for start := 0; start < len(keys); start += uc.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := keys[start:min(start+uc.opts.BatchSize, len(keys))]
		deleted, failedKeys, err := uc.store.DeleteBatch(ctx, batch)
		if err != nil {
			uc.logger.Errorf("Batch delete of %d object(s) failed: %v", len(batch), err)
			for _, key := range batch {
				report.Errors = append(report.Errors, domain.KeyError{Key: key, Reason: err.Error()})
			}
			continue
		}

		for _, key := range deleted {
			uc.logger.Debugf("  ✓ Deleted: %s", key)
		}
		for _, ke := range failedKeys {
			uc.logger.Errorf("  - %s: %s", ke.Key, ke.Reason)
		}
		report.Deleted += len(deleted)
		report.Errors = append(report.Errors, failedKeys...)
	}
	return nil
}
