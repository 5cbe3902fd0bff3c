package app

import (
	"fmt"
	"strings"

	"github.com/semmidev/arxivsync/internal/domain"
)

// Failures beyond this count are summarized rather than listed.
const maxListedFailures = 10

func syncSummary(report domain.SyncReport, err error) string {
	if err != nil {
		return fmt.Sprintf("❌ arXiv sync failed: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ arXiv sync: %d uploaded, %d already stored, %d failed",
		report.Uploaded, report.Skipped, report.Failed)
	writeList(&b, report.Failures(), func(o domain.SyncOutcome) string { return o.String() })
	return b.String()
}

func purgeSummary(filter domain.DeletionFilter, report domain.PurgeReport, err error) string {
	var b strings.Builder
	switch {
	case err != nil:
		fmt.Fprintf(&b, "❌ Purge stopped: %v\n", err)
	case report.DryRun:
		b.WriteString("🔎 Purge dry run\n")
	default:
		b.WriteString("🗑 Purge complete\n")
	}
	fmt.Fprintf(&b, "Filter: %s\n", filter)
	if report.DryRun {
		fmt.Fprintf(&b, "Would delete %d of %d object(s)", report.Matched, report.Scanned)
	} else {
		fmt.Fprintf(&b, "Deleted %d of %d object(s), %d error(s)", report.Deleted, report.Scanned, len(report.Errors))
	}
	writeList(&b, report.Errors, func(e domain.KeyError) string { return e.Key + ": " + e.Reason })
	return b.String()
}

func writeList[T any](b *strings.Builder, items []T, format func(T) string) {
	for i, item := range items {
		if i == maxListedFailures {
			fmt.Fprintf(b, "\n… and %d more", len(items)-maxListedFailures)
			return
		}
		b.WriteString("\n  - " + format(item))
	}
}
