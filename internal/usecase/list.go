package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/semmidev/arxivsync/internal/domain"
)

const rule = "================================="

// List prints the entries of one feed window without touching the store.
type List struct {
	source domain.FeedSource
}

func NewList(source domain.FeedSource) *List {
	return &List{source: source}
}

func (uc *List) Execute(ctx context.Context, query domain.FeedQuery, w io.Writer) (int, error) {
	records, err := uc.source.Fetch(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total entries: %d\n%s\n\n", len(records), rule)
	for i, r := range records {
		fmt.Fprintf(&b, "%d. Title: %s\n", i+1, SanitizeTitle(r.Title))
		fmt.Fprintf(&b, "   ArXiv ID: %s\n", r.Identifier)
		fmt.Fprintf(&b, "   Published: %s\n", r.Published)
		fmt.Fprintf(&b, "   PDF URL: %s\n\n", r.PayloadURL)
	}
	fmt.Fprintf(&b, "%s\nTotal PDFs available: %d\n", rule, len(records))

	if _, err := io.WriteString(w, b.String()); err != nil {
		return len(records), fmt.Errorf("write listing: %w", err)
	}
	return len(records), nil
}
