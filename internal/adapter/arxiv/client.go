package arxiv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/semmidev/arxivsync/internal/domain"
	"golang.org/x/time/rate"
)

const (
	pdfMediaType  = "application/pdf"
	pdfPathMarker = "/pdf/"
	recencyWindow = 24 * time.Hour
)

var (
	absPattern = regexp.MustCompile(`abs/(.+)$`)

	// Tried in order when the id carries no abs/ segment.
	knownIDPrefixes = []string{
		"http://arxiv.org/abs/",
		"https://arxiv.org/abs/",
		"http://arxiv.org/",
		"https://arxiv.org/",
		"oai:arXiv.org:",
	}
)

type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Limiter spaces requests to the feed host; nil disables limiting.
	Limiter *rate.Limiter
}

// Client queries the arXiv Atom API and turns its entries into feed records.
type Client struct {
	httpClient *http.Client
	opts       Options
	now        func() time.Time
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		opts:       opts,
		now:        time.Now,
	}
}

// Fetch issues one query and returns the entries that carry both a PDF link and an
// identifier. Any transport or parse failure fails the whole call.
func (c *Client) Fetch(ctx context.Context, query domain.FeedQuery) ([]domain.FeedRecord, error) {
	body, err := c.get(ctx, c.queryURL(query))
	if err != nil {
		return nil, err
	}

	entries, err := parseEntries(body)
	if err != nil {
		return nil, err
	}

	if query.Last24Hours {
		entries = publishedSince(entries, c.now().Add(-recencyWindow))
	}

	records := make([]domain.FeedRecord, 0, len(entries))
	for _, entry := range entries {
		record := toRecord(entry)
		if record.PayloadURL == "" || record.Identifier == "" {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

func (c *Client) queryURL(q domain.FeedQuery) string {
	params := url.Values{}
	params.Set("search_query", q.SearchQuery)
	params.Set("sortBy", q.SortBy)
	params.Set("sortOrder", q.SortOrder)
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("max_results", strconv.Itoa(q.MaxResults))
	return c.opts.BaseURL + "?" + params.Encode()
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrTransport, err)
		}
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch feed: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch feed: unexpected status %s", domain.ErrTransport, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read feed body: %v", domain.ErrTransport, err)
	}
	return body, nil
}

// parseEntries parses an Atom document into a flat entry sequence. Documents whose
// root element is not <feed> are rejected.
func parseEntries(body []byte) ([]*atom.Entry, error) {
	parser := &atom.Parser{}
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %v", domain.ErrMalformedData, err)
	}

	entries := make([]*atom.Entry, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// publishedSince keeps entries published at or after cutoff. Entries without a
// parsable published date are dropped.
func publishedSince(entries []*atom.Entry, cutoff time.Time) []*atom.Entry {
	kept := entries[:0]
	for _, entry := range entries {
		if entry.PublishedParsed == nil || entry.PublishedParsed.Before(cutoff) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

func toRecord(entry *atom.Entry) domain.FeedRecord {
	record := domain.FeedRecord{
		Identifier: extractIdentifier(entry.ID),
		Title:      entry.Title,
		Published:  entry.Published,
		Updated:    entry.Updated,
		PayloadURL: pdfLink(entry.Links),
		Summary:    strings.TrimSpace(entry.Summary),
		UpdatedAt:  entry.UpdatedParsed,
	}
	if entry.PublishedParsed != nil {
		record.PublishedAt = *entry.PublishedParsed
	}
	return record
}

func pdfLink(links []*atom.Link) string {
	for _, link := range links {
		if link == nil {
			continue
		}
		if link.Type == pdfMediaType || strings.Contains(link.Href, pdfPathMarker) {
			return link.Href
		}
	}
	return ""
}

func extractIdentifier(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if m := absPattern.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return stripKnownPrefix(id)
}

func stripKnownPrefix(id string) string {
	for _, prefix := range knownIDPrefixes {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix)
		}
	}
	return id
}
