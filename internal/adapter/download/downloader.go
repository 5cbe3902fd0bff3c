package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/semmidev/arxivsync/internal/domain"
	"golang.org/x/time/rate"
)

type Options struct {
	MaxBytes  int64
	Timeout   time.Duration
	UserAgent string
	Limiter   *rate.Limiter
}

// Downloader fetches payloads into memory, refusing anything larger than MaxBytes.
type Downloader struct {
	client *http.Client
	opts   Options
}

func New(client *http.Client, opts Options) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, opts: opts}
}

func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if d.opts.Limiter != nil {
		if err := d.opts.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrTransport, err)
		}
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	if d.opts.UserAgent != "" {
		req.Header.Set("User-Agent", d.opts.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", domain.ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: download %s: unexpected status %s", domain.ErrTransport, url, resp.Status)
	}

	if d.opts.MaxBytes > 0 && resp.ContentLength > d.opts.MaxBytes {
		return nil, fmt.Errorf("%w: content length %d > %d", domain.ErrPayloadTooLarge, resp.ContentLength, d.opts.MaxBytes)
	}

	reader := io.Reader(resp.Body)
	if d.opts.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.opts.MaxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrTransport, url, err)
	}
	if d.opts.MaxBytes > 0 && int64(len(data)) > d.opts.MaxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrPayloadTooLarge, d.opts.MaxBytes)
	}

	return data, nil
}
