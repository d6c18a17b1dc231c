package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	defaultFetchTimeout = 5 * time.Second
	defaultFetchLimit   = 2 << 20 // 2 MiB
)

// Fetcher downloads remote avatars into a Store.
//
// FetchAvatar never fails: any problem (network error, non-200 status, body
// too large, content that is not an image, timeout, store error) falls back to
// DefaultAvatar and is only logged.
type Fetcher struct {
	client  *http.Client
	store   Store
	timeout time.Duration
	limit   int64
	logger  *slog.Logger
}

// NewFetcher uses timeout for the whole download; zero picks a default.
func NewFetcher(store Store, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		store:   store,
		timeout: timeout,
		limit:   defaultFetchLimit,
		logger:  logger,
	}
}

// FetchAvatar stores the image at rawURL and returns its ref.
func (f *Fetcher) FetchAvatar(ctx context.Context, rawURL string) Ref {
	if rawURL == "" {
		return DefaultAvatar
	}

	ref, err := f.fetch(ctx, rawURL)
	if err != nil {
		f.logger.Warn("could not download avatar, using default",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return DefaultAvatar
	}
	return ref
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (Ref, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("blob: building avatar request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob: fetching avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("blob: avatar host returned status %d", resp.StatusCode)
	}

	// Read one byte past the limit so an oversized body is detected rather
	// than silently truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit+1))
	if err != nil {
		return "", fmt.Errorf("blob: reading avatar body: %w", err)
	}
	if int64(len(data)) > f.limit {
		return "", fmt.Errorf("blob: avatar larger than %s", humanize.IBytes(uint64(f.limit)))
	}
	if !IsImage(data) {
		return "", fmt.Errorf("blob: avatar is not an image")
	}

	ref, err := f.store.Put(ctx, SniffExt(data), data)
	if err != nil {
		return "", err
	}
	return ref, nil
}
