// Package extractor fetches source pages and extracts the metadata the
// composer summarizes.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// ErrUnsupportedContent is returned for responses that are not HTML.
var ErrUnsupportedContent = errors.New("unsupported content type")

// Config configures an Extractor.
type Config struct {
	HTTP HTTPClientConfig
	// CacheTTL is how long metadata is cached per URL. Zero disables caching.
	CacheTTL time.Duration
	// CacheCapacity bounds the number of cached URLs.
	CacheCapacity uint64
}

// Extractor implements metadata extraction over HTTP with a result cache.
type Extractor struct {
	client *HTTPClient
	cache  *ttlcache.Cache[string, *domain.Metadata]
	logger zerolog.Logger
}

// New creates an Extractor.
func New(cfg Config, logger zerolog.Logger) *Extractor {
	e := &Extractor{
		client: NewHTTPClient(cfg.HTTP),
		logger: logger.With().Str("component", "extractor").Logger(),
	}
	if cfg.CacheTTL > 0 {
		capacity := cfg.CacheCapacity
		if capacity == 0 {
			capacity = 256
		}
		e.cache = ttlcache.New(
			ttlcache.WithCapacity[string, *domain.Metadata](capacity),
			ttlcache.WithTTL[string, *domain.Metadata](cfg.CacheTTL),
		)
	}
	return e
}

// Extract fetches rawURL and returns its metadata. Cached results are copies,
// so callers may modify them.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*domain.Metadata, error) {
	key, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if item := e.cache.Get(key); item != nil {
			e.logger.Debug().Str("url", key).Msg("metadata cache hit")
			return cloneMetadata(item.Value()), nil
		}
	}

	start := time.Now()
	page, err := e.client.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	if !isHTML(page.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContent, page.ContentType)
	}

	md, err := ParseMetadata(page.URL, page.Body)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("url", page.URL).
		Int("bytes", len(page.Body)).
		Int("headings", len(md.Headings)).
		Dur("duration", time.Since(start)).
		Msg("metadata extracted")

	if e.cache != nil {
		e.cache.Set(key, cloneMetadata(md), ttlcache.DefaultTTL)
	}
	return md, nil
}

// CacheLen returns the number of cached URLs.
func (e *Extractor) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func cloneMetadata(md *domain.Metadata) *domain.Metadata {
	c := *md
	c.Keywords = append([]string(nil), md.Keywords...)
	c.Headings = append([]string(nil), md.Headings...)
	if md.PublishedAt != nil {
		t := *md.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}
