// Package rss fetches, parses, and caches the feeds behind rss widgets. It
// is a collaborator of the dashboard core: widgets only store a feed url,
// and the fetcher turns that into renderable items without ever failing a
// widget — errors degrade to stale or empty results.
package rss

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kalambet/freevibes/internal/storage"
)

// DefaultTTL is how long a cached fetch stays fresh.
const DefaultTTL = 10 * time.Minute

// Item is one feed entry in the shape the dashboard renders.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description,omitempty"`
}

// FeedInfo describes the feed itself.
type FeedInfo struct {
	Title   string `json:"title"`
	Favicon string `json:"favicon,omitempty"`
}

// Result is a parsed feed plus its items. The zero value renders as an
// empty widget.
type Result struct {
	Feed  FeedInfo `json:"feed"`
	Items []Item   `json:"items"`
}

// CacheStore persists fetch results across restarts.
// Implemented by storage.Store.
type CacheStore interface {
	GetCachedFeed(url string) (storage.FeedEntry, error)
	SaveCachedFeed(url, payload string) error
	ClearFeedCache() error
}

// Fetcher resolves feed urls to Results through a TTL cache. Concurrent
// fetches of the same url are collapsed into one request.
type Fetcher struct {
	cache  CacheStore
	parser *gofeed.Parser
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewFetcher creates a Fetcher with the default 10-minute TTL.
func NewFetcher(cache CacheStore) *Fetcher {
	return NewFetcherWithTTL(cache, DefaultTTL)
}

// NewFetcherWithTTL creates a Fetcher with a custom TTL (used by tests).
func NewFetcherWithTTL(cache CacheStore, ttl time.Duration) *Fetcher {
	return &Fetcher{
		cache:  cache,
		parser: gofeed.NewParser(),
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// Fetch returns the feed at url, serving from cache while fresh. On fetch or
// parse failure it falls back to the stale cached copy if one exists, else
// to an empty result — a broken feed never propagates an error to its
// widget.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) Result {
	if cached, ok := f.cached(feedURL, f.ttl); ok {
		return cached
	}

	v, _, _ := f.group.Do(feedURL, func() (any, error) {
		res, err := f.fetch(ctx, feedURL)
		if err != nil {
			f.logger.Warn("feed fetch failed", "url", feedURL, "error", err)
			if stale, ok := f.cached(feedURL, 0); ok {
				return stale, nil
			}
			return Result{Items: []Item{}}, nil
		}
		return res, nil
	})
	return v.(Result)
}

// cached returns the cache entry for url if present and, when maxAge > 0,
// younger than maxAge.
func (f *Fetcher) cached(feedURL string, maxAge time.Duration) (Result, bool) {
	entry, err := f.cache.GetCachedFeed(feedURL)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			f.logger.Warn("reading feed cache", "url", feedURL, "error", err)
		}
		return Result{}, false
	}
	if maxAge > 0 && time.Since(entry.FetchedAt) >= maxAge {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal([]byte(entry.Payload), &res); err != nil {
		f.logger.Warn("cached feed unparsable", "url", feedURL, "error", err)
		return Result{}, false
	}
	return res, true
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string) (Result, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Feed:  FeedInfo{Title: feed.Title, Favicon: faviconFor(feedURL)},
		Items: make([]Item, 0, len(feed.Items)),
	}
	for _, it := range feed.Items {
		res.Items = append(res.Items, Item{
			Title:       it.Title,
			Link:        it.Link,
			PubDate:     it.Published,
			Description: it.Description,
		})
	}

	payload, err := json.Marshal(res)
	if err == nil {
		if err := f.cache.SaveCachedFeed(feedURL, string(payload)); err != nil {
			f.logger.Warn("writing feed cache", "url", feedURL, "error", err)
		}
	}
	return res, nil
}

// faviconFor guesses the favicon from the feed's origin, matching what the
// dashboard shows next to the widget title.
func faviconFor(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}

// RefreshAll warms the cache for every url with bounded concurrency. Used at
// daemon start and on a timer so widgets render instantly from cache.
func (f *Fetcher) RefreshAll(ctx context.Context, urls []string) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to stay polite to feed hosts.

	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		u := u
		g.Go(func() error {
			f.Fetch(gCtx, u)
			return nil
		})
	}
	g.Wait()
}

// ClearCache drops every cached feed.
func (f *Fetcher) ClearCache() error {
	return f.cache.ClearFeedCache()
}
