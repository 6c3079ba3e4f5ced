package news

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/relay"
)

const (
	// DefaultPrompt is the fixed message that asks the bot for news.
	DefaultPrompt = "最新新闻"

	// DefaultUserID identifies news calls upstream.
	DefaultUserID = "news_fetcher"

	// DefaultTTL is how long a fetched list is served from memory.
	DefaultTTL = 5 * time.Minute
)

// Aggregator runs a non-streaming chat turn.
type Aggregator interface {
	Aggregate(ctx context.Context, req relay.ChatRequest, opts ...relay.AggregateOption) (string, error)
}

// Config configures a Fetcher. Zero values take the defaults above.
type Config struct {
	Prompt string
	UserID string

	// TTL of the cache. Negative disables caching.
	TTL time.Duration

	Logger *slog.Logger
}

// Fetcher asks the upstream for the latest news and extracts the items.
// Concurrent cache misses share a single upstream call.
type Fetcher struct {
	agg    Aggregator
	prompt string
	userID string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	items     []Item
	fetchedAt time.Time
}

// NewFetcher returns a Fetcher backed by agg.
func NewFetcher(agg Aggregator, cfg Config) *Fetcher {
	f := &Fetcher{
		agg:    agg,
		prompt: cfg.Prompt,
		userID: cfg.UserID,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
		now:    time.Now,
	}
	if f.prompt == "" {
		f.prompt = DefaultPrompt
	}
	if f.userID == "" {
		f.userID = DefaultUserID
	}
	if f.ttl == 0 {
		f.ttl = DefaultTTL
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}
	return f
}

// Latest returns the cached list while it is fresh, otherwise fetches a new
// one. Failed fetches are not cached.
func (f *Fetcher) Latest(ctx context.Context) ([]Item, error) {
	if items, ok := f.cached(); ok {
		return items, nil
	}

	v, err, shared := f.group.Do("latest", func() (any, error) {
		if items, ok := f.cached(); ok {
			return items, nil
		}
		return f.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.logger.Debug("news fetch shared with concurrent caller")
	}
	return v.([]Item), nil
}

// Invalidate drops the cached list.
func (f *Fetcher) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.fetchedAt = time.Time{}
}

func (f *Fetcher) cached() ([]Item, bool) {
	if f.ttl < 0 {
		return nil, false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.items == nil || f.now().Sub(f.fetchedAt) >= f.ttl {
		return nil, false
	}
	return f.items, true
}

func (f *Fetcher) fetch(ctx context.Context) ([]Item, error) {
	answer, err := f.agg.Aggregate(ctx,
		relay.ChatRequest{Message: f.prompt, UserID: f.userID},
		relay.WithCompletedAnswer(),
		relay.WithoutHistorySave(),
	)
	if err != nil {
		return nil, err
	}

	items := Extract(answer)
	f.logger.Info("fetched news", "items", len(items))

	f.mu.Lock()
	f.items = items
	f.fetchedAt = f.now()
	f.mu.Unlock()

	return items, nil
}
