package safe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// JSONGetter is the transport used to read listing pages
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, out interface{}) error
}

// FetcherConfig holds the configuration for the message fetcher
type FetcherConfig struct {
	// DelayWindow bounds how far back in the listing pages are followed
	DelayWindow time.Duration
	// MaxPages is an optional hard stop on pagination (0 = unbounded)
	MaxPages int
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Fetcher retrieves Snapshot messages from the Safe client gateway
type Fetcher struct {
	client      JSONGetter
	delayWindow time.Duration
	maxPages    int
	now         func() time.Time
	logger      *zap.Logger
}

// NewFetcher creates a new Safe message fetcher
func NewFetcher(cfg *FetcherConfig, client JSONGetter, logger *zap.Logger) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.DelayWindow <= 0 {
		return nil, fmt.Errorf("delay window must be positive")
	}
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		client:      client,
		delayWindow: cfg.DelayWindow,
		maxPages:    cfg.MaxPages,
		now:         now,
		logger:      logger,
	}, nil
}

// FetchEligible walks the listing starting at url and returns the Snapshot messages found, most
// recent first. A page's `next` link is followed only while the last item on the page is still
// inside the delay window. Any failed page aborts the whole fetch.
func (f *Fetcher) FetchEligible(ctx context.Context, url string) ([]*types.RawStoredMessage, error) {
	var messages []*types.RawStoredMessage

	pageURL := url
	for pages := 1; ; pages++ {
		var page types.MessagePage
		if err := f.client.GetJSON(ctx, pageURL, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch messages page %d: %w", pages, err)
		}

		kept := 0
		for _, item := range page.Results {
			if item.IsSnapshotMessage() {
				messages = append(messages, item)
				kept++
			}
		}
		f.logger.Sugar().Debugw("Fetched messages page",
			"page", pages,
			"items", len(page.Results),
			"snapshot_messages", kept,
		)

		if !f.shouldFollow(&page) {
			break
		}
		if f.maxPages > 0 && pages >= f.maxPages {
			f.logger.Sugar().Warnw("Stopping pagination at page limit", "max_pages", f.maxPages)
			break
		}
		pageURL = *page.Next
	}

	return messages, nil
}

// shouldFollow applies the pagination rule to a fetched page
func (f *Fetcher) shouldFollow(page *types.MessagePage) bool {
	if page.Next == nil || *page.Next == "" {
		return false
	}
	if len(page.Results) == 0 {
		return false
	}
	last := page.Results[len(page.Results)-1]
	ts := last.ListingTimestamp()
	if ts == 0 {
		return false
	}
	return ts+f.delayWindow.Milliseconds() > f.now().UnixMilli()
}
