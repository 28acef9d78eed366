package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"alphadesk/internal/logger"
	"alphadesk/internal/monitoring"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// FeedConfig describes the quote endpoint and cache behavior.
type FeedConfig struct {
	// QuoteURL returns a JSON document of the form
	// {"quotes":[{"ticker":"AAPL","price":231.5}, ...]}.
	QuoteURL     string
	Timeout      time.Duration
	CacheTTL     time.Duration
	SnapshotPath string
}

func (c FeedConfig) withDefaults() FeedConfig {
	out := c
	out.QuoteURL = strings.TrimSpace(out.QuoteURL)
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = 24 * time.Hour
	}
	out.SnapshotPath = strings.TrimSpace(out.SnapshotPath)
	return out
}

// QuoteFeed is a PriceOracle backed by an HTTP quote endpoint with an
// in-memory cache and an optional disk snapshot. Lookups never block on the
// network beyond one bounded refresh; expired entries are served flagged
// stale instead of being dropped.
type QuoteFeed struct {
	cfg    FeedConfig
	client *http.Client

	mu          sync.RWMutex
	cache       map[string]Quote
	lastRefresh time.Time

	refreshGroup singleflight.Group
}

// NewQuoteFeed builds the feed and warms the cache from the disk snapshot
// when one exists and is younger than the TTL.
func NewQuoteFeed(cfg FeedConfig) *QuoteFeed {
	cfg = cfg.withDefaults()
	f := &QuoteFeed{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  make(map[string]Quote),
	}
	f.loadSnapshot()
	return f
}

// Price returns the cached quote for ticker. When the cache is cold it
// attempts one refresh first; a failed refresh falls through to whatever
// the snapshot provided.
func (f *QuoteFeed) Price(ctx context.Context, ticker string) (Quote, bool) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return Quote{}, false
	}

	f.mu.RLock()
	cold := len(f.cache) == 0
	f.mu.RUnlock()
	if cold && f.cfg.QuoteURL != "" {
		if err := f.Refresh(ctx); err != nil {
			logger.Warnf("quote feed: cold refresh failed: %v", err)
		}
	}

	f.mu.RLock()
	quote, ok := f.cache[ticker]
	f.mu.RUnlock()
	if !ok {
		return Quote{}, false
	}
	if time.Since(quote.AsOf) > f.cfg.CacheTTL {
		quote.Stale = true
	}
	return quote, true
}

// Refresh re-fetches the full quote document. Concurrent callers share one
// in-flight fetch.
func (f *QuoteFeed) Refresh(ctx context.Context) error {
	_, err, _ := f.refreshGroup.Do("refresh", func() (any, error) {
		return nil, f.refresh(ctx)
	})
	return err
}

func (f *QuoteFeed) refresh(ctx context.Context) error {
	if f.cfg.QuoteURL == "" {
		return fmt.Errorf("quote feed: no quote_url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.QuoteURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		monitoring.QuoteRefreshError()
		return fmt.Errorf("quote feed: fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		monitoring.QuoteRefreshError()
		return fmt.Errorf("quote feed: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.QuoteRefreshError()
		return fmt.Errorf("quote feed: reading body: %w", err)
	}

	now := time.Now()
	parsed := make(map[string]Quote)
	gjson.GetBytes(body, "quotes").ForEach(func(_, item gjson.Result) bool {
		ticker := normalizeTicker(item.Get("ticker").String())
		price := item.Get("price")
		if ticker == "" || !price.Exists() {
			return true
		}
		dec := decimal.NewFromFloat(price.Float())
		// Non-positive or unparsable prices are equivalent to "no price".
		if !dec.IsPositive() {
			return true
		}
		parsed[ticker] = Quote{Price: dec, AsOf: now}
		return true
	})
	if len(parsed) == 0 {
		monitoring.QuoteRefreshError()
		return fmt.Errorf("quote feed: response carried no usable quotes")
	}

	f.mu.Lock()
	for ticker, quote := range parsed {
		f.cache[ticker] = quote
	}
	f.lastRefresh = now
	size := len(f.cache)
	f.mu.Unlock()

	monitoring.SetQuoteCacheSize(size)
	logger.Infof("quote feed: refreshed %d quotes (%d cached)", len(parsed), size)
	f.saveSnapshot()
	return nil
}

type feedSnapshot struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Quotes    map[string]string `json:"quotes"`
}

func (f *QuoteFeed) loadSnapshot() {
	if f.cfg.SnapshotPath == "" {
		return
	}
	raw, err := os.ReadFile(f.cfg.SnapshotPath)
	if err != nil {
		return
	}
	var snap feedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		logger.Warnf("quote feed: snapshot unreadable: %v", err)
		return
	}
	if time.Since(snap.UpdatedAt) > f.cfg.CacheTTL {
		logger.Infof("quote feed: snapshot expired, refresh required")
		return
	}
	loaded := 0
	f.mu.Lock()
	for ticker, priceStr := range snap.Quotes {
		price, err := decimal.NewFromString(priceStr)
		if err != nil || !price.IsPositive() {
			continue
		}
		f.cache[normalizeTicker(ticker)] = Quote{Price: price, AsOf: snap.UpdatedAt}
		loaded++
	}
	f.lastRefresh = snap.UpdatedAt
	f.mu.Unlock()
	monitoring.SetQuoteCacheSize(loaded)
	logger.Infof("quote feed: loaded %d quotes from snapshot", loaded)
}

func (f *QuoteFeed) saveSnapshot() {
	if f.cfg.SnapshotPath == "" {
		return
	}
	f.mu.RLock()
	snap := feedSnapshot{UpdatedAt: f.lastRefresh, Quotes: make(map[string]string, len(f.cache))}
	for ticker, quote := range f.cache {
		snap.Quotes[ticker] = quote.Price.String()
	}
	f.mu.RUnlock()

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(f.cfg.SnapshotPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warnf("quote feed: snapshot dir: %v", err)
			return
		}
	}
	if err := os.WriteFile(f.cfg.SnapshotPath, raw, 0o644); err != nil {
		logger.Warnf("quote feed: snapshot write failed: %v", err)
	}
}

// Seed installs quotes directly, bypassing the HTTP endpoint. Intended for
// fixtures and local development.
func (f *QuoteFeed) Seed(quotes map[string]decimal.Decimal) {
	now := time.Now()
	f.mu.Lock()
	for ticker, price := range quotes {
		if !price.IsPositive() {
			continue
		}
		f.cache[normalizeTicker(ticker)] = Quote{Price: price, AsOf: now}
	}
	f.lastRefresh = now
	f.mu.Unlock()
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
