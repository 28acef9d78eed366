package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SectorUnknown is returned for any ticker the classifier has no entry for.
const SectorUnknown = "Unknown"

// Quote is one cached price observation. Stale marks values served past
// their refresh window (the feed degrades rather than blocking).
type Quote struct {
	Price decimal.Decimal `json:"price"`
	AsOf  time.Time       `json:"as_of"`
	Stale bool            `json:"stale,omitempty"`
}

// PriceOracle supplies current prices. A false return means no usable
// price exists; implementations must never hand out non-positive values.
type PriceOracle interface {
	Price(ctx context.Context, ticker string) (Quote, bool)
	Refresh(ctx context.Context) error
}

// SectorClassifier maps a ticker to its sector label.
type SectorClassifier interface {
	SectorOf(ticker string) string
}

// StaticSectors is a fixed in-memory classifier, used when no sector file
// is configured and as a test fake.
type StaticSectors map[string]string

func (s StaticSectors) SectorOf(ticker string) string {
	if sector, ok := s[normalizeTicker(ticker)]; ok && sector != "" {
		return sector
	}
	return SectorUnknown
}
