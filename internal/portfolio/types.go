package portfolio

import (
	"time"

	"alphadesk/internal/types"

	"github.com/shopspring/decimal"
)

// Position is a held lot with weighted-average cost basis. A ticker appears
// in holdings iff its quantity is strictly positive.
type Position struct {
	Ticker   string          `json:"ticker"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// MarketValue values the position at the given price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// CostBasis is quantity times average cost.
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// TradeRecord is one immutable entry of the append-only trade history.
// RealizedPnL is set for SELL records only.
type TradeRecord struct {
	Timestamp   time.Time        `json:"timestamp"`
	Ticker      string           `json:"ticker"`
	Action      types.Action     `json:"action"`
	Quantity    int64            `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	TotalCost   decimal.Decimal  `json:"total_cost"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
}

// State is the full logical ledger document for one account.
type State struct {
	CashBalance  decimal.Decimal     `json:"cash_balance"`
	Holdings     map[string]Position `json:"holdings"`
	TradeHistory []TradeRecord       `json:"trade_history"`
	LastUpdated  time.Time           `json:"last_updated"`
}

// Clone returns a deep copy; TradeRecord values are immutable so the
// backing slice entries can be shared safely, but the slice and map
// headers are fresh.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		CashBalance: s.CashBalance,
		Holdings:    make(map[string]Position, len(s.Holdings)),
		LastUpdated: s.LastUpdated,
	}
	for k, v := range s.Holdings {
		out.Holdings[k] = v
	}
	out.TradeHistory = append([]TradeRecord(nil), s.TradeHistory...)
	return out
}

// TradeResult is the outcome of a ledger mutation attempt. A rejected trade
// is a normal result, not an error.
type TradeResult struct {
	OK          bool             `json:"ok"`
	Reason      types.Reason     `json:"reason,omitempty"`
	Message     string           `json:"message"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
	CashAfter   decimal.Decimal  `json:"cash_after"`
	Record      *TradeRecord     `json:"record,omitempty"`
}

// HoldingView is one row of the live portfolio summary.
type HoldingView struct {
	Ticker        string          `json:"ticker"`
	Sector        string          `json:"sector"`
	Quantity      int64           `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	LivePrice     decimal.Decimal `json:"live_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pct"`
	Stale         bool            `json:"stale,omitempty"`
}

// Summary is the portfolio valued at live prices.
type Summary struct {
	CashBalance   decimal.Decimal `json:"cash_balance"`
	Holdings      []HoldingView   `json:"holdings"`
	TotalExposure decimal.Decimal `json:"total_exposure"`
	TotalEquity   decimal.Decimal `json:"total_equity"`
	LastUpdated   time.Time       `json:"last_updated"`
}
