package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/types"

	"github.com/shopspring/decimal"
)

// Store persists the ledger document. Save must be atomic: after a crash a
// reader sees either the pre- or post-mutation state, never a partial write.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State, appended []TradeRecord) error
}

// Ledger owns the cash/holdings/trade-history state for one account.
// Mutations are serialized behind a single write lock and persisted
// synchronously before ExecuteTrade returns; readers get copies of the
// last-committed state and never contend with in-flight price lookups.
type Ledger struct {
	store        Store
	startingCash decimal.Decimal

	mu    sync.RWMutex
	state *State
}

func NewLedger(store Store, startingCash decimal.Decimal) *Ledger {
	return &Ledger{store: store, startingCash: startingCash}
}

// LoadOrCreate hydrates the ledger from the store. Load failures are logged
// and replaced with a fresh account; they never propagate.
func (l *Ledger) LoadOrCreate(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		state, err := l.store.Load(ctx)
		if err == nil && state != nil {
			l.state = state
			logger.Infof("ledger: loaded state (cash=%s, holdings=%d, trades=%d)",
				state.CashBalance.StringFixed(2), len(state.Holdings), len(state.TradeHistory))
			return
		}
		if err != nil {
			logger.Warnf("ledger: load failed, starting fresh: %v", err)
		}
	}
	l.state = l.freshState()
	logger.Infof("ledger: created fresh account with cash=%s", l.startingCash.StringFixed(2))
}

func (l *Ledger) freshState() *State {
	return &State{
		CashBalance: l.startingCash,
		Holdings:    make(map[string]Position),
		LastUpdated: time.Now(),
	}
}

// State returns a deep copy of the last-committed ledger state.
func (l *Ledger) State() *State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state == nil {
		return l.freshState()
	}
	return l.state.Clone()
}

// ExecuteTrade applies one BUY or SELL to the ledger. Business rejections
// (insufficient cash/holdings, bad action) come back as a non-OK
// TradeResult; the returned error is reserved for persistence failures, in
// which case the in-memory state is left untouched.
func (l *Ledger) ExecuteTrade(ctx context.Context, ticker string, action types.Action, qty int64, price decimal.Decimal) (TradeResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	action = types.Action(strings.ToUpper(strings.TrimSpace(string(action))))

	if ticker == "" || qty <= 0 || !price.IsPositive() {
		return TradeResult{
			Reason:  types.ReasonInvalidAction,
			Message: fmt.Sprintf("invalid trade parameters (ticker=%q qty=%d price=%s)", ticker, qty, price),
		}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		l.state = l.freshState()
	}

	next := l.state.Clone()
	total := price.Mul(decimal.NewFromInt(qty))
	now := time.Now()

	var rec TradeRecord
	var result TradeResult

	switch action {
	case types.ActionBuy:
		if total.GreaterThan(next.CashBalance) {
			return TradeResult{
				Reason: types.ReasonInsufficientCash,
				Message: fmt.Sprintf("insufficient cash: need %s, have %s",
					total.StringFixed(2), next.CashBalance.StringFixed(2)),
				CashAfter: next.CashBalance,
			}, nil
		}
		next.CashBalance = next.CashBalance.Sub(total)
		if pos, ok := next.Holdings[ticker]; ok {
			newQty := pos.Quantity + qty
			// Weighted-average cost over all shares held.
			pos.AvgPrice = pos.CostBasis().Add(total).Div(decimal.NewFromInt(newQty))
			pos.Quantity = newQty
			next.Holdings[ticker] = pos
		} else {
			next.Holdings[ticker] = Position{Ticker: ticker, Quantity: qty, AvgPrice: price}
		}
		rec = TradeRecord{Timestamp: now, Ticker: ticker, Action: types.ActionBuy, Quantity: qty, Price: price, TotalCost: total}
		result = TradeResult{
			OK:        true,
			Message:   fmt.Sprintf("bought %d %s @ %s", qty, ticker, price.StringFixed(2)),
			CashAfter: next.CashBalance,
		}

	case types.ActionSell:
		pos, ok := next.Holdings[ticker]
		if !ok || pos.Quantity < qty {
			held := int64(0)
			if ok {
				held = pos.Quantity
			}
			return TradeResult{
				Reason:    types.ReasonInsufficientHoldings,
				Message:   fmt.Sprintf("insufficient holdings: have %d, selling %d", held, qty),
				CashAfter: next.CashBalance,
			}, nil
		}
		next.CashBalance = next.CashBalance.Add(total)
		pnl := price.Sub(pos.AvgPrice).Mul(decimal.NewFromInt(qty))
		pos.Quantity -= qty
		if pos.Quantity == 0 {
			delete(next.Holdings, ticker)
		} else {
			next.Holdings[ticker] = pos
		}
		rec = TradeRecord{Timestamp: now, Ticker: ticker, Action: types.ActionSell, Quantity: qty, Price: price, TotalCost: total, RealizedPnL: &pnl}
		result = TradeResult{
			OK:          true,
			Message:     fmt.Sprintf("sold %d %s @ %s (pnl %s)", qty, ticker, price.StringFixed(2), pnl.StringFixed(2)),
			RealizedPnL: &pnl,
			CashAfter:   next.CashBalance,
		}

	default:
		return TradeResult{
			Reason:  types.ReasonInvalidAction,
			Message: fmt.Sprintf("unsupported action %q", action),
		}, nil
	}

	next.TradeHistory = append(next.TradeHistory, rec)
	next.LastUpdated = now

	if l.store != nil {
		if err := l.store.Save(ctx, next, []TradeRecord{rec}); err != nil {
			logger.Errorf("ledger: persist failed, trade not committed: %v", err)
			return TradeResult{}, fmt.Errorf("persisting trade: %w", err)
		}
	}
	l.state = next
	result.Record = &rec
	return result, nil
}

// Position returns the held position for ticker, if any.
func (l *Ledger) Position(ticker string) (Position, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state == nil {
		return Position{}, false
	}
	pos, ok := l.state.Holdings[ticker]
	return pos, ok
}

// RealizedPnLSince sums the realized P&L of every trade recorded at or
// after t. Feeds the daily-drawdown hard stop.
func (l *Ledger) RealizedPnLSince(t time.Time) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum := decimal.Zero
	if l.state == nil {
		return sum
	}
	for _, rec := range l.state.TradeHistory {
		if rec.RealizedPnL == nil || rec.Timestamp.Before(t) {
			continue
		}
		sum = sum.Add(*rec.RealizedPnL)
	}
	return sum
}

// Summary values the portfolio at live prices, falling back to average cost
// for tickers the oracle cannot quote.
func (l *Ledger) Summary(ctx context.Context, oracle market.PriceOracle, sectors market.SectorClassifier) Summary {
	state := l.State()

	out := Summary{
		CashBalance: state.CashBalance,
		LastUpdated: state.LastUpdated,
	}
	exposure := decimal.Zero
	for _, pos := range state.Holdings {
		view := HoldingView{
			Ticker:   pos.Ticker,
			Quantity: pos.Quantity,
			AvgPrice: pos.AvgPrice,
		}
		if sectors != nil {
			view.Sector = sectors.SectorOf(pos.Ticker)
		}
		live := pos.AvgPrice
		if oracle != nil {
			if quote, ok := oracle.Price(ctx, pos.Ticker); ok {
				live = quote.Price
				view.Stale = quote.Stale
			} else {
				view.Stale = true
			}
		}
		view.LivePrice = live
		view.MarketValue = pos.MarketValue(live)
		if pos.AvgPrice.IsPositive() {
			view.UnrealizedPct = live.Div(pos.AvgPrice).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
		}
		exposure = exposure.Add(view.MarketValue)
		out.Holdings = append(out.Holdings, view)
	}
	sort.Slice(out.Holdings, func(i, j int) bool { return out.Holdings[i].Ticker < out.Holdings[j].Ticker })
	out.TotalExposure = exposure
	out.TotalEquity = state.CashBalance.Add(exposure)
	return out
}
