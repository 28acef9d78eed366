package risk

import (
	"context"

	"alphadesk/internal/market"
	"alphadesk/internal/portfolio"

	"github.com/shopspring/decimal"
)

// Cap names the sub-constraint that binds a buy.
type Cap string

const (
	CapCash     Cap = "cash"
	CapSector   Cap = "sector"
	CapPosition Cap = "position"
)

// ExposureSnapshot is the derived, per-trade headroom computation. It is
// never persisted; the gate embeds it in verdicts so rejections can report
// exactly which cap was binding.
type ExposureSnapshot struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
	Sector string          `json:"sector"`

	CashBalance   decimal.Decimal `json:"cash_balance"`
	CashAvailable decimal.Decimal `json:"cash_available"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	TotalEquity   decimal.Decimal `json:"total_equity"`

	SectorLimitPct       decimal.Decimal `json:"sector_limit_pct"`
	CurrentSectorValue   decimal.Decimal `json:"current_sector_value"`
	SectorValueRoom      decimal.Decimal `json:"sector_value_room"`
	CurrentPositionValue decimal.Decimal `json:"current_position_value"`
	PositionValueRoom    decimal.Decimal `json:"position_value_room"`

	CashMaxQty     int64 `json:"cash_max_qty"`
	SectorMaxQty   int64 `json:"sector_max_qty"`
	PositionMaxQty int64 `json:"position_max_qty"`
	MaxQty         int64 `json:"max_qty"`

	StalePrices bool `json:"stale_prices,omitempty"`
}

// Binding returns the tightest sub-cap and its remaining room in currency
// terms.
func (s ExposureSnapshot) Binding() (Cap, decimal.Decimal) {
	cap, room := CapCash, s.CashAvailable
	if s.SectorMaxQty < s.MaxQtyOf(cap) {
		cap, room = CapSector, s.SectorValueRoom
	}
	if s.PositionMaxQty < s.MaxQtyOf(cap) {
		cap, room = CapPosition, s.PositionValueRoom
	}
	return cap, room
}

// MaxQtyOf returns the share cap for one sub-constraint.
func (s ExposureSnapshot) MaxQtyOf(cap Cap) int64 {
	switch cap {
	case CapSector:
		return s.SectorMaxQty
	case CapPosition:
		return s.PositionMaxQty
	default:
		return s.CashMaxQty
	}
}

// Calculator derives buy headroom from ledger state and live prices.
type Calculator struct {
	oracle  market.PriceOracle
	sectors market.SectorClassifier
	limits  Limits
}

func NewCalculator(oracle market.PriceOracle, sectors market.SectorClassifier, limits Limits) *Calculator {
	return &Calculator{oracle: oracle, sectors: sectors, limits: limits}
}

// Headroom computes the maximum purchasable quantity of ticker at price
// under each independent cap. Held tickers with no live quote are valued at
// their own average cost. Share caps truncate, never round up.
func (c *Calculator) Headroom(ctx context.Context, ticker string, price decimal.Decimal, state *portfolio.State) ExposureSnapshot {
	snap := ExposureSnapshot{
		Ticker:      ticker,
		Price:       price,
		Sector:      c.sectorOf(ticker),
		CashBalance: state.CashBalance,
	}

	sectorTotals := make(map[string]decimal.Decimal)
	for _, pos := range state.Holdings {
		live := pos.AvgPrice
		if c.oracle != nil {
			if quote, ok := c.oracle.Price(ctx, pos.Ticker); ok {
				live = quote.Price
				if quote.Stale {
					snap.StalePrices = true
				}
			} else {
				snap.StalePrices = true
			}
		}
		value := pos.MarketValue(live)
		sector := c.sectorOf(pos.Ticker)
		sectorTotals[sector] = sectorTotals[sector].Add(value)
		snap.HoldingsValue = snap.HoldingsValue.Add(value)
		if pos.Ticker == ticker {
			snap.CurrentPositionValue = value
		}
	}
	snap.TotalEquity = state.CashBalance.Add(snap.HoldingsValue)
	snap.CurrentSectorValue = sectorTotals[snap.Sector]
	snap.SectorLimitPct = c.limits.SectorLimitPct(snap.Sector)

	snap.CashAvailable = decimal.Max(state.CashBalance.Sub(c.limits.MinCashBuffer), decimal.Zero)

	if !price.IsPositive() {
		// No usable price: every cap collapses to zero.
		return snap
	}

	snap.CashMaxQty = floorQty(snap.CashAvailable, price)

	if snap.TotalEquity.IsPositive() {
		snap.SectorValueRoom = decimal.Max(
			snap.SectorLimitPct.Mul(snap.TotalEquity).Sub(snap.CurrentSectorValue), decimal.Zero)
		snap.SectorMaxQty = floorQty(snap.SectorValueRoom, price)

		snap.PositionValueRoom = decimal.Max(
			c.limits.MaxSinglePositionPct.Mul(snap.TotalEquity).Sub(snap.CurrentPositionValue), decimal.Zero)
		snap.PositionMaxQty = floorQty(snap.PositionValueRoom, price)
	} else {
		// Degenerate account: percentage caps are undefined, fall back to
		// the cash cap.
		snap.SectorValueRoom = snap.CashAvailable
		snap.PositionValueRoom = snap.CashAvailable
		snap.SectorMaxQty = snap.CashMaxQty
		snap.PositionMaxQty = snap.CashMaxQty
	}

	snap.MaxQty = snap.CashMaxQty
	if snap.SectorMaxQty < snap.MaxQty {
		snap.MaxQty = snap.SectorMaxQty
	}
	if snap.PositionMaxQty < snap.MaxQty {
		snap.MaxQty = snap.PositionMaxQty
	}
	if snap.MaxQty < 0 {
		snap.MaxQty = 0
	}
	return snap
}

func (c *Calculator) sectorOf(ticker string) string {
	if c.sectors == nil {
		return market.SectorUnknown
	}
	return c.sectors.SectorOf(ticker)
}

func floorQty(room, price decimal.Decimal) int64 {
	if !price.IsPositive() || room.Sign() <= 0 {
		return 0
	}
	return room.Div(price).Floor().IntPart()
}
