package risk

import (
	"context"
	"testing"
	"time"

	"alphadesk/internal/config"
	"alphadesk/internal/market"
	"alphadesk/internal/portfolio"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	quotes    map[string]decimal.Decimal
	stale     map[string]bool
	refreshed int
	onRefresh func(*fakeOracle)
}

func (f *fakeOracle) Price(ctx context.Context, ticker string) (market.Quote, bool) {
	price, ok := f.quotes[ticker]
	if !ok {
		return market.Quote{}, false
	}
	return market.Quote{Price: price, AsOf: time.Now(), Stale: f.stale[ticker]}, true
}

func (f *fakeOracle) Refresh(ctx context.Context) error {
	f.refreshed++
	if f.onRefresh != nil {
		f.onRefresh(f)
	}
	return nil
}

func seededOracle(quotes map[string]string) *fakeOracle {
	out := &fakeOracle{quotes: make(map[string]decimal.Decimal, len(quotes))}
	for ticker, raw := range quotes {
		out.quotes[ticker] = decimal.RequireFromString(raw)
	}
	return out
}

var testSectors = market.StaticSectors{
	"AAPL": "Technology",
	"MSFT": "Technology",
	"XOM":  "Energy",
	"SPY":  "Index/ETF",
}

func testLimits() Limits {
	return Limits{
		MaxSectorExposurePct: decimal.RequireFromString("0.30"),
		MaxSinglePositionPct: decimal.RequireFromString("0.10"),
		MinCashBuffer:        decimal.NewFromInt(5000),
		MaxDailyDrawdownPct:  decimal.RequireFromString("0.02"),
		SectorExceptions:     map[string]decimal.Decimal{"Index/ETF": decimal.RequireFromString("0.50")},
		MinConfidence:        0.60,
		SentimentVetoBelow:   -0.20,
		LimitBreachMode:      config.LimitBreachReject,
		HighRiskMode:         config.HighRiskHaircut,
	}
}

func stateWith(cash int64, holdings ...portfolio.Position) *portfolio.State {
	state := &portfolio.State{
		CashBalance: decimal.NewFromInt(cash),
		Holdings:    make(map[string]portfolio.Position, len(holdings)),
	}
	for _, pos := range holdings {
		state.Holdings[pos.Ticker] = pos
	}
	return state
}

func TestHeadroomFreshAccount(t *testing.T) {
	calc := NewCalculator(seededOracle(nil), testSectors, testLimits())

	snap := calc.Headroom(context.Background(), "AAPL", decimal.NewFromInt(100), stateWith(100000))

	assert.Equal(t, "Technology", snap.Sector)
	assert.Equal(t, "95000.00", snap.CashAvailable.StringFixed(2))
	assert.Equal(t, "100000.00", snap.TotalEquity.StringFixed(2))
	assert.Equal(t, int64(950), snap.CashMaxQty)
	assert.Equal(t, int64(300), snap.SectorMaxQty)
	assert.Equal(t, int64(100), snap.PositionMaxQty)
	assert.Equal(t, int64(100), snap.MaxQty, "tightest cap wins")
}

func TestHeadroomPositionCapSaturated(t *testing.T) {
	calc := NewCalculator(seededOracle(map[string]string{"AAPL": "120"}), testSectors, testLimits())
	state := stateWith(88000, portfolio.Position{Ticker: "AAPL", Quantity: 100, AvgPrice: decimal.NewFromInt(100)})

	snap := calc.Headroom(context.Background(), "AAPL", decimal.NewFromInt(120), state)

	// 100 shares at a live 120 already exceed the 10% single-position cap.
	assert.Equal(t, "12000.00", snap.CurrentPositionValue.StringFixed(2))
	assert.Equal(t, "100000.00", snap.TotalEquity.StringFixed(2))
	assert.Equal(t, int64(0), snap.PositionMaxQty)
	assert.Equal(t, int64(0), snap.MaxQty)
}

func TestHeadroomSectorException(t *testing.T) {
	calc := NewCalculator(seededOracle(nil), testSectors, testLimits())

	snap := calc.Headroom(context.Background(), "SPY", decimal.NewFromInt(400), stateWith(100000))

	assert.Equal(t, "0.5", snap.SectorLimitPct.String())
	assert.Equal(t, int64(125), snap.SectorMaxQty)
	assert.Equal(t, int64(25), snap.PositionMaxQty, "position cap still applies to ETFs")
	assert.Equal(t, int64(25), snap.MaxQty)
}

func TestHeadroomBindingCap(t *testing.T) {
	calc := NewCalculator(seededOracle(map[string]string{"XOM": "100", "MSFT": "100"}), testSectors, testLimits())
	price := decimal.NewFromInt(100)

	cashBound := calc.Headroom(context.Background(), "AAPL", price,
		stateWith(6000, portfolio.Position{Ticker: "XOM", Quantity: 940, AvgPrice: decimal.NewFromInt(100)}))
	cap, room := cashBound.Binding()
	assert.Equal(t, CapCash, cap)
	assert.Equal(t, "1000.00", room.StringFixed(2))

	sectorBound := calc.Headroom(context.Background(), "AAPL", price,
		stateWith(75000, portfolio.Position{Ticker: "MSFT", Quantity: 250, AvgPrice: decimal.NewFromInt(100)}))
	cap, room = sectorBound.Binding()
	assert.Equal(t, CapSector, cap)
	assert.Equal(t, "5000.00", room.StringFixed(2))
	assert.Equal(t, int64(50), sectorBound.MaxQty)

	positionBound := calc.Headroom(context.Background(), "AAPL", price, stateWith(100000))
	cap, _ = positionBound.Binding()
	assert.Equal(t, CapPosition, cap)
}

func TestHeadroomDegenerateEquity(t *testing.T) {
	calc := NewCalculator(seededOracle(nil), testSectors, testLimits())

	snap := calc.Headroom(context.Background(), "AAPL", decimal.NewFromInt(100), stateWith(0))

	assert.False(t, snap.TotalEquity.IsPositive())
	assert.Equal(t, int64(0), snap.MaxQty)
	assert.Equal(t, snap.CashMaxQty, snap.SectorMaxQty, "percentage caps collapse to the cash cap")
	assert.Equal(t, snap.CashMaxQty, snap.PositionMaxQty)
}

func TestHeadroomNonPositivePrice(t *testing.T) {
	calc := NewCalculator(seededOracle(nil), testSectors, testLimits())

	snap := calc.Headroom(context.Background(), "AAPL", decimal.Zero, stateWith(100000))
	assert.Equal(t, int64(0), snap.MaxQty)
	assert.Equal(t, int64(0), snap.CashMaxQty)
}

func TestHeadroomFallsBackToAvgCost(t *testing.T) {
	calc := NewCalculator(seededOracle(nil), testSectors, testLimits())
	state := stateWith(90000, portfolio.Position{Ticker: "MSFT", Quantity: 50, AvgPrice: decimal.NewFromInt(200)})

	snap := calc.Headroom(context.Background(), "AAPL", decimal.NewFromInt(100), state)

	assert.Equal(t, "10000.00", snap.HoldingsValue.StringFixed(2), "unquoted holding valued at avg cost")
	assert.True(t, snap.StalePrices)
}

func TestHeadroomFlagsStaleQuotes(t *testing.T) {
	oracle := seededOracle(map[string]string{"MSFT": "210"})
	oracle.stale = map[string]bool{"MSFT": true}
	calc := NewCalculator(oracle, testSectors, testLimits())
	state := stateWith(90000, portfolio.Position{Ticker: "MSFT", Quantity: 50, AvgPrice: decimal.NewFromInt(200)})

	snap := calc.Headroom(context.Background(), "AAPL", decimal.NewFromInt(100), state)
	assert.True(t, snap.StalePrices)
	assert.Equal(t, "10500.00", snap.HoldingsValue.StringFixed(2))
}

func TestHeadroomMaxQtyMonotone(t *testing.T) {
	oracle := seededOracle(map[string]string{"AAPL": "100", "MSFT": "100", "XOM": "100"})
	price := decimal.NewFromInt(100)
	ctx := context.Background()

	t.Run("sector value", func(t *testing.T) {
		// Shift 50000 of holdings from Energy into Technology in 10000
		// steps; total equity stays 100000 throughout.
		calc := NewCalculator(oracle, testSectors, testLimits())
		prev := int64(-1)
		prevSector := decimal.NewFromInt(-1)
		for tech := int64(0); tech <= 500; tech += 100 {
			snap := calc.Headroom(ctx, "AAPL", price,
				stateWith(50000,
					portfolio.Position{Ticker: "MSFT", Quantity: tech, AvgPrice: price},
					portfolio.Position{Ticker: "XOM", Quantity: 500 - tech, AvgPrice: price}))
			require.Equal(t, "100000.00", snap.TotalEquity.StringFixed(2))
			assert.True(t, snap.CurrentSectorValue.GreaterThan(prevSector),
				"sweep must actually raise sector value")
			if prev >= 0 {
				assert.LessOrEqual(t, snap.MaxQty, prev,
					"max_qty rose from %d to %d as sector value grew to %s",
					prev, snap.MaxQty, snap.CurrentSectorValue)
			}
			prev = snap.MaxQty
			prevSector = snap.CurrentSectorValue
		}
	})

	t.Run("position value", func(t *testing.T) {
		calc := NewCalculator(oracle, testSectors, testLimits())
		prev := int64(-1)
		for held := int64(0); held <= 100; held += 20 {
			snap := calc.Headroom(ctx, "AAPL", price,
				stateWith(50000,
					portfolio.Position{Ticker: "AAPL", Quantity: held, AvgPrice: price},
					portfolio.Position{Ticker: "XOM", Quantity: 500 - held, AvgPrice: price}))
			require.Equal(t, "100000.00", snap.TotalEquity.StringFixed(2))
			if prev >= 0 {
				assert.LessOrEqual(t, snap.MaxQty, prev,
					"max_qty rose from %d to %d as position value grew to %s",
					prev, snap.MaxQty, snap.CurrentPositionValue)
			}
			prev = snap.MaxQty
		}
	})

	t.Run("cash buffer", func(t *testing.T) {
		prev := int64(-1)
		for buffer := int64(0); buffer <= 100000; buffer += 20000 {
			limits := testLimits()
			limits.MinCashBuffer = decimal.NewFromInt(buffer)
			calc := NewCalculator(oracle, testSectors, limits)
			snap := calc.Headroom(ctx, "AAPL", price, stateWith(100000))
			if prev >= 0 {
				assert.LessOrEqual(t, snap.MaxQty, prev,
					"max_qty rose from %d to %d as the buffer grew to %d",
					prev, snap.MaxQty, buffer)
			}
			prev = snap.MaxQty
		}
	})
}
