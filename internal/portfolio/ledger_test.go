package portfolio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"alphadesk/internal/market"
	"alphadesk/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	state   *State
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(ctx context.Context) (*State, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, state *State, appended []TradeRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = state.Clone()
	m.saves++
	return nil
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger := NewLedger(&memStore{}, decimal.NewFromInt(100000))
	ledger.LoadOrCreate(context.Background())
	return ledger
}

func TestBuyUpdatesCashAndPosition(t *testing.T) {
	ledger := newTestLedger(t)

	result, err := ledger.ExecuteTrade(context.Background(), "AAPL", types.ActionBuy, 10, decimal.RequireFromString("135.50"))
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)

	assert.Equal(t, "98645.00", result.CashAfter.StringFixed(2))
	pos, ok := ledger.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(10), pos.Quantity)
	assert.True(t, pos.AvgPrice.Equal(decimal.RequireFromString("135.50")), "avg price %s", pos.AvgPrice)
}

func TestSellRealizesPnL(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, decimal.RequireFromString("135.50"))
	require.NoError(t, err)

	result, err := ledger.ExecuteTrade(ctx, "AAPL", types.ActionSell, 5, decimal.RequireFromString("140.00"))
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)

	assert.Equal(t, "99345.00", result.CashAfter.StringFixed(2))
	require.NotNil(t, result.RealizedPnL)
	assert.Equal(t, "22.50", result.RealizedPnL.StringFixed(2))

	pos, ok := ledger.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(5), pos.Quantity)
	assert.True(t, pos.AvgPrice.Equal(decimal.RequireFromString("135.50")), "sell must not move avg cost, got %s", pos.AvgPrice)
}

func TestBuyAveragesCostExactly(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ExecuteTrade(ctx, "MSFT", types.ActionBuy, 10, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = ledger.ExecuteTrade(ctx, "MSFT", types.ActionBuy, 10, decimal.NewFromInt(200))
	require.NoError(t, err)

	pos, ok := ledger.Position("MSFT")
	require.True(t, ok)
	assert.Equal(t, int64(20), pos.Quantity)
	assert.True(t, pos.AvgPrice.Equal(decimal.NewFromInt(150)), "weighted avg, got %s", pos.AvgPrice)
}

func TestSellingOutRemovesHolding(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ExecuteTrade(ctx, "XOM", types.ActionBuy, 7, decimal.NewFromInt(110))
	require.NoError(t, err)
	result, err := ledger.ExecuteTrade(ctx, "XOM", types.ActionSell, 7, decimal.NewFromInt(115))
	require.NoError(t, err)
	require.True(t, result.OK)

	_, ok := ledger.Position("XOM")
	assert.False(t, ok, "fully sold position must disappear")
	assert.Empty(t, ledger.State().Holdings)
}

func TestBuyInsufficientCash(t *testing.T) {
	ledger := newTestLedger(t)

	result, err := ledger.ExecuteTrade(context.Background(), "NVDA", types.ActionBuy, 1000, decimal.NewFromInt(900))
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, types.ReasonInsufficientCash, result.Reason)

	state := ledger.State()
	assert.Equal(t, "100000.00", state.CashBalance.StringFixed(2), "rejected trade must not move cash")
	assert.Empty(t, state.TradeHistory)
}

func TestSellInsufficientHoldings(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	result, err := ledger.ExecuteTrade(ctx, "AAPL", types.ActionSell, 1, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, types.ReasonInsufficientHoldings, result.Reason)

	_, err = ledger.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 5, decimal.NewFromInt(100))
	require.NoError(t, err)
	result, err = ledger.ExecuteTrade(ctx, "AAPL", types.ActionSell, 6, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, types.ReasonInsufficientHoldings, result.Reason)
}

func TestInvalidTradeParameters(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		ticker string
		action types.Action
		qty    int64
		price  decimal.Decimal
	}{
		{"", types.ActionBuy, 1, decimal.NewFromInt(100)},
		{"AAPL", types.ActionBuy, 0, decimal.NewFromInt(100)},
		{"AAPL", types.ActionBuy, -5, decimal.NewFromInt(100)},
		{"AAPL", types.ActionBuy, 1, decimal.Zero},
		{"AAPL", types.ActionBuy, 1, decimal.NewFromInt(-10)},
		{"AAPL", "HOLD", 1, decimal.NewFromInt(100)},
	}
	for i, tc := range cases {
		result, err := ledger.ExecuteTrade(ctx, tc.ticker, tc.action, tc.qty, tc.price)
		require.NoError(t, err, "case %d", i)
		assert.False(t, result.OK, "case %d", i)
		assert.Equal(t, types.ReasonInvalidAction, result.Reason, "case %d", i)
	}
}

func TestTradeIsCaseInsensitive(t *testing.T) {
	ledger := newTestLedger(t)

	result, err := ledger.ExecuteTrade(context.Background(), " aapl ", "buy", 1, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.True(t, result.OK)

	_, ok := ledger.Position("AAPL")
	assert.True(t, ok)
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	store := &memStore{}
	ledger := NewLedger(store, decimal.NewFromInt(100000))
	ledger.LoadOrCreate(context.Background())

	store.saveErr = fmt.Errorf("disk full")
	_, err := ledger.ExecuteTrade(context.Background(), "AAPL", types.ActionBuy, 10, decimal.NewFromInt(100))
	require.Error(t, err)

	state := ledger.State()
	assert.Equal(t, "100000.00", state.CashBalance.StringFixed(2))
	assert.Empty(t, state.Holdings)
	assert.Empty(t, state.TradeHistory)

	store.saveErr = nil
	result, err := ledger.ExecuteTrade(context.Background(), "AAPL", types.ActionBuy, 10, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, result.OK, "ledger must recover once the store does")
}

func TestLoadOrCreateFallsBackOnStoreError(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("corrupt db")}
	ledger := NewLedger(store, decimal.NewFromInt(100000))
	ledger.LoadOrCreate(context.Background())

	state := ledger.State()
	assert.Equal(t, "100000.00", state.CashBalance.StringFixed(2))
	assert.Empty(t, state.Holdings)
}

func TestLoadOrCreateHydratesPersistedState(t *testing.T) {
	store := &memStore{}
	first := NewLedger(store, decimal.NewFromInt(100000))
	first.LoadOrCreate(context.Background())
	_, err := first.ExecuteTrade(context.Background(), "AAPL", types.ActionBuy, 10, decimal.RequireFromString("135.50"))
	require.NoError(t, err)

	second := NewLedger(store, decimal.NewFromInt(100000))
	second.LoadOrCreate(context.Background())
	state := second.State()
	assert.Equal(t, "98645.00", state.CashBalance.StringFixed(2))
	require.Len(t, state.TradeHistory, 1)
	pos, ok := second.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(10), pos.Quantity)
}

func TestStateReturnsIndependentCopy(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.ExecuteTrade(context.Background(), "AAPL", types.ActionBuy, 10, decimal.NewFromInt(100))
	require.NoError(t, err)

	state := ledger.State()
	state.CashBalance = decimal.Zero
	state.Holdings["AAPL"] = Position{Ticker: "AAPL", Quantity: 999}
	state.TradeHistory = nil

	fresh := ledger.State()
	assert.Equal(t, "99000.00", fresh.CashBalance.StringFixed(2))
	assert.Equal(t, int64(10), fresh.Holdings["AAPL"].Quantity)
	assert.Len(t, fresh.TradeHistory, 1)
}

type fixedOracle map[string]string

func (f fixedOracle) Price(ctx context.Context, ticker string) (market.Quote, bool) {
	raw, ok := f[ticker]
	if !ok {
		return market.Quote{}, false
	}
	return market.Quote{Price: decimal.RequireFromString(raw), AsOf: time.Now()}, true
}

func (f fixedOracle) Refresh(ctx context.Context) error { return nil }

func TestSummaryValuesAtLivePrices(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = ledger.ExecuteTrade(ctx, "MSFT", types.ActionBuy, 5, decimal.NewFromInt(200))
	require.NoError(t, err)

	oracle := fixedOracle{"AAPL": "120"} // MSFT unquoted, valued at avg cost
	sectors := market.StaticSectors{"AAPL": "Technology", "MSFT": "Technology"}
	summary := ledger.Summary(ctx, oracle, sectors)

	assert.Equal(t, "98000.00", summary.CashBalance.StringFixed(2))
	require.Len(t, summary.Holdings, 2)
	aapl, msft := summary.Holdings[0], summary.Holdings[1]
	assert.Equal(t, "AAPL", aapl.Ticker)
	assert.Equal(t, "Technology", aapl.Sector)
	assert.Equal(t, "1200.00", aapl.MarketValue.StringFixed(2))
	assert.Equal(t, "20.00", aapl.UnrealizedPct.StringFixed(2))
	assert.True(t, msft.Stale, "unquoted holding is flagged stale")
	assert.Equal(t, "1000.00", msft.MarketValue.StringFixed(2))
	assert.Equal(t, "2200.00", summary.TotalExposure.StringFixed(2))
	assert.Equal(t, "100200.00", summary.TotalEquity.StringFixed(2))
}

func TestRealizedPnLSince(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = ledger.ExecuteTrade(ctx, "AAPL", types.ActionSell, 4, decimal.NewFromInt(110))
	require.NoError(t, err)
	_, err = ledger.ExecuteTrade(ctx, "AAPL", types.ActionSell, 2, decimal.NewFromInt(90))
	require.NoError(t, err)

	// +40 on the first sell, -20 on the second; buys contribute nothing.
	sum := ledger.RealizedPnLSince(time.Now().Add(-time.Minute))
	assert.Equal(t, "20.00", sum.StringFixed(2))

	assert.True(t, ledger.RealizedPnLSince(time.Now().Add(time.Hour)).IsZero())
}

func TestCashNeverNegativeAcrossTradeSequence(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	steps := []struct {
		ticker string
		action types.Action
		qty    int64
		price  string
		ok     bool
	}{
		{"AAPL", types.ActionBuy, 300, "135.50", true},
		{"MSFT", types.ActionBuy, 120, "402.00", true},
		{"AAPL", types.ActionSell, 100, "140.00", true},
		{"XOM", types.ActionBuy, 400, "95.00", false}, // 38000 cost, 25110 cash
		{"XOM", types.ActionBuy, 200, "95.00", true},
		{"MSFT", types.ActionSell, 120, "398.50", true},
		{"AAPL", types.ActionSell, 250, "150.00", false}, // only 200 held
		{"AAPL", types.ActionSell, 200, "128.00", true},
		{"XOM", types.ActionBuy, 900, "95.00", false}, // 85500 cost, 79530 cash
		{"XOM", types.ActionSell, 200, "101.25", true},
	}
	for i, step := range steps {
		result, err := ledger.ExecuteTrade(ctx, step.ticker, step.action, step.qty,
			decimal.RequireFromString(step.price))
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.ok, result.OK, "step %d: %s", i, result.Message)

		state := ledger.State()
		assert.False(t, state.CashBalance.IsNegative(),
			"step %d left cash at %s", i, state.CashBalance.StringFixed(2))
		for _, pos := range state.Holdings {
			assert.Positive(t, pos.Quantity, "step %d: %s held at zero or less", i, pos.Ticker)
		}
	}

	final := ledger.State()
	assert.Equal(t, "99780.00", final.CashBalance.StringFixed(2))
	assert.Empty(t, final.Holdings, "every lot was sold out")
}
