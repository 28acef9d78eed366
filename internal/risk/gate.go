package risk

import (
	"context"
	"fmt"
	"time"

	"alphadesk/internal/config"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/monitoring"
	"alphadesk/internal/portfolio"
	"alphadesk/internal/types"

	"github.com/shopspring/decimal"
)

// Gate turns advisory signals into approved-or-rejected orders. Checks run
// strictly in order and the first failure is terminal; a manual override
// skips the two soft gates (confidence, fundamental veto) but never the
// hard ones.
type Gate struct {
	ledger  *portfolio.Ledger
	oracle  market.PriceOracle
	sectors market.SectorClassifier
	calc    *Calculator
	limits  Limits
	sizing  Sizing
}

func NewGate(ledger *portfolio.Ledger, oracle market.PriceOracle, sectors market.SectorClassifier, limits Limits, sizing Sizing) *Gate {
	return &Gate{
		ledger:  ledger,
		oracle:  oracle,
		sectors: sectors,
		calc:    NewCalculator(oracle, sectors, limits),
		limits:  limits,
		sizing:  sizing,
	}
}

// Evaluate runs the full decision pipeline for one proposal. It mutates
// nothing: a caller may discard the verdict without side effects.
func (g *Gate) Evaluate(ctx context.Context, proposal types.TradeProposal) Verdict {
	proposal.Normalize()
	manual := proposal.Signal.ManualOverride

	action := types.ActionBuy
	if proposal.Action == types.ActionSell || proposal.Signal.Direction.Bearish() {
		action = types.ActionSell
	}

	verdict := g.evaluate(ctx, proposal, action, manual)
	monitoring.RecordVerdict(string(action), string(verdict.Status), string(verdict.Reason))
	if verdict.Approved() {
		logger.Infof("gate: approved %s %d %s @ %s (trace=%s score=%d)",
			verdict.Action, verdict.Quantity, verdict.Ticker, verdict.Price.StringFixed(2), verdict.TraceID, verdict.RiskScore)
	} else {
		logger.Infof("gate: rejected %s %s: %s (%s, trace=%s)",
			verdict.Action, verdict.Ticker, verdict.Reason, verdict.Detail, verdict.TraceID)
	}
	return verdict
}

func (g *Gate) evaluate(ctx context.Context, proposal types.TradeProposal, action types.Action, manual bool) Verdict {
	verdict := newVerdict(proposal.Ticker, action, manual)

	price, ok := g.resolvePrice(ctx, proposal.Ticker)
	if !ok {
		return rejected(verdict, types.ReasonPriceUnavailable,
			fmt.Sprintf("no usable live price for %s after refresh", proposal.Ticker), 5)
	}
	verdict.Price = price

	if action == types.ActionSell {
		return g.evaluateSell(proposal, verdict)
	}
	return g.evaluateBuy(ctx, proposal, verdict, manual)
}

// evaluateSell bypasses the buy caps entirely: the only questions are
// whether a position exists and how many shares it can surrender.
func (g *Gate) evaluateSell(proposal types.TradeProposal, verdict Verdict) Verdict {
	pos, ok := g.ledger.Position(proposal.Ticker)
	if !ok {
		return rejected(verdict, types.ReasonNoPosition,
			fmt.Sprintf("no position held in %s", proposal.Ticker), 1)
	}
	if pos.Quantity <= 0 {
		return rejected(verdict, types.ReasonNoSharesAvailable,
			fmt.Sprintf("no shares of %s available to sell", proposal.Ticker), 1)
	}

	qty := proposal.Quantity
	if qty <= 0 || qty > pos.Quantity {
		// Automated sells liquidate the whole position; oversized requests
		// clamp to what is actually held.
		qty = pos.Quantity
	}

	verdict.Status = StatusApproved
	verdict.Quantity = qty
	verdict.MaxExposure = verdict.Price.Mul(decimal.NewFromInt(qty))
	verdict.RiskScore = 2
	verdict.Detail = fmt.Sprintf("sell %d of %d held shares", qty, pos.Quantity)
	return verdict
}

func (g *Gate) evaluateBuy(ctx context.Context, proposal types.TradeProposal, verdict Verdict, manual bool) Verdict {
	state := g.ledger.State()
	snap := g.calc.Headroom(ctx, proposal.Ticker, verdict.Price, state)
	verdict.Snapshot = &snap

	// Hard stop: daily drawdown.
	if snap.TotalEquity.IsPositive() {
		todayPnL := g.ledger.RealizedPnLSince(startOfDay(verdict.DecidedAt))
		ratio := todayPnL.Div(snap.TotalEquity)
		if ratio.LessThan(g.limits.MaxDailyDrawdownPct.Neg()) {
			return rejected(verdict, types.ReasonDrawdownExceeded,
				fmt.Sprintf("today's realized P&L %s is %s of equity, past the %s drawdown stop",
					todayPnL.StringFixed(2), formatPct(ratio), formatPct(g.limits.MaxDailyDrawdownPct.Neg())), 9)
		}
	}

	// Soft gates. A failure here is remembered, not returned immediately:
	// sizing still runs so the rejected verdict carries the quantity an
	// explicit override would execute. The reported reason remains the
	// first failing gate.
	var softReason types.Reason
	var softDetail string
	var softScore int
	if !manual {
		if proposal.Signal.Confidence < g.limits.MinConfidence {
			softReason = types.ReasonLowConfidence
			softDetail = fmt.Sprintf("confidence %.2f below minimum %.2f",
				proposal.Signal.Confidence, g.limits.MinConfidence)
			softScore = 3
		}
		if softReason == types.ReasonNone && proposal.Assessment.RiskLevel == types.RiskHigh {
			if proposal.Assessment.SentimentScore < g.limits.SentimentVetoBelow {
				softReason = types.ReasonFundamentalVeto
				softDetail = fmt.Sprintf("HIGH sector risk with sentiment %.2f below %.2f",
					proposal.Assessment.SentimentScore, g.limits.SentimentVetoBelow)
				softScore = 9
			} else if g.limits.HighRiskMode == config.HighRiskVeto {
				softReason = types.ReasonFundamentalVeto
				softDetail = fmt.Sprintf("HIGH sector risk (sentiment %.2f, policy vetoes all HIGH risk)",
					proposal.Assessment.SentimentScore)
				softScore = 9
			}
		}
	}

	qty, score := g.size(proposal, verdict.Price, manual)
	verdict.RiskScore = score

	if softReason != types.ReasonNone {
		verdict.Quantity = qty
		_, room := snap.Binding()
		verdict.MaxExposure = room
		return rejected(verdict, softReason, softDetail, softScore)
	}

	if qty <= 0 {
		return rejected(verdict, types.ReasonNoSharesAvailable,
			fmt.Sprintf("sized notional buys zero shares at %s", verdict.Price.StringFixed(2)), 1)
	}

	// Hard gate: exposure caps.
	if qty > snap.MaxQty {
		if g.limits.LimitBreachMode == config.LimitBreachClamp && snap.MaxQty > 0 {
			logger.Debugf("gate: clamping %s buy from %d to %d shares", proposal.Ticker, qty, snap.MaxQty)
			qty = snap.MaxQty
			if verdict.RiskScore < 10 {
				verdict.RiskScore++
			}
		} else {
			cap, room := snap.Binding()
			return rejected(verdict, types.ReasonLimitExceeded, limitDetail(snap, qty, cap, room), 7)
		}
	}

	// Hard gate: independent solvency/concentration re-check against the
	// very latest ledger state. Protects against drift between quote time
	// and commit time.
	if reason, detail := g.Revalidate(ctx, proposal.Ticker, qty, verdict.Price); reason != types.ReasonNone {
		return rejected(verdict, reason, detail, 9)
	}

	_, room := snap.Binding()
	verdict.Status = StatusApproved
	verdict.Quantity = qty
	verdict.MaxExposure = room
	return verdict
}

// size resolves the share count for a buy. Manual proposals use the
// explicitly requested quantity; automated ones derive a notional from the
// confidence tier with risk haircuts applied, then floor-divide by price.
// The int return is the risk score the sizing contributes.
func (g *Gate) size(proposal types.TradeProposal, price decimal.Decimal, manual bool) (int64, int) {
	if manual && proposal.Quantity > 0 {
		return proposal.Quantity, 4
	}

	notional := g.sizing.BaseNotionalFor(proposal.Signal.Confidence)
	score := 5
	switch {
	case proposal.Signal.Confidence >= g.sizing.HighConfidence:
		score = 3
	case proposal.Signal.Confidence >= g.limits.MinConfidence:
		score = 4
	}

	switch proposal.Assessment.RiskLevel {
	case types.RiskMedium:
		notional = notional.Mul(decimal.NewFromInt(1).Sub(g.sizing.MediumRiskHaircut))
		score += 2
	case types.RiskHigh:
		// Reaching sizing with HIGH risk means sentiment was tolerable and
		// policy chose a haircut over a veto.
		notional = notional.Mul(decimal.NewFromInt(1).Sub(g.sizing.HighRiskHaircut))
		score += 3
	}

	if score > 10 {
		score = 10
	}
	return floorQty(notional, price), score
}

// Revalidate re-checks solvency and concentration for a quantity against
// the ledger's current state. The executor calls this again immediately
// before commit; the empty reason means the trade still fits.
func (g *Gate) Revalidate(ctx context.Context, ticker string, qty int64, price decimal.Decimal) (types.Reason, string) {
	state := g.ledger.State()
	cost := price.Mul(decimal.NewFromInt(qty))
	if cost.GreaterThan(state.CashBalance) {
		return types.ReasonSolvencyViolation, fmt.Sprintf("cost %s exceeds current cash %s",
			cost.StringFixed(2), state.CashBalance.StringFixed(2))
	}
	snap := g.calc.Headroom(ctx, ticker, price, state)
	if qty > snap.MaxQty {
		cap, _ := snap.Binding()
		return types.ReasonSolvencyViolation, fmt.Sprintf("quantity %d exceeds current %s headroom of %d shares",
			qty, cap, snap.MaxQty)
	}
	return types.ReasonNone, ""
}

func (g *Gate) resolvePrice(ctx context.Context, ticker string) (decimal.Decimal, bool) {
	if g.oracle == nil {
		return decimal.Zero, false
	}
	if quote, ok := g.oracle.Price(ctx, ticker); ok {
		return quote.Price, true
	}
	// One forced refresh before giving up.
	if err := g.oracle.Refresh(ctx); err != nil {
		logger.Warnf("gate: price refresh for %s failed: %v", ticker, err)
	}
	if quote, ok := g.oracle.Price(ctx, ticker); ok {
		return quote.Price, true
	}
	return decimal.Zero, false
}

func rejected(verdict Verdict, reason types.Reason, detail string, score int) Verdict {
	verdict.Status = StatusRejected
	verdict.Reason = reason
	verdict.Detail = detail
	verdict.RiskScore = score
	return verdict
}

func limitDetail(snap ExposureSnapshot, qty int64, cap Cap, room decimal.Decimal) string {
	switch cap {
	case CapSector:
		return fmt.Sprintf("%d shares exceed the %s sector cap (%s of equity): room %s = %d shares",
			qty, snap.Sector, formatPct(snap.SectorLimitPct), room.StringFixed(2), snap.SectorMaxQty)
	case CapPosition:
		return fmt.Sprintf("%d shares exceed the single-position cap on %s: room %s = %d shares",
			qty, snap.Ticker, room.StringFixed(2), snap.PositionMaxQty)
	default:
		return fmt.Sprintf("%d shares exceed deployable cash %s after the cash buffer: %d shares max",
			qty, snap.CashAvailable.StringFixed(2), snap.CashMaxQty)
	}
}

func formatPct(pct decimal.Decimal) string {
	return pct.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
