package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	p := TradeProposal{
		Ticker: "  aapl ",
		Action: "sell",
		Signal: AdvisorySignal{Direction: "buy"},
		Assessment: RiskAssessment{
			RiskLevel: "high",
		},
	}
	p.Normalize()

	assert.Equal(t, "AAPL", p.Ticker)
	assert.Equal(t, ActionSell, p.Action)
	assert.Equal(t, DirectionBuy, p.Signal.Direction)
	assert.Equal(t, RiskHigh, p.Assessment.RiskLevel)
}

func TestDirectionBearish(t *testing.T) {
	assert.True(t, DirectionSell.Bearish())
	assert.True(t, Direction(" sell ").Bearish())
	assert.False(t, DirectionBuy.Bearish())
	assert.False(t, DirectionWait.Bearish())
	assert.False(t, DirectionHedge.Bearish())
}

func TestReasonOverridable(t *testing.T) {
	overridable := []Reason{ReasonLowConfidence, ReasonFundamentalVeto}
	for _, r := range overridable {
		assert.True(t, r.Overridable(), string(r))
	}

	hard := []Reason{
		ReasonNone, ReasonInsufficientCash, ReasonInsufficientHoldings,
		ReasonInvalidAction, ReasonPriceUnavailable, ReasonNoPosition,
		ReasonNoSharesAvailable, ReasonDrawdownExceeded, ReasonLimitExceeded,
		ReasonSolvencyViolation,
	}
	for _, r := range hard {
		assert.False(t, r.Overridable(), string(r))
	}
}
