package types

import "strings"

// Direction is the advisory bias produced by the technical advisor.
type Direction string

const (
	DirectionBuy   Direction = "BUY"
	DirectionSell  Direction = "SELL"
	DirectionWait  Direction = "WAIT"
	DirectionHedge Direction = "HEDGE"
)

// Bearish reports whether the advisory bias resolves to a sell.
func (d Direction) Bearish() bool {
	return strings.ToUpper(strings.TrimSpace(string(d))) == string(DirectionSell)
}

// Action is the concrete trade side the gate resolves to.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// RiskLevel is the sector risk band from the fundamental advisor.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// AdvisorySignal is the directional signal from the technical advisor.
// ManualOverride marks proposals that originate from an explicit user
// instruction rather than an automated signal; it skips soft gates only.
type AdvisorySignal struct {
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	Regime         string    `json:"regime,omitempty"`
	ManualOverride bool      `json:"manual_override,omitempty"`
}

// RiskAssessment is the sector risk/sentiment read from the fundamental
// advisor. SentimentScore is in [-1, 1].
type RiskAssessment struct {
	RiskLevel      RiskLevel `json:"risk_level"`
	SentimentScore float64   `json:"sentiment_score"`
}

// TradeProposal is the structured request the gate evaluates. Quantity is
// honored only for manual proposals and sells; automated buys are sized by
// the gate.
type TradeProposal struct {
	Ticker     string         `json:"ticker"`
	Action     Action         `json:"action,omitempty"`
	Quantity   int64          `json:"quantity,omitempty"`
	Signal     AdvisorySignal `json:"signal"`
	Assessment RiskAssessment `json:"assessment"`
}

// Normalize upper-cases ticker and enum fields in place.
func (p *TradeProposal) Normalize() {
	p.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
	p.Action = Action(strings.ToUpper(strings.TrimSpace(string(p.Action))))
	p.Signal.Direction = Direction(strings.ToUpper(strings.TrimSpace(string(p.Signal.Direction))))
	p.Assessment.RiskLevel = RiskLevel(strings.ToUpper(strings.TrimSpace(string(p.Assessment.RiskLevel))))
}
