package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alphadesk/internal/logger"
	"alphadesk/internal/monitoring"
	"alphadesk/internal/portfolio"
	"alphadesk/internal/risk"
	"alphadesk/internal/store"
	"alphadesk/internal/store/model"
	"alphadesk/internal/types"

	"github.com/shopspring/decimal"
)

// RejectedError is returned when a commit-time check turns an apparently
// approved order away. It carries the same stable reason tags as a verdict
// so callers can surface it without special-casing.
type RejectedError struct {
	Reason types.Reason
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Fill confirms a committed trade.
type Fill struct {
	TraceID     string           `json:"trace_id"`
	Ticker      string           `json:"ticker"`
	Action      types.Action     `json:"action"`
	Quantity    int64            `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	TotalValue  decimal.Decimal  `json:"total_value"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
	CashAfter   decimal.Decimal  `json:"cash_after"`
	Override    bool             `json:"override,omitempty"`
	Message     string           `json:"message"`
	FilledAt    time.Time        `json:"filled_at"`
}

// Executor applies approved verdicts to the ledger. The gate's exposure
// snapshot may be stale by commit time, so every buy passes one more
// solvency check against the current ledger state before it lands.
type Executor struct {
	ledger    *portfolio.Ledger
	gate      *risk.Gate
	decisions store.DecisionLog
}

func New(ledger *portfolio.Ledger, gate *risk.Gate, decisions store.DecisionLog) *Executor {
	return &Executor{ledger: ledger, gate: gate, decisions: decisions}
}

// Execute commits an approved verdict.
func (e *Executor) Execute(ctx context.Context, verdict risk.Verdict) (Fill, error) {
	if !verdict.Approved() {
		return Fill{}, fmt.Errorf("cannot execute a %s verdict (reason %s)", verdict.Status, verdict.Reason)
	}
	return e.commit(ctx, verdict, false)
}

// ExecuteOverride pushes a soft rejection through on explicit user
// instruction. Hard rejections never pass: the override path still runs
// the full commit-time solvency check.
func (e *Executor) ExecuteOverride(ctx context.Context, verdict risk.Verdict) (Fill, error) {
	if verdict.Approved() {
		return e.commit(ctx, verdict, false)
	}
	if !verdict.Overridable() {
		return Fill{}, fmt.Errorf("rejection %s is a hard stop and cannot be overridden", verdict.Reason)
	}
	if verdict.Quantity <= 0 {
		return Fill{}, fmt.Errorf("override has no quantity to execute")
	}
	logger.Warnf("executor: overriding %s rejection for %s %d %s (trace=%s)",
		verdict.Reason, verdict.Action, verdict.Quantity, verdict.Ticker, verdict.TraceID)
	monitoring.RecordOverride()
	return e.commit(ctx, verdict, true)
}

func (e *Executor) commit(ctx context.Context, verdict risk.Verdict, override bool) (Fill, error) {
	if verdict.Action == types.ActionBuy && e.gate != nil {
		if reason, detail := e.gate.Revalidate(ctx, verdict.Ticker, verdict.Quantity, verdict.Price); reason != types.ReasonNone {
			e.record(ctx, verdict, false, override)
			return Fill{}, &RejectedError{Reason: reason, Detail: detail}
		}
	}

	result, err := e.ledger.ExecuteTrade(ctx, verdict.Ticker, verdict.Action, verdict.Quantity, verdict.Price)
	if err != nil {
		return Fill{}, err
	}
	if !result.OK {
		e.record(ctx, verdict, false, override)
		return Fill{}, &RejectedError{Reason: result.Reason, Detail: result.Message}
	}

	monitoring.RecordTrade(string(verdict.Action))
	cash, _ := result.CashAfter.Float64()
	monitoring.SetPortfolioCash(cash)
	e.record(ctx, verdict, true, override)

	fill := Fill{
		TraceID:     verdict.TraceID,
		Ticker:      verdict.Ticker,
		Action:      verdict.Action,
		Quantity:    verdict.Quantity,
		Price:       verdict.Price,
		TotalValue:  verdict.Price.Mul(decimal.NewFromInt(verdict.Quantity)),
		RealizedPnL: result.RealizedPnL,
		CashAfter:   result.CashAfter,
		Override:    override,
		Message:     result.Message,
		FilledAt:    time.Now(),
	}
	logger.Infof("executor: filled %s %d %s @ %s (trace=%s)",
		fill.Action, fill.Quantity, fill.Ticker, fill.Price.StringFixed(2), fill.TraceID)
	return fill, nil
}

// RecordDecision persists a verdict that was evaluated but not executed
// (dry runs and plain rejections).
func (e *Executor) RecordDecision(ctx context.Context, verdict risk.Verdict) {
	e.record(ctx, verdict, false, false)
}

func (e *Executor) record(ctx context.Context, verdict risk.Verdict, executed, override bool) {
	if e.decisions == nil {
		return
	}
	row := &model.DecisionModel{
		TraceID:   verdict.TraceID,
		Ticker:    verdict.Ticker,
		Action:    string(verdict.Action),
		Status:    string(verdict.Status),
		Reason:    string(verdict.Reason),
		Detail:    verdict.Detail,
		Quantity:  verdict.Quantity,
		Price:     verdict.Price.String(),
		RiskScore: verdict.RiskScore,
		Manual:    verdict.Manual,
		Override:  override,
		Executed:  executed,
		CreatedAt: verdict.DecidedAt.UnixNano(),
	}
	if verdict.Snapshot != nil {
		if raw, err := json.Marshal(verdict.Snapshot); err == nil {
			row.Breakdown = raw
		}
	}
	if err := e.decisions.Insert(ctx, row); err != nil {
		logger.Warnf("executor: decision log write failed (trace=%s): %v", verdict.TraceID, err)
	}
}
