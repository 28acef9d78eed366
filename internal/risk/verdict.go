package risk

import (
	"time"

	"alphadesk/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is a terminal gate outcome. There are exactly two.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Verdict is the gate's answer to a trade proposal. Rejections carry a
// stable reason tag plus a human-readable detail; soft rejections retain
// the quantity the sizing step produced so an explicit override can still
// execute it (behind the hard re-validation in the executor).
type Verdict struct {
	TraceID string       `json:"trace_id"`
	Status  Status       `json:"verdict"`
	Reason  types.Reason `json:"reason,omitempty"`
	Detail  string       `json:"detail,omitempty"`

	Ticker   string          `json:"ticker"`
	Action   types.Action    `json:"action"`
	Quantity int64           `json:"approved_quantity"`
	Price    decimal.Decimal `json:"price"`

	// MaxExposure is the tightest binding capital constraint in currency
	// terms at decision time.
	MaxExposure decimal.Decimal `json:"max_exposure_allowed"`
	RiskScore   int             `json:"risk_score"`
	Manual      bool            `json:"manual,omitempty"`

	Snapshot  *ExposureSnapshot `json:"exposure,omitempty"`
	DecidedAt time.Time         `json:"decided_at"`
}

func (v Verdict) Approved() bool {
	return v.Status == StatusApproved
}

// Overridable reports whether an explicit user override may execute this
// verdict anyway. Only soft rejections qualify; hard gates never yield.
func (v Verdict) Overridable() bool {
	return v.Status == StatusRejected && v.Reason.Overridable()
}

func newVerdict(ticker string, action types.Action, manual bool) Verdict {
	return Verdict{
		TraceID:   uuid.NewString(),
		Ticker:    ticker,
		Action:    action,
		Manual:    manual,
		DecidedAt: time.Now(),
	}
}
