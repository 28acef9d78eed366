package types

// Reason is the stable tag attached to every trade rejection. Tags are part
// of the API surface; renaming one breaks downstream consumers.
type Reason string

const (
	ReasonNone Reason = ""

	// Ledger-level failures.
	ReasonInsufficientCash     Reason = "InsufficientCash"
	ReasonInsufficientHoldings Reason = "InsufficientHoldings"
	ReasonInvalidAction        Reason = "InvalidAction"

	// Gate hard stops. Never overridable.
	ReasonPriceUnavailable  Reason = "PriceUnavailable"
	ReasonNoPosition        Reason = "NoPosition"
	ReasonNoSharesAvailable Reason = "NoSharesAvailable"
	ReasonDrawdownExceeded  Reason = "DrawdownExceeded"
	ReasonLimitExceeded     Reason = "LimitExceeded"
	ReasonSolvencyViolation Reason = "SolvencyViolation"

	// Gate soft stops. An authorized user may explicitly override these.
	ReasonLowConfidence   Reason = "LowConfidence"
	ReasonFundamentalVeto Reason = "FundamentalVeto"
)

// Overridable reports whether an explicit user override may push past the
// rejection. Only the soft gates qualify.
func (r Reason) Overridable() bool {
	switch r {
	case ReasonLowConfidence, ReasonFundamentalVeto:
		return true
	default:
		return false
	}
}
