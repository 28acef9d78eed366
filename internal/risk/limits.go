package risk

import (
	"alphadesk/internal/config"

	"github.com/shopspring/decimal"
)

// Limits are the portfolio exposure constraints and gate thresholds,
// converted to decimal once at startup.
type Limits struct {
	MaxSectorExposurePct decimal.Decimal
	MaxSinglePositionPct decimal.Decimal
	MinCashBuffer        decimal.Decimal
	MaxDailyDrawdownPct  decimal.Decimal
	SectorExceptions     map[string]decimal.Decimal

	MinConfidence      float64
	SentimentVetoBelow float64
	LimitBreachMode    string
	HighRiskMode       string
}

// SectorLimitPct returns the exposure cap for sector, honoring exceptions.
func (l Limits) SectorLimitPct(sector string) decimal.Decimal {
	if pct, ok := l.SectorExceptions[sector]; ok {
		return pct
	}
	return l.MaxSectorExposurePct
}

// Sizing maps advisory confidence to a base notional and defines the
// haircuts for elevated sector risk.
type Sizing struct {
	BaseNotional     decimal.Decimal
	HighConfNotional decimal.Decimal
	LowConfNotional  decimal.Decimal
	HighConfidence   float64
	LowConfidence    float64

	MediumRiskHaircut decimal.Decimal
	HighRiskHaircut   decimal.Decimal
}

// BaseNotionalFor picks the confidence tier.
func (s Sizing) BaseNotionalFor(confidence float64) decimal.Decimal {
	switch {
	case confidence >= s.HighConfidence:
		return s.HighConfNotional
	case confidence < s.LowConfidence:
		return s.LowConfNotional
	default:
		return s.BaseNotional
	}
}

func LimitsFromConfig(cfg config.RiskConfig) Limits {
	limits := Limits{
		MaxSectorExposurePct: decimal.NewFromFloat(cfg.MaxSectorExposurePct),
		MaxSinglePositionPct: decimal.NewFromFloat(cfg.MaxSinglePositionPct),
		MinCashBuffer:        decimal.NewFromFloat(cfg.MinCashBuffer),
		MaxDailyDrawdownPct:  decimal.NewFromFloat(cfg.MaxDailyDrawdownPct),
		SectorExceptions:     make(map[string]decimal.Decimal, len(cfg.SectorExceptions)),
		MinConfidence:        cfg.MinConfidence,
		SentimentVetoBelow:   cfg.SentimentVetoBelow,
		LimitBreachMode:      cfg.LimitBreachMode,
		HighRiskMode:         cfg.HighRiskMode,
	}
	for sector, pct := range cfg.SectorExceptions {
		limits.SectorExceptions[sector] = decimal.NewFromFloat(pct)
	}
	return limits
}

func SizingFromConfig(cfg config.SizingConfig) Sizing {
	return Sizing{
		BaseNotional:      decimal.NewFromFloat(cfg.BaseNotional),
		HighConfNotional:  decimal.NewFromFloat(cfg.HighConfNotional),
		LowConfNotional:   decimal.NewFromFloat(cfg.LowConfNotional),
		HighConfidence:    cfg.HighConfidence,
		LowConfidence:     cfg.LowConfidence,
		MediumRiskHaircut: decimal.NewFromFloat(cfg.MediumRiskHaircut),
		HighRiskHaircut:   decimal.NewFromFloat(cfg.HighRiskHaircut),
	}
}
