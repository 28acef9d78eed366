package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Sizing.validate(); err != nil {
		return err
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if strings.TrimSpace(l.DBPath) == "" {
		return fmt.Errorf("ledger.db_path cannot be empty")
	}
	if l.StartingCash <= 0 {
		return fmt.Errorf("ledger.starting_cash must be > 0")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if m.TimeoutSeconds <= 0 {
		return fmt.Errorf("market.timeout_seconds must be > 0")
	}
	if m.CacheTTLHours <= 0 {
		return fmt.Errorf("market.cache_ttl_hours must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxSectorExposurePct <= 0 || r.MaxSectorExposurePct > 1 {
		return fmt.Errorf("risk.max_sector_exposure_pct must be in (0, 1]")
	}
	if r.MaxSinglePositionPct <= 0 || r.MaxSinglePositionPct > 1 {
		return fmt.Errorf("risk.max_single_position_pct must be in (0, 1]")
	}
	if r.MinCashBuffer < 0 {
		return fmt.Errorf("risk.min_cash_buffer must be >= 0")
	}
	if r.MaxDailyDrawdownPct <= 0 || r.MaxDailyDrawdownPct > 1 {
		return fmt.Errorf("risk.max_daily_drawdown_pct must be in (0, 1]")
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("risk.min_confidence must be in [0, 1]")
	}
	if r.SentimentVetoBelow < -1 || r.SentimentVetoBelow > 1 {
		return fmt.Errorf("risk.sentiment_veto_below must be in [-1, 1]")
	}
	for sector, pct := range r.SectorExceptions {
		if pct <= 0 || pct > 1 {
			return fmt.Errorf("risk.sector_exceptions.%s must be in (0, 1]", sector)
		}
	}
	switch r.LimitBreachMode {
	case LimitBreachReject, LimitBreachClamp:
	default:
		return fmt.Errorf("risk.limit_breach_mode must be %q or %q", LimitBreachReject, LimitBreachClamp)
	}
	switch r.HighRiskMode {
	case HighRiskHaircut, HighRiskVeto:
	default:
		return fmt.Errorf("risk.high_risk_mode must be %q or %q", HighRiskHaircut, HighRiskVeto)
	}
	return nil
}

func (s *SizingConfig) validate() error {
	if s.BaseNotional <= 0 || s.HighConfNotional <= 0 || s.LowConfNotional <= 0 {
		return fmt.Errorf("sizing notionals must be > 0")
	}
	if s.LowConfidence >= s.HighConfidence {
		return fmt.Errorf("sizing.low_confidence must be below sizing.high_confidence")
	}
	if s.MediumRiskHaircut < 0 || s.MediumRiskHaircut >= 1 {
		return fmt.Errorf("sizing.medium_risk_haircut must be in [0, 1)")
	}
	if s.HighRiskHaircut < 0 || s.HighRiskHaircut >= 1 {
		return fmt.Errorf("sizing.high_risk_haircut must be in [0, 1)")
	}
	return nil
}
