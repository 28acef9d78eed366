package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = ""

	defaultLedgerDBPath       = "data/portfolio.db"
	defaultLedgerDecisionPath = "data/decisions.db"
	defaultLedgerStartingCash = 100000.0

	defaultMarketTimeoutSecs = 10
	defaultMarketTTLHours    = 24
	defaultMarketSectors     = "configs/sectors.yaml"

	defaultRiskMaxSectorPct    = 0.30
	defaultRiskMaxSinglePct    = 0.10
	defaultRiskMinCashBuffer   = 5000.0
	defaultRiskMaxDrawdownPct  = 0.02
	defaultRiskMinConfidence   = 0.60
	defaultRiskSentimentVeto   = -0.20
	defaultSizingBaseNotional  = 5000.0
	defaultSizingHighNotional  = 8000.0
	defaultSizingLowNotional   = 2000.0
	defaultSizingHighConf      = 0.80
	defaultSizingLowConf       = 0.50
	defaultSizingMediumHaircut = 0.20
	defaultSizingHighHaircut   = 0.50
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Sizing.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.db_path", &l.DBPath, defaultLedgerDBPath),
		stringFieldDefault("ledger.decision_log_path", &l.DecisionLogPath, defaultLedgerDecisionPath),
		floatFieldDefault("ledger.starting_cash", &l.StartingCash, defaultLedgerStartingCash),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeoutSecs),
		intFieldDefault("market.cache_ttl_hours", &m.CacheTTLHours, defaultMarketTTLHours),
		stringFieldDefault("market.sectors_path", &m.SectorsPath, defaultMarketSectors),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.max_sector_exposure_pct", &r.MaxSectorExposurePct, defaultRiskMaxSectorPct),
		floatFieldDefault("risk.max_single_position_pct", &r.MaxSinglePositionPct, defaultRiskMaxSinglePct),
		floatFieldDefault("risk.min_cash_buffer", &r.MinCashBuffer, defaultRiskMinCashBuffer),
		floatFieldDefault("risk.max_daily_drawdown_pct", &r.MaxDailyDrawdownPct, defaultRiskMaxDrawdownPct),
		floatFieldDefault("risk.min_confidence", &r.MinConfidence, defaultRiskMinConfidence),
		stringFieldDefault("risk.limit_breach_mode", &r.LimitBreachMode, LimitBreachReject),
		stringFieldDefault("risk.high_risk_mode", &r.HighRiskMode, HighRiskHaircut),
	)
	if !keys.isSet("risk.sentiment_veto_below") && r.SentimentVetoBelow == 0 {
		r.SentimentVetoBelow = defaultRiskSentimentVeto
	}
	if !keys.isSet("risk.sector_exceptions") && r.SectorExceptions == nil {
		r.SectorExceptions = map[string]float64{"Index/ETF": 0.50}
	}
}

func (s *SizingConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("sizing.base_notional", &s.BaseNotional, defaultSizingBaseNotional),
		floatFieldDefault("sizing.high_conf_notional", &s.HighConfNotional, defaultSizingHighNotional),
		floatFieldDefault("sizing.low_conf_notional", &s.LowConfNotional, defaultSizingLowNotional),
		floatFieldDefault("sizing.high_confidence", &s.HighConfidence, defaultSizingHighConf),
		floatFieldDefault("sizing.low_confidence", &s.LowConfidence, defaultSizingLowConf),
		floatFieldDefault("sizing.medium_risk_haircut", &s.MediumRiskHaircut, defaultSizingMediumHaircut),
		floatFieldDefault("sizing.high_risk_haircut", &s.HighRiskHaircut, defaultSizingHighHaircut),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
