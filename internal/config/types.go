package config

import "strings"

// Config is the top-level configuration document.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Market MarketConfig `mapstructure:"market"`
	Risk   RiskConfig   `mapstructure:"risk"`
	Sizing SizingConfig `mapstructure:"sizing"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

// LedgerConfig controls the durable portfolio store.
type LedgerConfig struct {
	DBPath          string  `mapstructure:"db_path"`
	DecisionLogPath string  `mapstructure:"decision_log_path"`
	StartingCash    float64 `mapstructure:"starting_cash"`
}

// MarketConfig controls the quote feed and sector map.
type MarketConfig struct {
	QuoteURL       string `mapstructure:"quote_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	CacheTTLHours  int    `mapstructure:"cache_ttl_hours"`
	SnapshotPath   string `mapstructure:"snapshot_path"`
	SectorsPath    string `mapstructure:"sectors_path"`
	WatchSectors   bool   `mapstructure:"watch_sectors"`
}

// RiskConfig holds the exposure limits and gate thresholds. Loaded once;
// never mutated after Load returns.
type RiskConfig struct {
	MaxSectorExposurePct float64            `mapstructure:"max_sector_exposure_pct"`
	MaxSinglePositionPct float64            `mapstructure:"max_single_position_pct"`
	MinCashBuffer        float64            `mapstructure:"min_cash_buffer"`
	MaxDailyDrawdownPct  float64            `mapstructure:"max_daily_drawdown_pct"`
	SectorExceptions     map[string]float64 `mapstructure:"sector_exceptions"`
	MinConfidence        float64            `mapstructure:"min_confidence"`
	SentimentVetoBelow   float64            `mapstructure:"sentiment_veto_below"`
	LimitBreachMode      string             `mapstructure:"limit_breach_mode"`
	HighRiskMode         string             `mapstructure:"high_risk_mode"`
}

// SizingConfig maps advisory confidence to a base notional and defines the
// haircuts applied for elevated sector risk.
type SizingConfig struct {
	BaseNotional      float64 `mapstructure:"base_notional"`
	HighConfNotional  float64 `mapstructure:"high_conf_notional"`
	LowConfNotional   float64 `mapstructure:"low_conf_notional"`
	HighConfidence    float64 `mapstructure:"high_confidence"`
	LowConfidence     float64 `mapstructure:"low_confidence"`
	MediumRiskHaircut float64 `mapstructure:"medium_risk_haircut"`
	HighRiskHaircut   float64 `mapstructure:"high_risk_haircut"`
}

// Limit-breach handling modes (RiskConfig.LimitBreachMode).
const (
	LimitBreachReject = "reject"
	LimitBreachClamp  = "clamp"
)

// HIGH-risk-with-tolerable-sentiment handling modes (RiskConfig.HighRiskMode).
const (
	HighRiskHaircut = "haircut"
	HighRiskVeto    = "veto"
)

// keySet tracks which config paths were explicitly set in the files, so
// defaults never clobber a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
