package app

import (
	"context"
	"fmt"
	"time"

	"alphadesk/internal/config"
	"alphadesk/internal/executor"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/portfolio"
	"alphadesk/internal/risk"
	"alphadesk/internal/store/decisionlog"
	"alphadesk/internal/store/gormstore"
	httpapi "alphadesk/internal/transport/http"

	"github.com/shopspring/decimal"
)

// AppBuilder assembles the desk stack. The hook fields exist so tests can
// substitute in-memory pieces without touching disk or the network.
type AppBuilder struct {
	cfg *config.Config

	storeFn     func(config.LedgerConfig) (*gormstore.Store, error)
	decisionsFn func(config.LedgerConfig) (*decisionlog.Store, error)
	oracleFn    func(config.MarketConfig) market.PriceOracle
	sectorsFn   func(config.MarketConfig) (*market.SectorMap, error)
	serverFn    func(httpapi.ServerConfig) (*httpapi.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		storeFn:     buildStore,
		decisionsFn: buildDecisionLog,
		oracleFn:    buildOracle,
		sectorsFn:   buildSectorMap,
		serverFn:    httpapi.NewServer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithOracle replaces the quote feed, e.g. with a seeded fixture.
func WithOracle(oracle market.PriceOracle) AppBuilderOption {
	return func(b *AppBuilder) {
		b.oracleFn = func(config.MarketConfig) market.PriceOracle { return oracle }
	}
}

// Build wires store, ledger, market data, gate, executor and HTTP server.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	st, err := b.storeFn(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open portfolio store: %w", err)
	}

	decisions, err := b.decisionsFn(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}

	ledger := portfolio.NewLedger(st, decimal.NewFromFloat(cfg.Ledger.StartingCash))
	ledger.LoadOrCreate(ctx)

	oracle := b.oracleFn(cfg.Market)

	sectors, err := b.sectorsFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("load sector map: %w", err)
	}

	gate := risk.NewGate(ledger, oracle, sectors, risk.LimitsFromConfig(cfg.Risk), risk.SizingFromConfig(cfg.Sizing))
	exec := executor.New(ledger, gate, decisions)

	server, err := b.serverFn(httpapi.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Ledger:    ledger,
		Gate:      gate,
		Executor:  exec,
		Oracle:    oracle,
		Sectors:   sectors,
		Decisions: decisions,
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     st,
		decisions: decisions,
		ledger:    ledger,
		sectors:   sectors,
		server:    server,
	}, nil
}

func buildStore(cfg config.LedgerConfig) (*gormstore.Store, error) {
	return gormstore.New(cfg.DBPath)
}

func buildDecisionLog(cfg config.LedgerConfig) (*decisionlog.Store, error) {
	return decisionlog.New(cfg.DecisionLogPath)
}

func buildOracle(cfg config.MarketConfig) market.PriceOracle {
	return market.NewQuoteFeed(market.FeedConfig{
		QuoteURL:     cfg.QuoteURL,
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		CacheTTL:     time.Duration(cfg.CacheTTLHours) * time.Hour,
		SnapshotPath: cfg.SnapshotPath,
	})
}

func buildSectorMap(cfg config.MarketConfig) (*market.SectorMap, error) {
	sectors, err := market.NewSectorMap(cfg.SectorsPath)
	if err != nil {
		logger.Warnf("sector map load failed, tickers fall back to %s: %v", market.SectorUnknown, err)
		return market.NewEmptySectorMap(), nil
	}
	return sectors, nil
}
