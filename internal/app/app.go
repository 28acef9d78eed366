package app

import (
	"context"
	"fmt"

	"alphadesk/internal/config"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/portfolio"
	"alphadesk/internal/store/decisionlog"
	"alphadesk/internal/store/gormstore"
	httpapi "alphadesk/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: load config, build the desk
// stack, serve HTTP until shutdown.
type App struct {
	cfg       *config.Config
	store     *gormstore.Store
	decisions *decisionlog.Store
	ledger    *portfolio.Ledger
	sectors   *market.SectorMap
	server    *httpapi.Server
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Ledger exposes the portfolio ledger, mainly for replay harnesses.
func (a *App) Ledger() *portfolio.Ledger {
	if a == nil {
		return nil
	}
	return a.ledger
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	if a.sectors != nil && a.cfg.Market.WatchSectors {
		if err := a.sectors.Watch(); err != nil {
			logger.Warnf("sector map watch unavailable: %v", err)
		}
	}

	state := a.ledger.State()
	logger.Infof("desk ready: cash=%s holdings=%d trades=%d listen=%s",
		state.CashBalance.StringFixed(2), len(state.Holdings), len(state.TradeHistory), a.server.Addr())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

func (a *App) close() {
	if a.sectors != nil {
		if err := a.sectors.Close(); err != nil {
			logger.Warnf("sector map close failed: %v", err)
		}
	}
	if a.decisions != nil {
		if err := a.decisions.Close(); err != nil {
			logger.Warnf("decision log close failed: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("store close failed: %v", err)
		}
	}
}
