package app

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/config"
	"quorum/internal/desk"
	"quorum/internal/logger"
	"quorum/internal/scheduler"
	httpapi "quorum/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: build dependencies, start the
// desk, the HTTP API and the schedulers, and unwind on context cancel.
type App struct {
	cfg     *config.Config
	desk    *desk.Desk
	httpSrv *httpapi.Server
}

// NewApp builds the application from configuration without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Desk exposes the desk for test harnesses.
func (a *App) Desk() *desk.Desk {
	if a == nil {
		return nil
	}
	return a.desk
}

// Run starts everything and blocks until ctx cancels or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	a.desk.Start()
	defer a.desk.Stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.runRefreshLoop(ctx)
		return nil
	})
	group.Go(func() error {
		a.runQuoteLoop(ctx)
		return nil
	})
	group.Go(func() error {
		a.runPortfolioSync(ctx)
		return nil
	})

	logger.Infof("quorumd up: http=%s refresh=%s quotes every %ds",
		a.httpSrv.Addr(), a.cfg.Engine.RefreshInterval, a.cfg.Engine.QuoteIntervalSeconds)
	return group.Wait()
}

// runRefreshLoop re-fuses a decision for every held symbol, aligned to bar
// closes so indicator inputs are stable.
func (a *App) runRefreshLoop(ctx context.Context) {
	interval, _ := scheduler.ParseIntervalDuration(a.cfg.Engine.RefreshInterval)
	s := scheduler.NewAlignedScheduler(ctx, interval,
		secondsDuration(a.cfg.Engine.RefreshOffsetSeconds))
	s.Name = "refresh"
	s.RunImmediately = true
	s.Start(func() {
		snap := a.desk.Snapshot()
		for sym := range snap.BySymbol {
			if _, err := a.desk.RefreshDecision(ctx, sym); err != nil {
				logger.Errorf("Refresh loop: %s failed: %v", sym, err)
			}
		}
	})
}

// runQuoteLoop feeds current prices into the desk so triggers and high-water
// marks stay live between full refreshes.
func (a *App) runQuoteLoop(ctx context.Context) {
	s := scheduler.NewAlignedScheduler(ctx,
		secondsDuration(a.cfg.Engine.QuoteIntervalSeconds), 0)
	s.Name = "quotes"
	s.Start(func() {
		snap := a.desk.Snapshot()
		for sym := range snap.BySymbol {
			quote, err := a.desk.FetchQuote(ctx, sym)
			if err != nil {
				logger.Warnf("Quote loop: %s failed: %v", sym, err)
				continue
			}
			if err := a.desk.OnPrice(sym, quote.Price); err != nil {
				logger.Warnf("Quote loop: desk rejected %s tick: %v", sym, err)
			}
		}
	})
}

func (a *App) runPortfolioSync(ctx context.Context) {
	interval, _ := scheduler.ParseIntervalDuration(a.cfg.Portfolio.SyncInterval)
	s := scheduler.NewAlignedScheduler(ctx, interval, 0)
	s.Name = "portfolio"
	s.RunImmediately = true
	s.Start(func() {
		if err := a.desk.SyncPortfolio(ctx); err != nil {
			logger.Errorf("Portfolio sync failed: %v", err)
		}
	})
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
