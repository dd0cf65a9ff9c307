package app

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/config"
	"quorum/internal/desk"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/market/binance"
	"quorum/internal/signal"
	"quorum/internal/store/decisionlog"
	"quorum/internal/store/gormstore"
	httpapi "quorum/internal/transport/http"
	"quorum/internal/tuning"
)

// AppBuilder assembles the service from configuration, one concern at a
// time. Build is the only entry point; the step methods keep construction
// order explicit.
type AppBuilder struct {
	cfg *config.Config

	marketSrc market.Source
	sources   []signal.Source
	stance    signal.StanceProvider
	tuningReg *tuning.Registry
	planStore *gormstore.GormStore
	audit     *decisionlog.Store
	portfolio desk.PortfolioProvider
	desk      *desk.Desk
	httpSrv   *httpapi.Server
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	steps := []func() error{
		b.buildMarket,
		b.buildTuning,
		b.buildSignals,
		b.buildStores,
		b.buildDesk,
		b.buildHTTP,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	if err := b.desk.Hydrate(ctx); err != nil {
		return nil, err
	}
	return &App{
		cfg:     b.cfg,
		desk:    b.desk,
		httpSrv: b.httpSrv,
	}, nil
}

func (b *AppBuilder) buildMarket() error {
	src, err := binance.New(binance.Config{
		RESTBaseURL:  b.cfg.Market.RESTBaseURL,
		HTTPTimeout:  time.Duration(b.cfg.Market.HTTPTimeoutSeconds) * time.Second,
		ProxyEnabled: b.cfg.Market.ProxyEnabled,
		RESTProxyURL: b.cfg.Market.RESTProxyURL,
	})
	if err != nil {
		return fmt.Errorf("build market source: %w", err)
	}
	b.marketSrc = src
	return nil
}

func (b *AppBuilder) buildTuning() error {
	reg, err := tuning.NewRegistry(b.cfg.Engine.TuningPath)
	if err != nil {
		return fmt.Errorf("build tuning registry: %w", err)
	}
	reg.Subscribe(func(snap tuning.Snapshot) {
		logger.Infof("Tuning updated to v%d, next evaluation pass picks it up", snap.Version)
	})
	b.tuningReg = reg
	return nil
}

func (b *AppBuilder) buildSignals() error {
	clock := market.SystemClock{}
	b.sources = append(b.sources,
		signal.NewTechnicalSource(b.marketSrc, b.cfg.Market.Interval, clock))

	if path := b.cfg.Signals.FundamentalPath; path != "" {
		b.sources = append(b.sources, signal.NewFundamentalSource(path, clock))
	} else {
		logger.Warnf("No fundamental document configured, council runs without that vote")
	}

	if b.cfg.Signals.SentimentEnabled {
		b.sources = append(b.sources, signal.NewSentimentSource(clock))
	}

	override, err := signal.ParseStance(b.cfg.Signals.MacroOverride)
	if err != nil {
		return err
	}
	macro := signal.NewMacroSource(b.marketSrc, b.cfg.Market.BenchmarkSymbol, b.cfg.Market.Interval, override, clock)
	b.sources = append(b.sources, macro)
	b.stance = macro
	return nil
}

func (b *AppBuilder) buildStores() error {
	planStore, err := gormstore.NewGormStore(b.cfg.Store.PlanDBPath)
	if err != nil {
		return fmt.Errorf("build plan store: %w", err)
	}
	b.planStore = planStore

	audit, err := decisionlog.NewStore(b.cfg.Store.AuditDBPath)
	if err != nil {
		return fmt.Errorf("build audit store: %w", err)
	}
	b.audit = audit
	b.portfolio = desk.NewFilePortfolio(b.cfg.Portfolio.Path)
	return nil
}

func (b *AppBuilder) buildDesk() error {
	d, err := desk.New(desk.Options{
		Sources:   b.sources,
		Stance:    b.stance,
		Market:    b.marketSrc,
		PlanStore: b.planStore,
		Audit:     b.audit,
		Portfolio: b.portfolio,
		Tuning:    b.tuningReg,
		Interval:  b.cfg.Market.Interval,
	})
	if err != nil {
		return fmt.Errorf("build desk: %w", err)
	}
	b.desk = d
	return nil
}

func (b *AppBuilder) buildHTTP() error {
	srv, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr: b.cfg.App.HTTPAddr,
		Desk: b.desk,
		Logs: b.audit,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}
	b.httpSrv = srv
	return nil
}
