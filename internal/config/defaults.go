package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9985"
	defaultMarketREST      = "https://fapi.binance.com"
	defaultMarketTimeout   = 15
	defaultMarketInterval  = "1d"
	defaultBenchmarkSymbol = "BTCUSDT"
	defaultPlanDBPath      = "data/plans.db"
	defaultAuditDBPath     = "data/audit.db"
	defaultPortfolioSync   = "1h"
	defaultRefreshInterval = "4h"
	defaultRefreshOffset   = 10
	defaultQuoteInterval   = 60
	defaultTuningPath      = "configs/tuning.yaml"
)

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
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
		key:   key,
		need:  func() bool { return target != nil && strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target == 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil },
		apply: func() { *target = def },
	}
}

func (c *Config) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &c.App.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &c.App.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &c.App.HTTPAddr, defaultAppHTTPAddr),

		stringFieldDefault("market.rest_url", &c.Market.RESTBaseURL, defaultMarketREST),
		intFieldDefault("market.http_timeout_seconds", &c.Market.HTTPTimeoutSeconds, defaultMarketTimeout),
		stringFieldDefault("market.interval", &c.Market.Interval, defaultMarketInterval),
		stringFieldDefault("market.benchmark_symbol", &c.Market.BenchmarkSymbol, defaultBenchmarkSymbol),

		boolFieldDefault("signals.sentiment_enabled", &c.Signals.SentimentEnabled, true),

		stringFieldDefault("store.plan_db_path", &c.Store.PlanDBPath, defaultPlanDBPath),
		stringFieldDefault("store.audit_db_path", &c.Store.AuditDBPath, defaultAuditDBPath),

		stringFieldDefault("portfolio.sync_interval", &c.Portfolio.SyncInterval, defaultPortfolioSync),

		stringFieldDefault("engine.refresh_interval", &c.Engine.RefreshInterval, defaultRefreshInterval),
		intFieldDefault("engine.refresh_offset_seconds", &c.Engine.RefreshOffsetSeconds, defaultRefreshOffset),
		intFieldDefault("engine.quote_interval_seconds", &c.Engine.QuoteIntervalSeconds, defaultQuoteInterval),
		stringFieldDefault("engine.tuning_path", &c.Engine.TuningPath, defaultTuningPath),
	)
}
