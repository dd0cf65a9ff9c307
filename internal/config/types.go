package config

import "strings"

// Config is the full service configuration. Tuning thresholds live in their
// own hot-reloaded file; this one covers wiring and only changes with a
// restart.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Market    MarketConfig    `mapstructure:"market"`
	Signals   SignalsConfig   `mapstructure:"signals"`
	Store     StoreConfig     `mapstructure:"store"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

type MarketConfig struct {
	RESTBaseURL        string `mapstructure:"rest_url"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
	ProxyEnabled       bool   `mapstructure:"proxy_enabled"`
	RESTProxyURL       string `mapstructure:"rest_proxy_url"`
	Interval           string `mapstructure:"interval"`
	BenchmarkSymbol    string `mapstructure:"benchmark_symbol"`
}

type SignalsConfig struct {
	FundamentalPath  string `mapstructure:"fundamental_path"`
	SentimentEnabled bool   `mapstructure:"sentiment_enabled"`
	MacroOverride    string `mapstructure:"macro_override"`
}

type StoreConfig struct {
	PlanDBPath  string `mapstructure:"plan_db_path"`
	AuditDBPath string `mapstructure:"audit_db_path"`
}

type PortfolioConfig struct {
	Path         string `mapstructure:"path"`
	SyncInterval string `mapstructure:"sync_interval"`
}

type EngineConfig struct {
	RefreshInterval      string `mapstructure:"refresh_interval"`
	RefreshOffsetSeconds int    `mapstructure:"refresh_offset_seconds"`
	QuoteIntervalSeconds int    `mapstructure:"quote_interval_seconds"`
	TuningPath           string `mapstructure:"tuning_path"`
}

// keySet tracks which config keys the file actually set, so defaults only
// fill true gaps and an explicit zero survives.
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
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}
