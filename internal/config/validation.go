package config

import (
	"fmt"
	"strings"

	"quorum/internal/scheduler"
)

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Portfolio.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if m.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("market.http_timeout_seconds must be >= 0")
	}
	if _, ok := scheduler.ParseIntervalDuration(m.Interval); !ok {
		return fmt.Errorf("market.interval %q is not a valid interval", m.Interval)
	}
	if m.ProxyEnabled && strings.TrimSpace(m.RESTProxyURL) == "" {
		return fmt.Errorf("market.rest_proxy_url is required when proxy is enabled")
	}
	return nil
}

func (p *PortfolioConfig) validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("portfolio.path is required")
	}
	if _, ok := scheduler.ParseIntervalDuration(p.SyncInterval); !ok {
		return fmt.Errorf("portfolio.sync_interval %q is not a valid interval", p.SyncInterval)
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if _, ok := scheduler.ParseIntervalDuration(e.RefreshInterval); !ok {
		return fmt.Errorf("engine.refresh_interval %q is not a valid interval", e.RefreshInterval)
	}
	if e.RefreshOffsetSeconds < 0 {
		return fmt.Errorf("engine.refresh_offset_seconds must be >= 0")
	}
	if e.QuoteIntervalSeconds <= 0 {
		return fmt.Errorf("engine.quote_interval_seconds must be positive")
	}
	return nil
}
