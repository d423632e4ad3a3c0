package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"trading-engine-go/gateway"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/market"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env string `yaml:"env" env:"ENGINE_ENV"`

	Log  logger.Config `yaml:"log"`
	Risk risk.Limits   `yaml:"risk"`

	Breaker   BreakerConfig   `yaml:"breaker"`
	ErrorRate ErrorRateConfig `yaml:"error_rate"`

	Strategies StrategiesConfig        `yaml:"strategies"`
	Symbols    []string                `yaml:"symbols"`
	Pairs      []PairSpec              `yaml:"pairs"`

	Feed        FeedConfig `yaml:"feed"`
	MetricsAddr string     `yaml:"metrics_addr" env:"ENGINE_METRICS_ADDR"`
	OpsAddr     string     `yaml:"ops_addr" env:"ENGINE_OPS_ADDR"`
}

// BreakerConfig 熔断参数（毫秒整型，构建时转 Duration）。
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	SuccessThreshold int `yaml:"success_threshold"`
	TimeoutMs        int `yaml:"timeout_ms"`
	TestPeriodMs     int `yaml:"test_period_ms"`
}

// Build 转换为风控层配置。
func (c BreakerConfig) Build() risk.BreakerConfig {
	return risk.BreakerConfig{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		Timeout:          time.Duration(c.TimeoutMs) * time.Millisecond,
		TestPeriod:       time.Duration(c.TestPeriodMs) * time.Millisecond,
	}
}

// ErrorRateConfig 错误率窗口参数。
type ErrorRateConfig struct {
	WindowMs  int `yaml:"window_ms"`
	Threshold int `yaml:"threshold"`
}

// Build 转换为风控层配置。
func (c ErrorRateConfig) Build() risk.ErrorRateConfig {
	return risk.ErrorRateConfig{
		Window:    time.Duration(c.WindowMs) * time.Millisecond,
		Threshold: c.Threshold,
	}
}

// StrategiesConfig 各策略的开关与参数。
type StrategiesConfig struct {
	OBI      OBIParams      `yaml:"obi"`
	Arb      ArbParams      `yaml:"arb"`
	Pairs    PairsParams    `yaml:"pairs"`
	Vol      VolParams      `yaml:"vol"`
	Adverse  AdverseParams  `yaml:"adverse"`
	Notional strategy.NotionalPolicy `yaml:"notional"`
}

// OBIParams 盘口失衡参数。
type OBIParams struct {
	Enabled            bool    `yaml:"enabled"`
	Levels             int     `yaml:"levels"`
	MinVolume          float64 `yaml:"min_volume"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
	TargetBps          float64 `yaml:"target_bps"`
	StopBps            float64 `yaml:"stop_bps"`
	SignalDecayMs      int     `yaml:"signal_decay_ms"`
	Weighted           bool    `yaml:"weighted"`
	Adaptive           bool    `yaml:"adaptive"` // 按波动率档位自动调参
}

// Build 转换为策略配置。
func (p OBIParams) Build() strategy.OBIConfig {
	return strategy.OBIConfig{
		Levels:             p.Levels,
		MinVolume:          p.MinVolume,
		ImbalanceThreshold: p.ImbalanceThreshold,
		TargetBps:          p.TargetBps,
		StopBps:            p.StopBps,
		SignalDecay:        time.Duration(p.SignalDecayMs) * time.Millisecond,
		Weighted:           p.Weighted,
	}
}

// ArbParams 跨所套利参数。
type ArbParams struct {
	Enabled           bool    `yaml:"enabled"`
	MinProfitBps      float64 `yaml:"min_profit_bps"`
	DecayRate         float64 `yaml:"decay_rate"`
	DecayAfterMs      int     `yaml:"decay_after_ms"`
	MaxSlippageBps    float64 `yaml:"max_slippage_bps"`
	MaxStalenessMs    int     `yaml:"max_staleness_ms"`
	MaxDetectionUs    int     `yaml:"max_detection_us"`
	MaxPositionUSD    float64 `yaml:"max_position_usd"`
	MaxConcurrentArbs int64   `yaml:"max_concurrent_arbs"`
}

// Build 转换为策略配置。
func (p ArbParams) Build() strategy.LatArbConfig {
	return strategy.LatArbConfig{
		MinProfitBps:      p.MinProfitBps,
		DecayRate:         p.DecayRate,
		DecayAfter:        time.Duration(p.DecayAfterMs) * time.Millisecond,
		MaxSlippageBps:    p.MaxSlippageBps,
		MaxStaleness:      time.Duration(p.MaxStalenessMs) * time.Millisecond,
		MaxDetectionTime:  time.Duration(p.MaxDetectionUs) * time.Microsecond,
		MaxPositionUSD:    p.MaxPositionUSD,
		MaxConcurrentArbs: p.MaxConcurrentArbs,
	}
}

// PairsParams 配对交易参数。
type PairsParams struct {
	Enabled        bool    `yaml:"enabled"`
	Window         int     `yaml:"window"`
	MinSamples     int     `yaml:"min_samples"`
	EntryZ         float64 `yaml:"entry_z"`
	ExitZ          float64 `yaml:"exit_z"`
	StopZ          float64 `yaml:"stop_z"`
	PositionUSD    float64 `yaml:"position_usd"`
	MinCorrelation float64 `yaml:"min_correlation"`
}

// Build 转换为策略配置。
func (p PairsParams) Build() strategy.PairsConfig {
	return strategy.PairsConfig{
		Window:         p.Window,
		MinSamples:     p.MinSamples,
		EntryZ:         p.EntryZ,
		ExitZ:          p.ExitZ,
		StopZ:          p.StopZ,
		PositionUSD:    p.PositionUSD,
		MinCorrelation: p.MinCorrelation,
	}
}

// VolParams 波动率策略参数。
type VolParams struct {
	Enabled        bool    `yaml:"enabled"`
	ATRPeriod      int     `yaml:"atr_period"`
	HighEntry      float64 `yaml:"high_entry"`
	LowEntry       float64 `yaml:"low_entry"`
	TargetBps      float64 `yaml:"target_bps"`
	StopBps        float64 `yaml:"stop_bps"`
	MaxHoldMinutes int     `yaml:"max_hold_minutes"`
	SignalDecayMs  int     `yaml:"signal_decay_ms"`
}

// Build 转换为策略配置。
func (p VolParams) Build() strategy.VolConfig {
	return strategy.VolConfig{
		ATRPeriod:      p.ATRPeriod,
		HighEntry:      p.HighEntry,
		LowEntry:       p.LowEntry,
		TargetBps:      p.TargetBps,
		StopBps:        p.StopBps,
		MaxHoldMinutes: p.MaxHoldMinutes,
		SignalDecay:    time.Duration(p.SignalDecayMs) * time.Millisecond,
	}
}

// AdverseParams 逆向选择过滤器参数。
type AdverseParams struct {
	Enabled        bool    `yaml:"enabled"`
	MeasureAfterMs int     `yaml:"measure_after_ms"`
	SignificantBps float64 `yaml:"significant_bps"`
	WindowFills    int     `yaml:"window_fills"`
	ToxicThreshold float64 `yaml:"toxic_threshold"`
}

// Build 转换为策略配置。
func (p AdverseParams) Build() strategy.AdverseConfig {
	return strategy.AdverseConfig{
		MeasureAfter:   time.Duration(p.MeasureAfterMs) * time.Millisecond,
		SignificantBps: p.SignificantBps,
		WindowFills:    p.WindowFills,
		ToxicThreshold: p.ToxicThreshold,
	}
}

// PairSpec 一个配对交易符号对。
type PairSpec struct {
	S1 string `yaml:"s1"`
	S2 string `yaml:"s2"`
}

// FeedConfig 行情接入参数。
type FeedConfig struct {
	URL            string `yaml:"url" env:"ENGINE_FEED_URL"`
	PingIntervalMs int    `yaml:"ping_interval_ms"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	MaxBackoffMs   int    `yaml:"max_backoff_ms"`
}

// Build 转换为网关层配置。
func (c FeedConfig) Build(venue market.Venue) gateway.FeedConfig {
	return gateway.FeedConfig{
		URL:          c.URL,
		Venue:        venue,
		PingInterval: time.Duration(c.PingIntervalMs) * time.Millisecond,
		ReadTimeout:  time.Duration(c.ReadTimeoutMs) * time.Millisecond,
		MaxBackoff:   time.Duration(c.MaxBackoffMs) * time.Millisecond,
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields tagged with env vars.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := env.Parse(&cfg.Risk); err != nil {
		return cfg, fmt.Errorf("env overrides (risk): %w", err)
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if err := cfg.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	if cfg.Strategies.Pairs.Enabled && len(cfg.Pairs) == 0 {
		return errors.New("pairs strategy enabled but no pairs configured")
	}
	for i, p := range cfg.Pairs {
		if p.S1 == "" || p.S2 == "" {
			return fmt.Errorf("pairs[%d]: both s1 and s2 are required", i)
		}
		if p.S1 == p.S2 {
			return fmt.Errorf("pairs[%d]: s1 and s2 must differ", i)
		}
	}
	if cfg.Strategies.Arb.DecayRate < 0 || cfg.Strategies.Arb.DecayRate > 1 {
		return errors.New("strategies.arb.decay_rate must be in [0, 1]")
	}
	if cfg.Feed.URL != "" && cfg.Feed.ReadTimeoutMs < 0 {
		return errors.New("feed.read_timeout_ms must be >= 0")
	}
	return nil
}
