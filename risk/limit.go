package risk

import (
	"fmt"
	"sync"
	"time"
)

// Limits 风控限额配置。
type Limits struct {
	MaxSymbolNotional float64 `yaml:"max_symbol_notional" env:"RISK_MAX_SYMBOL_NOTIONAL"`
	MaxGrossExposure  float64 `yaml:"max_gross_exposure" env:"RISK_MAX_GROSS_EXPOSURE"`
	MaxNetExposure    float64 `yaml:"max_net_exposure" env:"RISK_MAX_NET_EXPOSURE"`
	DailyLossCap      float64 `yaml:"daily_loss_cap" env:"RISK_DAILY_LOSS_CAP"`
	TrailingStopFrac  float64 `yaml:"trailing_stop_frac" env:"RISK_TRAILING_STOP_FRAC"`
	MaxOrderNotional  float64 `yaml:"max_order_notional" env:"RISK_MAX_ORDER_NOTIONAL"`
	MaxOrdersPerSec   int     `yaml:"max_orders_per_sec" env:"RISK_MAX_ORDERS_PER_SEC"`
	ConcentrationFrac float64 `yaml:"concentration_frac" env:"RISK_CONCENTRATION_FRAC"`
	MaxHoldSeconds    int     `yaml:"max_hold_seconds" env:"RISK_MAX_HOLD_SECONDS"`

	// 价格冲击阈值（相对涨跌幅），零关闭对应窗口
	Shock1mFrac float64 `yaml:"shock_1m_frac" env:"RISK_SHOCK_1M_FRAC"`
	Shock5mFrac float64 `yaml:"shock_5m_frac" env:"RISK_SHOCK_5M_FRAC"`

	// 同方向下单最小间隔，零关闭
	MinOrderIntervalMs int `yaml:"min_order_interval_ms" env:"RISK_MIN_ORDER_INTERVAL_MS"`
}

// Validate 校验限额配置。
func (l *Limits) Validate() error {
	if l.MaxSymbolNotional <= 0 {
		return fmt.Errorf("max_symbol_notional: must be > 0, got %v", l.MaxSymbolNotional)
	}
	if l.MaxGrossExposure <= 0 {
		return fmt.Errorf("max_gross_exposure: must be > 0, got %v", l.MaxGrossExposure)
	}
	if l.DailyLossCap <= 0 {
		return fmt.Errorf("daily_loss_cap: must be > 0, got %v", l.DailyLossCap)
	}
	if l.TrailingStopFrac <= 0 || l.TrailingStopFrac > 1 {
		return fmt.Errorf("trailing_stop_frac: must be in (0, 1], got %v", l.TrailingStopFrac)
	}
	if l.MaxOrderNotional <= 0 {
		return fmt.Errorf("max_order_notional: must be > 0, got %v", l.MaxOrderNotional)
	}
	// 零值关闭集中度检查
	if l.ConcentrationFrac < 0 || l.ConcentrationFrac > 1 {
		return fmt.Errorf("concentration_frac: must be in [0, 1], got %v", l.ConcentrationFrac)
	}
	if l.Shock1mFrac < 0 || l.Shock5mFrac < 0 {
		return fmt.Errorf("shock fracs must be >= 0, got %v / %v", l.Shock1mFrac, l.Shock5mFrac)
	}
	if l.MinOrderIntervalMs < 0 {
		return fmt.Errorf("min_order_interval_ms: must be >= 0, got %v", l.MinOrderIntervalMs)
	}
	return nil
}

// RateGuard 按秒滑窗限制下单频率。
type RateGuard struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time
	clock  Clock
}

// NewRateGuard 创建每秒最多 maxPerSec 单的限频器。
func NewRateGuard(maxPerSec int, clock Clock) *RateGuard {
	if clock == nil {
		clock = NowUTC
	}
	return &RateGuard{max: maxPerSec, window: time.Second, clock: clock}
}

// Allow 尝试占用一个下单配额，超频返回 ErrTooFrequent。
func (g *RateGuard) Allow() error {
	if g.max <= 0 {
		return nil
	}
	now := g.clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := now.Add(-g.window)
	keep := g.stamps[:0]
	for _, ts := range g.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	g.stamps = keep
	if len(g.stamps) >= g.max {
		return fmt.Errorf("%w: %d in last %v", ErrTooFrequent, len(g.stamps), g.window)
	}
	g.stamps = append(g.stamps, now)
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
