package strategy

import (
	"math"
	"sync"
	"time"

	"trading-engine-go/internal/ring"
	"trading-engine-go/order"
)

// ToxicityTier 毒性分层，决定做市价差倍率。
type ToxicityTier int

const (
	ToxicityLow ToxicityTier = iota
	ToxicityMedium
	ToxicityHigh
)

func (t ToxicityTier) String() string {
	switch t {
	case ToxicityLow:
		return "LOW"
	case ToxicityMedium:
		return "MEDIUM"
	case ToxicityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// SpreadMultiplier 各分层对应的价差倍率。
func (t ToxicityTier) SpreadMultiplier() float64 {
	switch t {
	case ToxicityMedium:
		return 1.5
	case ToxicityHigh:
		return 2.5
	default:
		return 1.0
	}
}

// AdverseConfig 逆向选择过滤器参数。
type AdverseConfig struct {
	MeasureAfter   time.Duration `yaml:"measure_after"`    // 成交后多久测量结果
	SignificantBps float64       `yaml:"significant_bps"`  // 判定逆向的显著波动（bps）
	WindowFills    int           `yaml:"window_fills"`     // 参与评分的成交样本数
	ToxicThreshold float64       `yaml:"toxic_threshold"`  // ShouldWiden 触发分值
}

func (c *AdverseConfig) withDefaults() AdverseConfig {
	out := *c
	if out.MeasureAfter <= 0 {
		out.MeasureAfter = 500 * time.Millisecond
	}
	if out.SignificantBps <= 0 {
		out.SignificantBps = 5
	}
	if out.WindowFills <= 0 {
		out.WindowFills = 100
	}
	if out.ToxicThreshold <= 0 {
		out.ToxicThreshold = 0.6
	}
	return out
}

type fillOutcome struct {
	side     order.Side
	price    float64
	at       time.Time
	analyzed bool
	adverse  bool
	moveBps  float64
}

// AdverseFilter 衡量自身成交后的短时价格走向，量化被逆向选择的程度。
// 记录方（执行回报线程）与测量方（行情线程）不同，互斥锁保护成交环。
type AdverseFilter struct {
	cfg AdverseConfig

	mu          sync.Mutex
	fills       *ring.Ring[*fillOutcome]
	lastAdverse time.Time

	dirty       bool
	cachedScore float64
}

// NewAdverseFilter 创建逆向选择过滤器。
func NewAdverseFilter(cfg AdverseConfig) *AdverseFilter {
	cfg = cfg.withDefaults()
	return &AdverseFilter{
		cfg:   cfg,
		fills: ring.MustNew[*fillOutcome](cfg.WindowFills),
		dirty: true,
	}
}

// RecordFill 登记一笔自身成交，等待测量窗口到期。
func (f *AdverseFilter) RecordFill(side order.Side, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	f.mu.Lock()
	f.fills.Push(&fillOutcome{side: side, price: price, at: at})
	f.dirty = true
	f.mu.Unlock()
}

// UpdateCurrentPrice 用最新价终结全部到期的成交测量。
func (f *AdverseFilter) UpdateCurrentPrice(price float64, now time.Time) {
	if price <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.fills.Len()
	for i := 0; i < n; i++ {
		fo, ok := f.fills.At(i)
		if !ok || fo.analyzed {
			continue
		}
		if now.Sub(fo.at) < f.cfg.MeasureAfter {
			continue
		}
		moveBps := (price - fo.price) / fo.price * 1e4
		fo.analyzed = true
		fo.moveBps = moveBps
		// 买入后下跌 / 卖出后上涨即为逆向
		fo.adverse = (fo.side == order.SideBuy && moveBps < -f.cfg.SignificantBps) ||
			(fo.side == order.SideSell && moveBps > f.cfg.SignificantBps)
		if fo.adverse {
			f.lastAdverse = now
		}
		f.dirty = true
	}
}

// ToxicityScore 返回 [0,1] 毒性分值，脏标记失效时重算。
func (f *AdverseFilter) ToxicityScore(now time.Time) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return f.cachedScore
	}

	var analyzed, adverse int
	var adverseBpsSum float64
	n := f.fills.Len()
	for i := 0; i < n; i++ {
		fo, ok := f.fills.At(i)
		if !ok || !fo.analyzed {
			continue
		}
		analyzed++
		if fo.adverse {
			adverse++
			adverseBpsSum += math.Abs(fo.moveBps)
		}
	}
	if analyzed == 0 {
		f.cachedScore = 0
		f.dirty = false
		return 0
	}

	ratio := float64(adverse) / float64(analyzed)
	var magnitude float64
	if adverse > 0 {
		magnitude = math.Min(adverseBpsSum/float64(adverse)/20, 1)
	}
	var recency float64
	if !f.lastAdverse.IsZero() {
		msSince := float64(now.Sub(f.lastAdverse)) / float64(time.Millisecond)
		recency = math.Max(0, 1-msSince/10_000)
	}

	f.cachedScore = 0.5*ratio + 0.3*magnitude + 0.2*recency
	f.dirty = false
	return f.cachedScore
}

// Tier 返回当前毒性分层。
func (f *AdverseFilter) Tier(now time.Time) ToxicityTier {
	score := f.ToxicityScore(now)
	switch {
	case score < 0.3:
		return ToxicityLow
	case score < 0.6:
		return ToxicityMedium
	default:
		return ToxicityHigh
	}
}

// ShouldWiden 毒性超阈值时建议做市加宽价差。
func (f *AdverseFilter) ShouldWiden(now time.Time) bool {
	return f.ToxicityScore(now) > f.cfg.ToxicThreshold
}

// AnalyzedCounts 返回 (已测量数, 其中逆向数)。
func (f *AdverseFilter) AnalyzedCounts() (analyzed, adverse int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.fills.Len()
	for i := 0; i < n; i++ {
		fo, ok := f.fills.At(i)
		if !ok || !fo.analyzed {
			continue
		}
		analyzed++
		if fo.adverse {
			adverse++
		}
	}
	return analyzed, adverse
}
