package strategy

import (
	"math"
	"time"

	"trading-engine-go/internal/ring"
	"trading-engine-go/order"
	"trading-engine-go/symbol"
)

// VolRegimeKind 波动率状态。
type VolRegimeKind int

const (
	VolNormal VolRegimeKind = iota
	VolHigh
	VolLow
)

func (k VolRegimeKind) String() string {
	switch k {
	case VolHigh:
		return "HIGH"
	case VolLow:
		return "LOW"
	default:
		return "NORMAL"
	}
}

// VolConfig 波动率策略参数。
type VolConfig struct {
	ATRPeriod      int           `yaml:"atr_period"`       // ATR 均值窗口 P
	HighEntry      float64       `yaml:"high_entry"`       // cur/avg 高波动进入比
	LowEntry       float64       `yaml:"low_entry"`        // cur/avg 低波动进入比
	TargetBps      float64       `yaml:"target_bps"`
	StopBps        float64       `yaml:"stop_bps"`
	MaxHoldMinutes int           `yaml:"max_hold_minutes"`
	SignalDecay    time.Duration `yaml:"signal_decay"`
}

func (c *VolConfig) withDefaults() VolConfig {
	out := *c
	if out.ATRPeriod <= 0 {
		out.ATRPeriod = 14
	}
	if out.HighEntry <= 0 {
		out.HighEntry = 1.5
	}
	if out.LowEntry <= 0 {
		out.LowEntry = 0.6
	}
	if out.TargetBps <= 0 {
		out.TargetBps = 20
	}
	if out.StopBps <= 0 {
		out.StopBps = 12
	}
	if out.MaxHoldMinutes <= 0 {
		out.MaxHoldMinutes = 30
	}
	if out.SignalDecay <= 0 {
		out.SignalDecay = 500 * time.Millisecond
	}
	return out
}

// VolEntry 进场留痕，供 ShouldExit 判断。
type VolEntry struct {
	Regime    VolRegimeKind
	EnteredAt time.Time
}

// VolRegime 按 ATR 比值划分波动状态并给出对应方向信号。
// 点价序列下每段真实波幅取 |p_i − p_{i−1}| 近似。
// 协调器单 goroutine 驱动，内部不加锁。
type VolRegime struct {
	cfg VolConfig
	sym symbol.ID

	prices *ring.Ring[float64]
	atrs   *ring.Ring[float64]
	last   float64
	Stats  VolStats
}

// NewVolRegime 创建波动率策略。
func NewVolRegime(sym symbol.ID, cfg VolConfig) *VolRegime {
	cfg = cfg.withDefaults()
	return &VolRegime{
		cfg:    cfg,
		sym:    sym,
		prices: ring.MustNew[float64](2 * cfg.ATRPeriod),
		atrs:   ring.MustNew[float64](50),
	}
}

// AddPrice 输入一个新价格样本并滚动 ATR。
func (v *VolRegime) AddPrice(price float64) {
	if price <= 0 {
		return
	}
	if v.last > 0 {
		v.atrs.Push(math.Abs(price - v.last))
	}
	v.prices.Push(price)
	v.last = price
}

// CurrentATR 最近 P 段真实波幅均值，样本不足返回 0。
func (v *VolRegime) CurrentATR() float64 {
	n := v.atrs.Len()
	if n < v.cfg.ATRPeriod {
		return 0
	}
	var sum float64
	for i := n - v.cfg.ATRPeriod; i < n; i++ {
		x, _ := v.atrs.At(i)
		sum += x
	}
	return sum / float64(v.cfg.ATRPeriod)
}

// AverageATR 全环 ATR 均值，样本数不足 10 返回 0。
func (v *VolRegime) AverageATR() float64 {
	n := v.atrs.Len()
	if n < 10 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		x, _ := v.atrs.At(i)
		sum += x
	}
	return sum / float64(n)
}

// Regime 当前波动状态。统计未就绪时为 NORMAL。
func (v *VolRegime) Regime() VolRegimeKind {
	cur, avg := v.CurrentATR(), v.AverageATR()
	if cur <= 0 || avg <= 0 {
		return VolNormal
	}
	switch r := cur / avg; {
	case r > v.cfg.HighEntry:
		return VolHigh
	case r < v.cfg.LowEntry:
		return VolLow
	default:
		return VolNormal
	}
}

// Analyze 按当前状态给出至多一条信号。
//   - HIGH：均值回归，最近 5 样本涨超 1% 做空、跌超 1% 做多；
//   - LOW：突破偏置，默认做多，对称目标/止损；
//   - NORMAL：无信号。
func (v *VolRegime) Analyze(now time.Time) *Signal {
	regime := v.Regime()
	if regime == VolNormal {
		return nil
	}
	cur, err := v.prices.Back()
	if err != nil || cur <= 0 {
		return nil
	}

	var side order.Side
	switch regime {
	case VolHigh:
		n := v.prices.Len()
		if n < 5 {
			return nil
		}
		old, _ := v.prices.At(n - 5)
		if old <= 0 {
			return nil
		}
		change := (cur - old) / old
		switch {
		case change > 0.01:
			side = order.SideSell
		case change < -0.01:
			side = order.SideBuy
		default:
			return nil
		}
	case VolLow:
		side = order.SideBuy
	}

	sig := &Signal{
		Strategy:   TagVolArb,
		Symbol:     v.sym,
		Side:       side,
		Confidence: 0.5,
		Entry:      cur,
		Target:     cur * (1 + side.Sign()*v.cfg.TargetBps/1e4),
		Stop:       cur * (1 - side.Sign()*v.cfg.StopBps/1e4),
		CreatedAt:  now,
		Decay:      v.cfg.SignalDecay,
		Note:       regime.String(),
	}
	return sig
}

// ShouldExit 持仓退出判定：超过最大持有时长或状态切换。
func (v *VolRegime) ShouldExit(entry VolEntry, now time.Time) bool {
	if now.Sub(entry.EnteredAt) > time.Duration(v.cfg.MaxHoldMinutes)*time.Minute {
		return true
	}
	return v.Regime() != entry.Regime
}

// VolStats 按状态聚合的交易结果统计。
type VolStats struct {
	TradesByRegime map[VolRegimeKind]int64
	Wins           int64
	Losses         int64
	TotalPnL       float64
	totalHoldMin   float64
}

// RecordTradeResult 登记一笔平仓结果。
func (s *VolStats) RecordTradeResult(regime VolRegimeKind, pnl float64, held time.Duration) {
	if s.TradesByRegime == nil {
		s.TradesByRegime = make(map[VolRegimeKind]int64)
	}
	s.TradesByRegime[regime]++
	if pnl >= 0 {
		s.Wins++
	} else {
		s.Losses++
	}
	s.TotalPnL += pnl
	s.totalHoldMin += held.Minutes()
}

// WinRate 胜率，无交易返回 0。
func (s *VolStats) WinRate() float64 {
	total := s.Wins + s.Losses
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// AvgHoldMinutes 平均持有分钟数。
func (s *VolStats) AvgHoldMinutes() float64 {
	total := s.Wins + s.Losses
	if total == 0 {
		return 0
	}
	return s.totalHoldMin / float64(total)
}

// VolBias 隐含/实现波动率偏向。
type VolBias int

const (
	VolBiasNeutral VolBias = iota
	VolBiasOverpriced
	VolBiasUnderpriced
)

func (b VolBias) String() string {
	switch b {
	case VolBiasOverpriced:
		return "OVERPRICED"
	case VolBiasUnderpriced:
		return "UNDERPRICED"
	default:
		return "NEUTRAL"
	}
}

type volSnapshot struct {
	realized float64
	implied  float64
	at       time.Time
}

// VolSurfaceTracker 跟踪实现波动率与隐含波动率的偏离。
type VolSurfaceTracker struct {
	snaps *ring.Ring[volSnapshot]
}

// NewVolSurfaceTracker 创建波动率面跟踪器，保留最近 100 个快照。
func NewVolSurfaceTracker() *VolSurfaceTracker {
	return &VolSurfaceTracker{snaps: ring.MustNew[volSnapshot](100)}
}

// Record 登记一个 (实现, 隐含) 波动率快照。
func (t *VolSurfaceTracker) Record(realized, implied float64, at time.Time) {
	t.snaps.Push(volSnapshot{realized: realized, implied: implied, at: at})
}

// Bias 隐含相对实现的溢价超过 ±0.02 即判定偏向。
func (t *VolSurfaceTracker) Bias() VolBias {
	n := t.snaps.Len()
	if n == 0 {
		return VolBiasNeutral
	}
	var premium float64
	for i := 0; i < n; i++ {
		s, _ := t.snaps.At(i)
		premium += s.implied - s.realized
	}
	premium /= float64(n)
	switch {
	case premium > 0.02:
		return VolBiasOverpriced
	case premium < -0.02:
		return VolBiasUnderpriced
	default:
		return VolBiasNeutral
	}
}

// Count 快照数。
func (t *VolSurfaceTracker) Count() int { return t.snaps.Len() }
