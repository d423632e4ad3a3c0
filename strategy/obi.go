package strategy

import (
	"math"
	"strings"
	"time"

	"trading-engine-go/internal/ring"
	"trading-engine-go/market"
	"trading-engine-go/order"
	"trading-engine-go/symbol"
)

// OBIConfig 盘口失衡策略参数。
type OBIConfig struct {
	Levels             int           `yaml:"levels"`              // 参与统计的档位数
	MinVolume          float64       `yaml:"min_volume"`          // 双边总量下限，低于则不出信号
	ImbalanceThreshold float64       `yaml:"imbalance_threshold"` // |I| 触发阈值
	TargetBps          float64       `yaml:"target_bps"`
	StopBps            float64       `yaml:"stop_bps"`
	SignalDecay        time.Duration `yaml:"signal_decay"`
	Weighted           bool          `yaml:"weighted"` // 按档位衰减加权 1/(1+level)
}

// Trend 失衡趋势方向。
type Trend int

const (
	TrendStable Trend = iota
	TrendRising
	TrendFalling
)

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "RISING"
	case TrendFalling:
		return "FALLING"
	default:
		return "STABLE"
	}
}

// OBIStrategy 基于盘口买卖量失衡生成方向信号。
// 单 goroutine 驱动（协调器 tick 回调），内部不加锁。
type OBIStrategy struct {
	cfg    OBIConfig
	sym    symbol.ID
	recent *ring.Ring[float64] // 最近失衡值，供趋势判断
	Stats  SignalStats
}

func (c OBIConfig) withDefaults() OBIConfig {
	if c.Levels <= 0 {
		c.Levels = 5
	}
	if c.ImbalanceThreshold <= 0 {
		c.ImbalanceThreshold = 0.30
	}
	if c.TargetBps <= 0 {
		c.TargetBps = 5
	}
	if c.StopBps <= 0 {
		c.StopBps = 3
	}
	if c.SignalDecay <= 0 {
		c.SignalDecay = 100 * time.Millisecond
	}
	return c
}

// NewOBIStrategy 创建 OBI 策略实例，零值参数回退默认。
func NewOBIStrategy(sym symbol.ID, cfg OBIConfig) *OBIStrategy {
	return &OBIStrategy{
		cfg:    cfg.withDefaults(),
		sym:    sym,
		recent: ring.MustNew[float64](64),
	}
}

// Retune 替换可调参数，信号统计与失衡历史保持不变。
func (s *OBIStrategy) Retune(cfg OBIConfig) {
	s.cfg = cfg.withDefaults()
}

// Imbalance 计算当前盘口失衡 I = (vb-va)/(vb+va)。
// 总量不足 MinVolume 时第二返回值为 false。
func (s *OBIStrategy) Imbalance(book *market.Book) (float64, bool) {
	bids := book.TopBids(s.cfg.Levels)
	asks := book.TopAsks(s.cfg.Levels)

	var vb, va float64
	for i, lv := range bids {
		vb += s.weight(i) * lv.Qty
	}
	for i, lv := range asks {
		va += s.weight(i) * lv.Qty
	}
	if vb+va < s.cfg.MinVolume || vb+va <= 0 {
		return 0, false
	}
	return (vb - va) / (vb + va), true
}

func (s *OBIStrategy) weight(level int) float64 {
	if !s.cfg.Weighted {
		return 1
	}
	return 1 / float64(1+level)
}

// Analyze 对一个盘口快照产出至多一条信号。
func (s *OBIStrategy) Analyze(book *market.Book, now time.Time) *Signal {
	imb, ok := s.Imbalance(book)
	if !ok {
		return nil
	}
	s.recent.Push(imb)

	if math.Abs(imb) < s.cfg.ImbalanceThreshold {
		return nil
	}
	mid := book.Mid()
	if mid <= 0 {
		return nil
	}

	side := order.SideBuy
	if imb < 0 {
		side = order.SideSell
	}
	confidence := math.Min(math.Abs(imb)/0.7, 1)

	sig := &Signal{
		Strategy:   TagOBI,
		Symbol:     s.sym,
		Side:       side,
		Confidence: confidence,
		Entry:      mid,
		Target:     mid * (1 + side.Sign()*s.cfg.TargetBps/1e4),
		Stop:       mid * (1 - side.Sign()*s.cfg.StopBps/1e4),
		CreatedAt:  now,
		Decay:      s.cfg.SignalDecay,
	}
	s.Stats.record(side)
	return sig
}

// Trend 从最近失衡序列判断方向：后半段均值相对前半段偏移超过 0.05。
func (s *OBIStrategy) Trend() Trend {
	n := s.recent.Len()
	if n < 4 {
		return TrendStable
	}
	half := n / 2
	var first, second float64
	for i := 0; i < half; i++ {
		v, _ := s.recent.At(i)
		first += v
	}
	for i := half; i < n; i++ {
		v, _ := s.recent.At(i)
		second += v
	}
	delta := second/float64(n-half) - first/float64(half)
	switch {
	case delta > 0.05:
		return TrendRising
	case delta < -0.05:
		return TrendFalling
	default:
		return TrendStable
	}
}

// AdaptiveOBIConfig 按波动率档位与符号微调给出参数。
// volBps 为已实现波动率（基点）。
func AdaptiveOBIConfig(symbolName string, volBps float64) OBIConfig {
	cfg := OBIConfig{
		Levels:      12,
		MinVolume:   3,
		SignalDecay: 100 * time.Millisecond,
	}
	switch {
	case volBps > 150: // 高波动：更敏感、更快衰减
		cfg.ImbalanceThreshold = 0.25
		cfg.TargetBps = 8
		cfg.StopBps = 5
		cfg.SignalDecay = 80 * time.Millisecond
	case volBps < 50: // 低波动：保守
		cfg.ImbalanceThreshold = 0.35
		cfg.TargetBps = 3
		cfg.StopBps = 2
		cfg.SignalDecay = 150 * time.Millisecond
	default:
		cfg.ImbalanceThreshold = 0.30
		cfg.TargetBps = 5
		cfg.StopBps = 3
	}

	switch {
	case strings.HasPrefix(symbolName, "SOL"):
		cfg.ImbalanceThreshold -= 0.03
		cfg.TargetBps += 1.0
	case strings.HasPrefix(symbolName, "BTC"), strings.HasPrefix(symbolName, "ETH"):
		cfg.ImbalanceThreshold += 0.02
		cfg.TargetBps -= 0.5
	}
	return cfg
}
