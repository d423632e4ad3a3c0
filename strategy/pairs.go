package strategy

import (
	"math"
	"time"

	"trading-engine-go/internal/ring"
	"trading-engine-go/order"
	"trading-engine-go/symbol"
)

// Welford 增量均值/方差累加器，支持滑窗弹出。
type Welford struct {
	count int
	mean  float64
	m2    float64
}

// Push 加入一个样本。
func (w *Welford) Push(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
}

// Pop 移除一个历史样本（滑窗最旧值）。
func (w *Welford) Pop(x float64) {
	if w.count <= 1 {
		w.count, w.mean, w.m2 = 0, 0, 0
		return
	}
	oldMean := w.mean
	w.mean = (w.mean*float64(w.count) - x) / float64(w.count-1)
	w.m2 -= (x - oldMean) * (x - w.mean)
	if w.m2 < 0 {
		w.m2 = 0
	}
	w.count--
}

// Count 样本数。
func (w *Welford) Count() int { return w.count }

// Mean 均值。
func (w *Welford) Mean() float64 { return w.mean }

// Variance 样本方差。
func (w *Welford) Variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

// StdDev 样本标准差。
func (w *Welford) StdDev() float64 { return math.Sqrt(w.Variance()) }

// PairsConfig 配对交易参数。
type PairsConfig struct {
	Window         int     `yaml:"window"`          // 比价滑窗长度
	MinSamples     int     `yaml:"min_samples"`     // 统计生效的最小样本数
	EntryZ         float64 `yaml:"entry_z"`
	ExitZ          float64 `yaml:"exit_z"`
	StopZ          float64 `yaml:"stop_z"`
	PositionUSD    float64 `yaml:"position_usd"`    // 每腿美元名义
	MinCorrelation float64 `yaml:"min_correlation"` // Pearson 相关性门槛
}

func (c *PairsConfig) withDefaults() PairsConfig {
	out := *c
	if out.Window <= 0 {
		out.Window = 100
	}
	if out.MinSamples <= 0 {
		out.MinSamples = 20
	}
	if out.EntryZ <= 0 {
		out.EntryZ = 2.0
	}
	if out.ExitZ <= 0 {
		out.ExitZ = 0.5
	}
	if out.StopZ <= 0 {
		out.StopZ = 3.5
	}
	if out.PositionUSD <= 0 {
		out.PositionUSD = 5_000
	}
	if out.MinCorrelation <= 0 {
		out.MinCorrelation = 0.7
	}
	return out
}

// PairSignal 配对信号：两条腿必须同进同退。
type PairSignal struct {
	Kind      PairSignalKind
	Z         float64
	Leg1      Signal // s1 腿
	Leg2      Signal // s2 腿
	CreatedAt time.Time
}

// PairSignalKind 配对信号类型。
type PairSignalKind int

const (
	PairEntry PairSignalKind = iota
	PairExit
	PairStop
)

func (k PairSignalKind) String() string {
	switch k {
	case PairEntry:
		return "ENTRY"
	case PairExit:
		return "EXIT"
	case PairStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// PairsStats 配对统计。
type PairsStats struct {
	Entries  int64
	Exits    int64
	StopOuts int64
}

// PairsTrader 单一符号对的均值回归交易器。
// 协调器单 goroutine 驱动，内部不加锁。
type PairsTrader struct {
	cfg PairsConfig
	s1  symbol.ID
	s2  symbol.ID

	ratios  *ring.Ring[float64]
	wf      Welford
	prices1 *ring.Ring[float64] // 相关性低频计算的留样
	prices2 *ring.Ring[float64]

	inPosition bool
	entryZ     float64 // 进场时的 z，符号记录方向
	Stats      PairsStats
}

// NewPairsTrader 创建配对交易器。
func NewPairsTrader(s1, s2 symbol.ID, cfg PairsConfig) *PairsTrader {
	cfg = cfg.withDefaults()
	return &PairsTrader{
		cfg:     cfg,
		s1:      s1,
		s2:      s2,
		ratios:  ring.MustNew[float64](cfg.Window),
		prices1: ring.MustNew[float64](cfg.Window),
		prices2: ring.MustNew[float64](cfg.Window),
	}
}

// Update 输入一对新价格，返回至多一条配对信号。
func (p *PairsTrader) Update(p1, p2 float64, now time.Time) *PairSignal {
	if p1 <= 0 || p2 <= 0 {
		return nil
	}
	r := p1 / p2

	if p.ratios.Full() {
		oldest, _ := p.ratios.Front()
		p.wf.Pop(oldest)
	}
	p.ratios.Push(r)
	p.wf.Push(r)
	p.prices1.Push(p1)
	p.prices2.Push(p2)

	if p.wf.Count() < p.cfg.MinSamples {
		return nil
	}
	sd := p.wf.StdDev()
	if sd <= 1e-7 {
		return nil
	}
	z := (r - p.wf.Mean()) / sd

	if p.inPosition {
		return p.manageOpen(z, p1, p2, now)
	}
	if math.Abs(z) < p.cfg.EntryZ {
		return nil
	}

	// z>0：s1 相对偏贵 ⇒ 做空 s1 / 做多 s2
	side1, side2 := order.SideSell, order.SideBuy
	if z < 0 {
		side1, side2 = order.SideBuy, order.SideSell
	}
	impliedTarget := p.wf.Mean() * p2

	p.inPosition = true
	p.entryZ = z
	p.Stats.Entries++
	return &PairSignal{
		Kind:      PairEntry,
		Z:         z,
		CreatedAt: now,
		Leg1: Signal{
			Strategy:   TagPairs,
			Symbol:     p.s1,
			Side:       side1,
			Confidence: math.Min(math.Abs(z)/p.cfg.StopZ, 1),
			Entry:      p1,
			Target:     impliedTarget,
			CreatedAt:  now,
		},
		Leg2: Signal{
			Strategy:   TagPairs,
			Symbol:     p.s2,
			Side:       side2,
			Confidence: math.Min(math.Abs(z)/p.cfg.StopZ, 1),
			Entry:      p2,
			CreatedAt:  now,
		},
	}
}

func (p *PairsTrader) manageOpen(z, p1, p2 float64, now time.Time) *PairSignal {
	// 止损：z 在进场方向上继续放大
	if sameDirection(z, p.entryZ) && math.Abs(z) >= p.cfg.StopZ {
		p.inPosition = false
		p.Stats.StopOuts++
		return p.closeSignal(PairStop, z, p1, p2, now)
	}
	// 回归出场
	if math.Abs(z) <= p.cfg.ExitZ {
		p.inPosition = false
		p.Stats.Exits++
		return p.closeSignal(PairExit, z, p1, p2, now)
	}
	return nil
}

func (p *PairsTrader) closeSignal(kind PairSignalKind, z, p1, p2 float64, now time.Time) *PairSignal {
	// 平仓方向与进场相反
	side1, side2 := order.SideBuy, order.SideSell
	if p.entryZ < 0 {
		side1, side2 = order.SideSell, order.SideBuy
	}
	return &PairSignal{
		Kind:      kind,
		Z:         z,
		CreatedAt: now,
		Leg1:      Signal{Strategy: TagPairs, Symbol: p.s1, Side: side1, Entry: p1, CreatedAt: now},
		Leg2:      Signal{Strategy: TagPairs, Symbol: p.s2, Side: side2, Entry: p2, CreatedAt: now},
	}
}

// LegQuantities 美元中性腿量：qty_i = positionUSD / p_i。
func (p *PairsTrader) LegQuantities(p1, p2 float64) (q1, q2 float64) {
	if p1 <= 0 || p2 <= 0 {
		return 0, 0
	}
	return p.cfg.PositionUSD / p1, p.cfg.PositionUSD / p2
}

// Correlation 在留样上计算 Pearson 相关系数。
// 样本不足 MinSamples 时返回 (0, false)。
func (p *PairsTrader) Correlation() (float64, bool) {
	n := p.prices1.Len()
	if m := p.prices2.Len(); m < n {
		n = m
	}
	if n < p.cfg.MinSamples {
		return 0, false
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		x, _ := p.prices1.At(i)
		y, _ := p.prices2.At(i)
		sx += x
		sy += y
	}
	mx, my := sx/float64(n), sy/float64(n)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		x, _ := p.prices1.At(i)
		y, _ := p.prices2.At(i)
		dx := x - mx
		dy := y - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx <= 0 || vy <= 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// CorrelationOK 判断相关性是否达到进场门槛。
func (p *PairsTrader) CorrelationOK() bool {
	rho, ok := p.Correlation()
	return ok && rho >= p.cfg.MinCorrelation
}

// InPosition 是否持有配对仓位。
func (p *PairsTrader) InPosition() bool { return p.inPosition }

func sameDirection(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// PairKey 配对标识。
type PairKey struct {
	S1, S2 symbol.ID
}

// PairsManager 管理多个配对交易器，供协调器按 tick 驱动。
type PairsManager struct {
	cfg   PairsConfig
	pairs map[PairKey]*PairsTrader
}

// NewPairsManager 创建配对管理器。
func NewPairsManager(cfg PairsConfig) *PairsManager {
	return &PairsManager{cfg: cfg.withDefaults(), pairs: make(map[PairKey]*PairsTrader)}
}

// Pair 获取或创建 (s1, s2) 的交易器。
func (m *PairsManager) Pair(s1, s2 symbol.ID) *PairsTrader {
	key := PairKey{S1: s1, S2: s2}
	if t, ok := m.pairs[key]; ok {
		return t
	}
	t := NewPairsTrader(s1, s2, m.cfg)
	m.pairs[key] = t
	return t
}

// Update 用价格表驱动全部配对，返回产生的信号。
func (m *PairsManager) Update(prices map[symbol.ID]float64, now time.Time) []*PairSignal {
	var out []*PairSignal
	for key, t := range m.pairs {
		p1, ok1 := prices[key.S1]
		p2, ok2 := prices[key.S2]
		if !ok1 || !ok2 {
			continue
		}
		if sig := t.Update(p1, p2, now); sig != nil {
			out = append(out, sig)
		}
	}
	return out
}

// All 返回全部交易器。
func (m *PairsManager) All() map[PairKey]*PairsTrader { return m.pairs }
