package strategy

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

// 套利拒绝原因（闭集，供统计与测试断言）。
const (
	ArbRejectSlippage  = "Slippage too high"
	ArbRejectStale     = "Orderbook too stale"
	ArbRejectNetProfit = "Net profit below threshold"
	ArbRejectSlow      = "Detection too slow"
	ArbRejectVenues    = "No distinct venue pair"
	ArbRejectInFlight  = "Too many concurrent arbs"
)

// LatArbConfig 跨所延迟套利参数。
type LatArbConfig struct {
	MinProfitBps      float64       `yaml:"min_profit_bps"`      // 基础净利阈值
	DecayRate         float64       `yaml:"decay_rate"`          // 长时间无机会后的阈值衰减系数
	DecayAfter        time.Duration `yaml:"decay_after"`         // 触发衰减的空窗时长
	MaxSlippageBps    float64       `yaml:"max_slippage_bps"`    // 双边滑点上限
	MaxStaleness      time.Duration `yaml:"max_staleness"`       // 盘口最大陈旧度
	MaxDetectionTime  time.Duration `yaml:"max_detection_time"`  // 检测耗时上限
	MaxPositionUSD    float64       `yaml:"max_position_usd"`    // 单次套利名义上限
	MaxConcurrentArbs int64         `yaml:"max_concurrent_arbs"` // 在途套利上限
	WalkLevels        int           `yaml:"walk_levels"`          // 滑点估算扫描档位数
}

func (c *LatArbConfig) withDefaults() LatArbConfig {
	out := *c
	if out.MinProfitBps <= 0 {
		out.MinProfitBps = 5
	}
	if out.DecayRate <= 0 {
		out.DecayRate = 0.7
	}
	if out.DecayAfter <= 0 {
		out.DecayAfter = time.Minute
	}
	if out.MaxSlippageBps <= 0 {
		out.MaxSlippageBps = 3
	}
	if out.MaxStaleness <= 0 {
		out.MaxStaleness = 500 * time.Millisecond
	}
	if out.MaxDetectionTime <= 0 {
		out.MaxDetectionTime = 5 * time.Millisecond
	}
	if out.MaxPositionUSD <= 0 {
		out.MaxPositionUSD = 5_000
	}
	if out.MaxConcurrentArbs <= 0 {
		out.MaxConcurrentArbs = 3
	}
	if out.WalkLevels <= 0 {
		out.WalkLevels = 20
	}
	return out
}

// ArbOpportunity 一次可执行的双腿套利机会。
type ArbOpportunity struct {
	Symbol    symbol.ID
	BuyVenue  market.Venue
	SellVenue market.Venue
	BuyPrice  float64
	SellPrice float64
	Qty       float64

	GrossBps    float64
	FeeBps      float64
	SlippageBps float64
	NetBps      float64

	DetectedAt time.Time
	Detection  time.Duration
}

// ArbStats 套利统计。
type ArbStats struct {
	Detected       atomic.Int64
	Executed       atomic.Int64
	TotalNetBps    atomic.Int64 // ×100 定点累计
	DetectionMicro atomic.Int64 // 累计检测耗时 µs

	mu       sync.Mutex
	rejected map[string]int64
}

func (s *ArbStats) reject(reason string) {
	s.mu.Lock()
	if s.rejected == nil {
		s.rejected = make(map[string]int64)
	}
	s.rejected[reason]++
	s.mu.Unlock()
}

// Rejected 返回按原因聚合的拒绝计数副本。
func (s *ArbStats) Rejected() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.rejected))
	for k, v := range s.rejected {
		out[k] = v
	}
	return out
}

// AvgDetectionMicros 平均检测耗时（µs）。
func (s *ArbStats) AvgDetectionMicros() float64 {
	n := s.Detected.Load()
	if n == 0 {
		return 0
	}
	return float64(s.DetectionMicro.Load()) / float64(n)
}

// LatencyArb 跨所全局最优价差套利检测器。
// Detect 可被多个行情 goroutine 并发调用。
type LatencyArb struct {
	cfg      LatArbConfig
	inFlight atomic.Int64
	lastHit  atomic.Int64 // 上次机会触发时刻 UnixNano，0 表示从未
	Stats    ArbStats
}

// NewLatencyArb 创建套利检测器，零值参数回退默认。
func NewLatencyArb(cfg LatArbConfig) *LatencyArb {
	return &LatencyArb{cfg: cfg.withDefaults()}
}

// Threshold 当前生效的净利阈值。超过 DecayAfter 未出现机会则按系数衰减。
func (a *LatencyArb) Threshold(now time.Time) float64 {
	last := a.lastHit.Load()
	if last == 0 {
		return a.cfg.MinProfitBps
	}
	if now.UnixNano()-last > int64(a.cfg.DecayAfter) {
		return a.cfg.MinProfitBps * a.cfg.DecayRate
	}
	return a.cfg.MinProfitBps
}

// InFlight 返回在途套利数。
func (a *LatencyArb) InFlight() int64 { return a.inFlight.Load() }

// ReleaseArb 套利双腿终结（成交或撤单）后归还额度。
func (a *LatencyArb) ReleaseArb() {
	if a.inFlight.Add(-1) < 0 {
		a.inFlight.Store(0)
	}
}

// Detect 在多所盘口上寻找套利机会。
// 返回 (nil, reason) 表示本 tick 无机会及其原因。
func (a *LatencyArb) Detect(sym symbol.ID, books map[market.Venue]*market.Book, updated map[market.Venue]time.Time, now time.Time) (*ArbOpportunity, string) {
	wall := time.Now()

	var buyVenue, sellVenue market.Venue
	bestAsk := math.Inf(1)
	bestBid := math.Inf(-1)
	for v, b := range books {
		if b == nil {
			continue
		}
		if ask := b.BestAsk(); ask > 0 && ask < bestAsk {
			bestAsk, buyVenue = ask, v
		}
		if bid := b.BestBid(); bid > bestBid {
			bestBid, sellVenue = bid, v
		}
	}
	if math.IsInf(bestAsk, 1) || math.IsInf(bestBid, -1) || buyVenue == sellVenue {
		a.Stats.reject(ArbRejectVenues)
		return nil, ArbRejectVenues
	}

	grossBps := (bestBid - bestAsk) / bestAsk * 1e4
	feeBps := buyVenue.TakerFeeBps() + sellVenue.TakerFeeBps()

	// 陈旧度：取两边较旧者
	age := now.Sub(updated[buyVenue])
	if sAge := now.Sub(updated[sellVenue]); sAge > age {
		age = sAge
	}
	if age > a.cfg.MaxStaleness {
		a.Stats.reject(ArbRejectStale)
		return nil, ArbRejectStale
	}

	// 名义先按配置上限估，滑点扫描用它
	notional := a.cfg.MaxPositionUSD
	buySlip, buyQty := a.walkSide(books[buyVenue].TopAsks(a.cfg.WalkLevels), bestAsk, notional)
	sellSlip, sellQty := a.walkSide(books[sellVenue].TopBids(a.cfg.WalkLevels), bestBid, notional)
	slipBps := buySlip + sellSlip
	if slipBps > a.cfg.MaxSlippageBps {
		a.Stats.reject(ArbRejectSlippage)
		return nil, ArbRejectSlippage
	}

	netBps := grossBps - feeBps - slipBps
	if netBps < a.Threshold(now) {
		a.Stats.reject(ArbRejectNetProfit)
		return nil, ArbRejectNetProfit
	}

	elapsed := time.Since(wall)
	if elapsed > a.cfg.MaxDetectionTime {
		a.Stats.reject(ArbRejectSlow)
		return nil, ArbRejectSlow
	}

	// 占用在途额度
	for {
		cur := a.inFlight.Load()
		if cur >= a.cfg.MaxConcurrentArbs {
			a.Stats.reject(ArbRejectInFlight)
			return nil, ArbRejectInFlight
		}
		if a.inFlight.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	qty := math.Min(buyQty, sellQty)
	if maxQty := a.cfg.MaxPositionUSD / bestAsk; qty > maxQty {
		qty = maxQty
	}

	a.lastHit.Store(now.UnixNano())
	a.Stats.Detected.Add(1)
	a.Stats.TotalNetBps.Add(int64(netBps * 100))
	a.Stats.DetectionMicro.Add(elapsed.Microseconds())

	return &ArbOpportunity{
		Symbol:      sym,
		BuyVenue:    buyVenue,
		SellVenue:   sellVenue,
		BuyPrice:    bestAsk,
		SellPrice:   bestBid,
		Qty:         qty,
		GrossBps:    grossBps,
		FeeBps:      feeBps,
		SlippageBps: slipBps,
		NetBps:      netBps,
		DetectedAt:  now,
		Detection:   elapsed,
	}, ""
}

// walkSide 沿一侧盘口扫描目标名义，返回相对最优价的 VWAP 滑点（bps）
// 与该名义内可成交数量。
func (a *LatencyArb) walkSide(levels []market.Level, best, notionalUSD float64) (slipBps, qty float64) {
	if best <= 0 || len(levels) == 0 {
		return math.Inf(1), 0
	}
	var remaining = notionalUSD
	var cost, filled float64
	for _, lv := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(lv.Qty, remaining/lv.Price)
		cost += take * lv.Price
		filled += take
		remaining -= take * lv.Price
	}
	if filled <= 0 {
		return math.Inf(1), 0
	}
	vwap := cost / filled
	return math.Abs(vwap-best) / best * 1e4, filled
}

// Staleness 每所盘口年龄的辅助视图。
func Staleness(updated map[market.Venue]time.Time, now time.Time) map[market.Venue]time.Duration {
	out := make(map[market.Venue]time.Duration, len(updated))
	for v, ts := range updated {
		out[v] = now.Sub(ts)
	}
	return out
}
