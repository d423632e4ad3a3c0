package strategy

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"trading-engine-go/internal/ring"
	"trading-engine-go/market"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/symbol"
)

// NotionalPolicy 各策略单笔美元名义。
type NotionalPolicy struct {
	OBI    float64 `yaml:"obi"`
	Arb    float64 `yaml:"arb"`
	Pairs  float64 `yaml:"pairs"`
	VolArb float64 `yaml:"vol_arb"`
}

func (p *NotionalPolicy) withDefaults() NotionalPolicy {
	out := *p
	if out.OBI <= 0 {
		out.OBI = 3_000
	}
	if out.Arb <= 0 {
		out.Arb = 5_000
	}
	if out.Pairs <= 0 {
		out.Pairs = 5_000
	}
	if out.VolArb <= 0 {
		out.VolArb = 4_000
	}
	return out
}

func (p *NotionalPolicy) forTag(tag string) float64 {
	switch tag {
	case TagOBI:
		return p.OBI
	case TagArb:
		return p.Arb
	case TagPairs:
		return p.Pairs
	case TagVolArb:
		return p.VolArb
	default:
		return p.OBI
	}
}

// Tick 协调器单次决策的输入。
type Tick struct {
	Symbol   symbol.ID
	Book     *market.Book
	AllBooks map[market.Venue]*market.Book
	Updated  map[market.Venue]time.Time
	Prices   map[symbol.ID]float64
	Now      time.Time
}

// StrategyCounters 单策略的信号/审批计数。
type StrategyCounters struct {
	Signals  atomic.Int64
	Approved atomic.Int64
	Rejected atomic.Int64
}

// CounterSnapshot 计数器的只读快照。
type CounterSnapshot struct {
	Signals  int64 `json:"signals"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// Report 协调器合并报表。
type Report struct {
	Counters      map[string]CounterSnapshot `json:"counters"`
	ToxicityScore float64                    `json:"toxicity_score"`
	ToxicityTier  string                     `json:"toxicity_tier,omitempty"`
	Risk          risk.Stats                 `json:"risk"`
}

// Coordinator 把策略信号汇聚成经过风控审批的订单列表。
// 每个 tick 由单个行情 goroutine 驱动；成交回报可来自其他 goroutine。
type Coordinator struct {
	riskEng *risk.Engine
	adverse *AdverseFilter
	policy  NotionalPolicy
	log     *zap.Logger

	mu       sync.Mutex
	obi      map[symbol.ID]*OBIStrategy
	vol      map[symbol.ID]*VolRegime
	arb      *LatencyArb
	pairs    *PairsManager
	autotune map[symbol.ID]*obiAutoTune

	seq      atomic.Uint64
	counters map[string]*StrategyCounters

	// OnSignal 每产出一条信号回调一次，Start 前设置。
	OnSignal func(strategy string)
}

// NewCoordinator 创建协调器。adverse 可为 nil（不启用毒性过滤）。
func NewCoordinator(riskEng *risk.Engine, adverse *AdverseFilter, policy NotionalPolicy, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		riskEng:  riskEng,
		adverse:  adverse,
		policy:   policy.withDefaults(),
		log:      log,
		obi:      make(map[symbol.ID]*OBIStrategy),
		vol:      make(map[symbol.ID]*VolRegime),
		autotune: make(map[symbol.ID]*obiAutoTune),
		counters: make(map[string]*StrategyCounters),
	}
	for _, tag := range []string{TagOBI, TagArb, TagPairs, TagVolArb} {
		c.counters[tag] = &StrategyCounters{}
	}
	return c
}

// EnableOBI 为符号挂载 OBI 策略。
func (c *Coordinator) EnableOBI(sym symbol.ID, cfg OBIConfig) *OBIStrategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := NewOBIStrategy(sym, cfg)
	c.obi[sym] = s
	return s
}

// obiRetuneTicks 自适应 OBI 的重调参周期（tick 数）。
const obiRetuneTicks = 512

// obiAutoTune 收集中间价并按已实现波动率周期性重调 OBI 参数。
type obiAutoTune struct {
	name    string
	prices  *ring.Ring[float64]
	ticks   int
	scratch []float64
}

// EnableAdaptiveOBI 为符号挂载自适应 OBI 策略：
// 以中档波动参数起步，每 obiRetuneTicks 个 tick 按已实现波动率重调。
func (c *Coordinator) EnableAdaptiveOBI(sym symbol.ID, name string) *OBIStrategy {
	s := c.EnableOBI(sym, AdaptiveOBIConfig(name, 100))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autotune[sym] = &obiAutoTune{
		name:    name,
		prices:  ring.MustNew[float64](256),
		scratch: make([]float64, 0, 256),
	}
	return s
}

// EnableVol 为符号挂载波动率策略。
func (c *Coordinator) EnableVol(sym symbol.ID, cfg VolConfig) *VolRegime {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := NewVolRegime(sym, cfg)
	c.vol[sym] = v
	return v
}

// EnableArb 挂载跨所套利。
func (c *Coordinator) EnableArb(cfg LatArbConfig) *LatencyArb {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arb = NewLatencyArb(cfg)
	return c.arb
}

// EnablePairs 挂载配对交易并注册一个符号对。
func (c *Coordinator) EnablePairs(cfg PairsConfig, s1, s2 symbol.ID) *PairsTrader {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pairs == nil {
		c.pairs = NewPairsManager(cfg)
	}
	return c.pairs.Pair(s1, s2)
}

// OnTick 跑一轮决策，返回通过风控的订单。
func (c *Coordinator) OnTick(tick Tick) []*order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	var approved []*order.Order

	// 自适应 OBI：攒够样本后按已实现波动率重调参数
	if a, ok := c.autotune[tick.Symbol]; ok && tick.Book != nil {
		if mid := tick.Book.Mid(); mid > 0 {
			a.prices.Push(mid)
			a.ticks++
			if a.ticks%obiRetuneTicks == 0 {
				a.scratch = a.scratch[:0]
				a.prices.Do(func(v float64) { a.scratch = append(a.scratch, v) })
				if vol := RealizedVolBps(a.scratch, true); vol > 0 {
					if s, ok := c.obi[tick.Symbol]; ok {
						s.Retune(AdaptiveOBIConfig(a.name, vol))
						c.log.Info("OBI retuned",
							zap.String("symbol", a.name),
							zap.Float64("vol_bps", vol))
					}
				}
			}
		}
	}

	// OBI：单腿
	if s, ok := c.obi[tick.Symbol]; ok && tick.Book != nil {
		if sig := s.Analyze(tick.Book, tick.Now); sig != nil {
			c.markSignal(TagOBI)
			if !sig.Expired(tick.Now) {
				if o := c.approveSingle(sig, tick.Now); o != nil {
					approved = append(approved, o)
				}
			} else {
				s.Stats.Expired.Add(1)
			}
		}
	}

	// 波动率：单腿，价格来自本 tick 的盘口中价
	if v, ok := c.vol[tick.Symbol]; ok && tick.Book != nil {
		if mid := tick.Book.Mid(); mid > 0 {
			v.AddPrice(mid)
		}
		if sig := v.Analyze(tick.Now); sig != nil && !sig.Expired(tick.Now) {
			c.markSignal(TagVolArb)
			if o := c.approveSingle(sig, tick.Now); o != nil {
				approved = append(approved, o)
			}
		}
	}

	// 套利：双腿全过或全弃
	if c.arb != nil && len(tick.AllBooks) > 1 {
		if opp, _ := c.arb.Detect(tick.Symbol, tick.AllBooks, tick.Updated, tick.Now); opp != nil {
			c.markSignal(TagArb)
			legs := c.arbLegs(opp, tick.Now)
			if all := c.approveAll(legs, TagArb); all != nil {
				approved = append(approved, all...)
			} else {
				c.arb.ReleaseArb()
			}
		}
	}

	// 配对：双腿全过或全弃
	if c.pairs != nil && len(tick.Prices) > 0 {
		for _, ps := range c.pairs.Update(tick.Prices, tick.Now) {
			c.markSignal(TagPairs)
			legs := c.pairLegs(ps, tick.Now)
			if all := c.approveAll(legs, TagPairs); all != nil {
				approved = append(approved, all...)
			}
		}
	}

	// HIGH 毒性下撤掉做市类候选
	if c.adverse != nil && c.adverse.Tier(tick.Now) == ToxicityHigh {
		kept := approved[:0]
		for _, o := range approved {
			if o.StrategyTag == TagMM {
				c.log.Warn("dropping MM candidate under HIGH toxicity",
					zap.String("client_order_id", o.ClientOrderID))
				order.ReleaseOrder(o)
				continue
			}
			kept = append(kept, o)
		}
		approved = kept
	}

	return approved
}

func (c *Coordinator) markSignal(tag string) {
	c.counters[tag].Signals.Add(1)
	if c.OnSignal != nil {
		c.OnSignal(tag)
	}
}

// approveSingle 将单腿信号转订单并过风控。
func (c *Coordinator) approveSingle(sig *Signal, now time.Time) *order.Order {
	o := c.orderFromSignal(sig, now)
	ok, reason := c.riskEng.CheckOrder(o, sig.Entry)
	if !ok {
		c.counters[sig.Strategy].Rejected.Add(1)
		c.log.Debug("candidate rejected",
			zap.String("strategy", sig.Strategy),
			zap.String("reason", reason))
		order.ReleaseOrder(o)
		return nil
	}
	c.counters[sig.Strategy].Approved.Add(1)
	return o
}

// approveAll 多腿候选：任何一腿被拒则整体放弃。
func (c *Coordinator) approveAll(legs []*order.Order, tag string) []*order.Order {
	for _, o := range legs {
		if ok, reason := c.riskEng.CheckOrder(o, o.Price); !ok {
			c.counters[tag].Rejected.Add(1)
			c.log.Debug("multi-leg candidate dropped",
				zap.String("strategy", tag),
				zap.String("reason", reason))
			for _, leg := range legs {
				order.ReleaseOrder(leg)
			}
			return nil
		}
	}
	c.counters[tag].Approved.Add(int64(len(legs)))
	return legs
}

// minFillsForSizing 名义缩放前要求的最少已测量成交数。
const minFillsForSizing = 10

// sizeNotional 基础名义先按近期逆向选择表现缩放，再用信号几何的凯利比例封顶。
func (c *Coordinator) sizeNotional(sig *Signal, now time.Time) float64 {
	notional := c.policy.forTag(sig.Strategy)
	if c.adverse != nil {
		if analyzed, _ := c.adverse.AnalyzedCounts(); analyzed >= minFillsForSizing {
			notional = PerformanceAdjustedNotional(notional, 1-c.adverse.ToxicityScore(now))
		}
	}
	if riskPerUnit := math.Abs(sig.Entry - sig.Stop); riskPerUnit > 0 && sig.Confidence > 0 {
		payoff := math.Abs(sig.Target-sig.Entry) / riskPerUnit
		if k := KellyFraction(sig.Confidence, payoff); k > 0 {
			if lim := k * c.riskEng.Limits().MaxGrossExposure; lim < notional {
				notional = lim
			}
		}
	}
	return notional
}

func (c *Coordinator) orderFromSignal(sig *Signal, now time.Time) *order.Order {
	notional := c.sizeNotional(sig, now)
	qty := 0.0
	if sig.Entry > 0 {
		qty = notional / sig.Entry
	}
	o := order.AcquireOrder()
	o.ClientOrderID = c.nextID(sig.Strategy)
	o.Symbol = sig.Symbol
	o.Side = sig.Side
	o.Type = order.TypeLimit
	o.Price = sig.Entry
	o.OrigQty = qty
	o.RemainingQty = qty
	o.Status = order.StatusPending
	o.StrategyTag = sig.Strategy
	o.RiskNotional = notional
	o.CreatedAt = now
	return o
}

func (c *Coordinator) arbLegs(opp *ArbOpportunity, now time.Time) []*order.Order {
	mk := func(venue market.Venue, side order.Side, price float64) *order.Order {
		o := order.AcquireOrder()
		o.ClientOrderID = c.nextID(TagArb)
		o.Symbol = opp.Symbol
		o.Venue = venue
		o.Side = side
		o.Type = order.TypeLimitIOC
		o.Price = price
		o.OrigQty = opp.Qty
		o.RemainingQty = opp.Qty
		o.Status = order.StatusPending
		o.StrategyTag = TagArb
		o.RiskNotional = opp.Qty * price
		o.CreatedAt = now
		return o
	}
	return []*order.Order{
		mk(opp.BuyVenue, order.SideBuy, opp.BuyPrice),
		mk(opp.SellVenue, order.SideSell, opp.SellPrice),
	}
}

func (c *Coordinator) pairLegs(ps *PairSignal, now time.Time) []*order.Order {
	notional := c.policy.Pairs
	mk := func(sig Signal) *order.Order {
		qty := 0.0
		if sig.Entry > 0 {
			qty = notional / sig.Entry
		}
		o := order.AcquireOrder()
		o.ClientOrderID = c.nextID(TagPairs)
		o.Symbol = sig.Symbol
		o.Side = sig.Side
		o.Type = order.TypeLimit
		o.Price = sig.Entry
		o.OrigQty = qty
		o.RemainingQty = qty
		o.Status = order.StatusPending
		o.StrategyTag = TagPairs
		o.RiskNotional = notional
		o.CreatedAt = now
		return o
	}
	return []*order.Order{mk(ps.Leg1), mk(ps.Leg2)}
}

func (c *Coordinator) nextID(tag string) string {
	return fmt.Sprintf("%s-%d", tag, c.seq.Add(1))
}

// OnFill 成交回报入口：先风控记账，再喂给毒性过滤器。
func (c *Coordinator) OnFill(f *order.Fill) error {
	if err := c.riskEng.OnFill(f); err != nil {
		return err
	}
	if c.adverse != nil {
		c.adverse.RecordFill(f.Side, f.Price, f.ReceivedTime)
	}
	return nil
}

// OnPrice 行情价更新：驱动毒性测量窗口与风控标记价。
func (c *Coordinator) OnPrice(sym symbol.ID, price float64, now time.Time) {
	if c.adverse != nil {
		c.adverse.UpdateCurrentPrice(price, now)
	}
	c.riskEng.UpdateMarks(map[symbol.ID]float64{sym: price})
}

// BuildReport 汇总各策略与风控状态。
func (c *Coordinator) BuildReport(now time.Time) Report {
	rep := Report{
		Counters: make(map[string]CounterSnapshot, len(c.counters)),
		Risk:     c.riskEng.Snapshot(),
	}
	for tag, ctr := range c.counters {
		rep.Counters[tag] = CounterSnapshot{
			Signals:  ctr.Signals.Load(),
			Approved: ctr.Approved.Load(),
			Rejected: ctr.Rejected.Load(),
		}
	}
	if c.adverse != nil {
		rep.ToxicityScore = c.adverse.ToxicityScore(now)
		rep.ToxicityTier = c.adverse.Tier(now).String()
	}
	return rep
}
