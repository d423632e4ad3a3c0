package risk

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"trading-engine-go/order"
	"trading-engine-go/symbol"
)

// Engine 风控与仓位引擎。
// 仓位表由读写锁保护；当日已实现盈亏与峰值盈亏用原子位存储，
// CAS 循环更新，预检只取读锁。
type Engine struct {
	limits Limits
	clock  Clock
	log    *zap.Logger

	breaker *Breaker
	kill    *KillSwitch

	mu        sync.RWMutex
	positions map[symbol.ID]*Position

	dailyRealizedBits atomic.Uint64
	peakBits          atomic.Uint64

	checksTotal    atomic.Int64
	checksRejected atomic.Int64
	fillsApplied   atomic.Int64
}

// NewEngine 创建风控引擎。clock 为 nil 时使用系统时钟。
func NewEngine(limits Limits, clock Clock, log *zap.Logger) (*Engine, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("risk limits: %w", err)
	}
	if clock == nil {
		clock = NowUTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		limits:    limits,
		clock:     clock,
		log:       log,
		positions: make(map[symbol.ID]*Position),
	}, nil
}

// AttachBreaker 挂接熔断器；熔断打开时预检直接拒绝。
func (e *Engine) AttachBreaker(b *Breaker) { e.breaker = b }

// AttachKillSwitch 挂接紧急停机开关；触发后所有预检拒绝。
func (e *Engine) AttachKillSwitch(k *KillSwitch) { e.kill = k }

// Halted 返回引擎是否因紧急停机而不再接单。
func (e *Engine) Halted() bool {
	return e.kill != nil && e.kill.Activated()
}

// Limits 返回当前生效的限额副本。
func (e *Engine) Limits() Limits {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

// UpdateLimits 热更新限额。校验失败时保留旧限额。
func (e *Engine) UpdateLimits(l Limits) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("risk limits: %w", err)
	}
	e.mu.Lock()
	e.limits = l
	e.mu.Unlock()
	e.log.Info("risk limits updated",
		zap.Float64("max_gross_exposure", l.MaxGrossExposure),
		zap.Float64("daily_loss_cap", l.DailyLossCap))
	return nil
}

// ---- 原子 float64 辅助 ----

func loadFloat(a *atomic.Uint64) float64 { return math.Float64frombits(a.Load()) }

func storeFloat(a *atomic.Uint64, v float64) { a.Store(math.Float64bits(v)) }

func addFloat(a *atomic.Uint64, delta float64) float64 {
	for {
		old := a.Load()
		next := math.Float64frombits(old) + delta
		if a.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// raisePeak CAS 抬升峰值，只升不降。
func raisePeak(a *atomic.Uint64, v float64) {
	for {
		old := a.Load()
		if v <= math.Float64frombits(old) {
			return
		}
		if a.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}

// CheckOrder 预下单检查，按固定顺序短路；返回是否放行与拒绝原因。
// 热路径上不产生 error，所有结果都是值。
func (e *Engine) CheckOrder(o *order.Order, refPrice float64) (bool, string) {
	e.checksTotal.Add(1)

	if e.kill != nil && e.kill.Activated() {
		return e.reject(o, ReasonKillSwitch)
	}
	if e.breaker != nil && !e.breaker.Allow() {
		return e.reject(o, ReasonCircuitOpen)
	}

	px := o.Price
	if px <= 0 {
		px = refPrice
	}
	orderNotional := o.OrigQty * px

	e.mu.RLock()
	lim := e.limits
	var sumUnrealized, gross float64
	for _, p := range e.positions {
		sumUnrealized += p.UnrealizedPnL
		gross += p.Notional
	}
	var posQty float64
	if p, ok := e.positions[o.Symbol]; ok {
		posQty = p.Qty
	}
	e.mu.RUnlock()

	total := loadFloat(&e.dailyRealizedBits) + sumUnrealized

	// 1. 当日亏损上限
	if total < -lim.DailyLossCap {
		return e.reject(o, ReasonDailyLoss)
	}
	// 2. 回撤止损：距峰值回落超过上限比例
	peak := loadFloat(&e.peakBits)
	if peak-total > lim.DailyLossCap*lim.TrailingStopFrac {
		return e.reject(o, ReasonTrailingStop)
	}
	// 3. 单笔名义上限
	if orderNotional > lim.MaxOrderNotional {
		return e.reject(o, ReasonOrderSize)
	}
	// 4. 单符号仓位名义上限（按成交后的假想仓位计）
	newQty := posQty + o.Side.Sign()*o.OrigQty
	newNotional := abs(newQty * refPrice)
	if newNotional > lim.MaxSymbolNotional {
		return e.reject(o, ReasonSymbolLimit)
	}
	// 5. 总敞口：减仓单只计名义净增量
	curNotional := abs(posQty * refPrice)
	contribution := orderNotional
	if posQty != 0 && o.Side.Sign()*posQty < 0 {
		contribution = newNotional - curNotional
		if contribution < 0 {
			contribution = 0
		}
	}
	if gross+contribution > lim.MaxGrossExposure {
		return e.reject(o, ReasonGrossExposure)
	}
	// 6. 集中度（零值关闭）
	if denom := gross + contribution; lim.ConcentrationFrac > 0 && denom > 0 {
		if newNotional/denom > lim.ConcentrationFrac {
			return e.reject(o, ReasonConcentration)
		}
	}

	return true, ""
}

func (e *Engine) reject(o *order.Order, reason string) (bool, string) {
	e.checksRejected.Add(1)
	e.log.Debug("pre-trade reject",
		zap.String("client_order_id", o.ClientOrderID),
		zap.String("strategy", o.StrategyTag),
		zap.String("reason", reason))
	return false, reason
}

// OnFill 成交入账。非法成交返回错误且不改动仓位。
// 同符号成交按到达顺序在写锁内串行应用。
func (e *Engine) OnFill(f *order.Fill) error {
	if f.Price <= 0 {
		return fmt.Errorf("fill %s: %w: %v", f.FillID, ErrBadFillPrice, f.Price)
	}
	if f.Qty <= 0 {
		return fmt.Errorf("fill %s: %w: %v", f.FillID, ErrBadFillQty, f.Qty)
	}

	s := f.SignedQty()
	var realizedDelta float64

	e.mu.Lock()
	p, ok := e.positions[f.Symbol]
	if !ok {
		p = &Position{Symbol: f.Symbol}
		e.positions[f.Symbol] = p
	}

	switch {
	case p.Flat():
		// 开新仓
		p.Qty = s
		p.AvgPrice = f.Price
		p.OpenedAt = f.ReceivedTime
		p.Fees += f.Fee

	case sameSign(p.Qty, s):
		// 同向加仓，更新加权均价
		p.AvgPrice = (p.Qty*p.AvgPrice + s*f.Price) / (p.Qty + s)
		p.Qty += s
		p.Fees += f.Fee

	default:
		// 减仓或反手：先平掉可平部分
		closed := math.Min(abs(s), abs(p.Qty))
		realizedDelta = closed*(f.Price-p.AvgPrice)*sign(p.Qty) - f.Fee
		p.RealizedPnL += realizedDelta
		p.Fees += f.Fee
		flipped := abs(s) > abs(p.Qty)
		p.Qty += s
		if flipped {
			// 反手后剩余仓位按成交价重新开仓
			p.AvgPrice = f.Price
			p.OpenedAt = f.ReceivedTime
		}
		if p.Flat() {
			p.Qty = 0
		}
	}

	p.UnrealizedPnL = p.Qty * (f.Price - p.AvgPrice)
	p.Notional = abs(p.Qty * f.Price)
	p.UpdatedAt = f.ReceivedTime

	var sumUnrealized float64
	for _, pos := range e.positions {
		sumUnrealized += pos.UnrealizedPnL
	}
	e.mu.Unlock()

	daily := loadFloat(&e.dailyRealizedBits)
	if realizedDelta != 0 {
		daily = addFloat(&e.dailyRealizedBits, realizedDelta)
	}
	raisePeak(&e.peakBits, daily+sumUnrealized)

	e.fillsApplied.Add(1)
	e.log.Debug("fill applied",
		zap.String("fill_id", f.FillID),
		zap.String("symbol", symbol.Name(f.Symbol)),
		zap.Float64("price", f.Price),
		zap.Float64("qty", s),
		zap.Float64("realized_delta", realizedDelta))
	return nil
}

// UpdateMarks 以最新标记价刷新未实现盈亏与名义仓位；缺价符号跳过。
func (e *Engine) UpdateMarks(prices map[symbol.ID]float64) {
	e.mu.Lock()
	var sumUnrealized float64
	now := e.clock.Now()
	for sym, p := range e.positions {
		px, ok := prices[sym]
		if ok && px > 0 {
			p.UnrealizedPnL = p.Qty * (px - p.AvgPrice)
			p.Notional = abs(p.Qty * px)
			p.UpdatedAt = now
		}
		sumUnrealized += p.UnrealizedPnL
	}
	e.mu.Unlock()

	raisePeak(&e.peakBits, loadFloat(&e.dailyRealizedBits)+sumUnrealized)
}

// ResetDaily 开盘重置当日计数。
func (e *Engine) ResetDaily() {
	storeFloat(&e.dailyRealizedBits, 0)
	storeFloat(&e.peakBits, 0)
	e.log.Info("daily risk counters reset")
}

// Position 返回符号仓位副本。
func (e *Engine) Position(sym symbol.ID) (Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.positions[sym]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions 返回全部仓位副本。
func (e *Engine) Positions() []Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	return out
}

// DailyRealized 返回当日已实现盈亏。
func (e *Engine) DailyRealized() float64 { return loadFloat(&e.dailyRealizedBits) }

// PeakPnL 返回当日峰值盈亏。
func (e *Engine) PeakPnL() float64 { return loadFloat(&e.peakBits) }

// TotalPnL 返回当日已实现 + 全部未实现盈亏。
func (e *Engine) TotalPnL() float64 {
	e.mu.RLock()
	var sumUnrealized float64
	for _, p := range e.positions {
		sumUnrealized += p.UnrealizedPnL
	}
	e.mu.RUnlock()
	return loadFloat(&e.dailyRealizedBits) + sumUnrealized
}

// GrossExposure 返回全仓位名义敞口之和。
func (e *Engine) GrossExposure() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var gross float64
	for _, p := range e.positions {
		gross += p.Notional
	}
	return gross
}

// NetExposure 返回带方向的净名义敞口。
func (e *Engine) NetExposure() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var net float64
	for _, p := range e.positions {
		net += p.Qty * markOf(p)
	}
	return net
}

// markOf 从名义与数量反推标记价，仓位为平时为 0。
func markOf(p *Position) float64 {
	if abs(p.Qty) < Epsilon {
		return 0
	}
	return p.Notional / abs(p.Qty)
}

// Stats 风控引擎快照。
type Stats struct {
	DailyRealized  float64 `json:"daily_realized"`
	PeakPnL        float64 `json:"peak_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
	GrossExposure  float64 `json:"gross_exposure"`
	OpenPositions  int     `json:"open_positions"`
	ChecksTotal    int64   `json:"checks_total"`
	ChecksRejected int64   `json:"checks_rejected"`
	FillsApplied   int64   `json:"fills_applied"`
}

// Snapshot 返回统计快照。
func (e *Engine) Snapshot() Stats {
	e.mu.RLock()
	var sumUnrealized, gross float64
	open := 0
	for _, p := range e.positions {
		sumUnrealized += p.UnrealizedPnL
		gross += p.Notional
		if !p.Flat() {
			open++
		}
	}
	e.mu.RUnlock()
	daily := loadFloat(&e.dailyRealizedBits)
	return Stats{
		DailyRealized:  daily,
		PeakPnL:        loadFloat(&e.peakBits),
		TotalPnL:       daily + sumUnrealized,
		GrossExposure:  gross,
		OpenPositions:  open,
		ChecksTotal:    e.checksTotal.Load(),
		ChecksRejected: e.checksRejected.Load(),
		FillsApplied:   e.fillsApplied.Load(),
	}
}

// SeedDailyRealized 测试与对账用：直接设置当日已实现盈亏。
func (e *Engine) SeedDailyRealized(v float64) { storeFloat(&e.dailyRealizedBits, v) }

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
