// Package engine 把行情、策略、风控与监控装配成一个可启停的决策引擎。
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"trading-engine-go/infrastructure/alert"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/market"
	"trading-engine-go/metrics"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
	"trading-engine-go/symbol"
)

// State 引擎状态。
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// OrderSink 消费通过风控的订单。
type OrderSink interface {
	Submit(ctx context.Context, o *order.Order) error
}

// LogSink 把订单写进日志，作为执行网关缺席时的默认出口。
type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Submit(_ context.Context, o *order.Order) error {
	s.Log.LogOrder("submit", o.ClientOrderID, fmt.Sprintf("%d", o.Symbol),
		zap.String("side", o.Side.String()),
		zap.String("strategy", o.StrategyTag),
		zap.Float64("price", o.Price),
		zap.Float64("qty", o.OrigQty),
	)
	return nil
}

// Config 引擎运行参数。
type Config struct {
	TickInterval    time.Duration // 决策循环间隔
	CleanupInterval time.Duration // 日切检查与订单清理间隔
	OrderRetention  time.Duration // 终态订单保留时长
	PrimaryVenue    market.Venue  // 单腿策略使用的主场所
	Shock1mFrac     float64       // 1 分钟价格冲击阈值，零关闭
	Shock5mFrac     float64       // 5 分钟价格冲击阈值，零关闭
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.OrderRetention <= 0 {
		c.OrderRetention = time.Hour
	}
	return c
}

// Components 引擎依赖组件。
type Components struct {
	Registry    *symbol.Registry
	Tracker     *market.Tracker
	Risk        *risk.Engine
	Breaker     *risk.Breaker
	Kill        *risk.KillSwitch
	Errors      *risk.ErrorRateTracker
	Coordinator *strategy.Coordinator
	Adverse     *strategy.AdverseFilter
	Orders      *order.Tracker
	Guard       risk.Guard
	Monitor     *metrics.Monitor
	Alerts      *alert.Manager
	Logger      *logger.Logger
	Sink        OrderSink
}

func validateComponents(c Components) error {
	switch {
	case c.Registry == nil:
		return fmt.Errorf("registry is required")
	case c.Tracker == nil:
		return fmt.Errorf("tracker is required")
	case c.Risk == nil:
		return fmt.Errorf("risk engine is required")
	case c.Coordinator == nil:
		return fmt.Errorf("coordinator is required")
	case c.Logger == nil:
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Statistics 引擎运行统计。
type Statistics struct {
	StartTime   time.Time
	TotalTicks  atomic.Int64
	TotalOrders atomic.Int64
	TotalErrors atomic.Int64
}

// Engine 决策引擎：按固定节奏驱动协调器并分发订单。
type Engine struct {
	cfg   Config
	comps Components

	mu      sync.Mutex
	state   State
	symbols []symbol.ID
	lastDay int // UTC 日序号，用于日切

	// 价格冲击检测器按符号惰性创建，仅决策 goroutine 访问
	shocks map[symbol.ID]*risk.ShockGuard

	stopChan chan struct{}
	doneChan chan struct{}

	stats Statistics
}

// New 创建引擎。
func New(cfg Config, comps Components) (*Engine, error) {
	if err := validateComponents(comps); err != nil {
		return nil, fmt.Errorf("engine components: %w", err)
	}
	if comps.Sink == nil {
		comps.Sink = LogSink{Log: comps.Logger}
	}
	e := &Engine{
		cfg:      cfg.withDefaults(),
		comps:    comps,
		state:    StateIdle,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		shocks:   make(map[symbol.ID]*risk.ShockGuard),
	}
	if comps.Kill != nil {
		comps.Kill.RegisterHandler(e.onKillSwitch)
	}
	return e, nil
}

// Track 注册引擎要驱动的符号。Start 之后调用同样生效，从下一个 tick 起驱动。
func (e *Engine) Track(syms ...symbol.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols = append(e.symbols, syms...)
}

// State 返回当前状态。
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats 返回统计信息。
func (e *Engine) Stats() *Statistics { return &e.stats }

// Components 返回装配的依赖组件，供外层接线（行情、运维端点）。
func (e *Engine) Components() Components { return e.comps }

// Start 启动主循环。
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	if e.state == StateStopped {
		e.stopChan = make(chan struct{})
		e.doneChan = make(chan struct{})
	}
	e.state = StateRunning
	e.stats.StartTime = time.Now()
	e.lastDay = utcDay(time.Now())
	syms := len(e.symbols)
	e.mu.Unlock()

	e.comps.Logger.Info("engine starting",
		zap.Int("symbols", syms),
		zap.Duration("tick_interval", e.cfg.TickInterval),
		zap.String("primary_venue", e.cfg.PrimaryVenue.String()))

	go e.run(ctx)
	return nil
}

// Stop 停止主循环并等待退出。
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}
	select {
	case <-e.doneChan:
	case <-time.After(10 * time.Second):
		e.comps.Logger.Warn("timeout waiting for engine loop to stop")
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()
	e.comps.Logger.Info("engine stopped")
	return nil
}

// OnFill 转发成交回报给协调器，并维护订单状态、熔断与错误率。
func (e *Engine) OnFill(f *order.Fill) error {
	if e.comps.Orders != nil && f.ClientOrderID != "" {
		if err := e.comps.Orders.Apply(f.ClientOrderID, func(o *order.Order) {
			o.ApplyFillQty(f.Qty)
			if o.RemainingQty <= 0 {
				o.Status = order.StatusFilled
				if o.CompletedAt.IsZero() {
					o.CompletedAt = f.ReceivedTime
					if o.CompletedAt.IsZero() {
						o.CompletedAt = time.Now()
					}
				}
			} else {
				o.Status = order.StatusPartial
			}
		}); err != nil {
			e.comps.Logger.Warn("fill for untracked order",
				zap.String("client_order_id", f.ClientOrderID),
				zap.Error(err))
		}
	}
	err := e.comps.Coordinator.OnFill(f)
	if err != nil {
		e.stats.TotalErrors.Add(1)
		if e.comps.Errors != nil {
			e.comps.Errors.RecordError()
		}
		if e.comps.Breaker != nil {
			e.comps.Breaker.RecordFailure(err.Error())
		}
		return err
	}
	if e.comps.Breaker != nil {
		e.comps.Breaker.RecordSuccess()
	}
	if e.comps.Monitor != nil {
		e.comps.Monitor.RecordFill(e.comps.Registry.Name(f.Symbol), f.Side.String())
	}
	return nil
}

// BuildReport 透传协调器报表。
func (e *Engine) BuildReport(now time.Time) strategy.Report {
	return e.comps.Coordinator.BuildReport(now)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(e.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.onTick(ctx)
		case <-cleanup.C:
			e.maybeRollDay(time.Now().UTC())
			if e.comps.Orders != nil {
				if n := e.comps.Orders.CleanupCompleted(e.cfg.OrderRetention); n > 0 {
					e.comps.Logger.Debug("completed orders cleaned", zap.Int("removed", n))
				}
			}
		}
	}
}

func (e *Engine) onTick(ctx context.Context) {
	now := time.Now().UTC()
	start := time.Now()
	e.stats.TotalTicks.Add(1)

	e.mu.Lock()
	syms := e.symbols
	e.mu.Unlock()

	// 先收集全部符号的中间价，配对策略需要同一快照
	prices := make(map[symbol.ID]float64, len(syms))
	for _, sym := range syms {
		if mid := e.comps.Tracker.Mid(sym, e.cfg.PrimaryVenue); mid > 0 {
			prices[sym] = mid
		}
	}

	for _, sym := range syms {
		books, updated := e.comps.Tracker.Books(sym)
		if books == nil {
			continue
		}
		if mid, ok := prices[sym]; ok {
			e.comps.Coordinator.OnPrice(sym, mid, now)
			e.checkShock(sym, mid, now)
		}
		orders := e.comps.Coordinator.OnTick(strategy.Tick{
			Symbol:   sym,
			Book:     books[e.cfg.PrimaryVenue],
			AllBooks: books,
			Updated:  updated,
			Prices:   prices,
			Now:      now,
		})
		for _, o := range orders {
			e.dispatch(ctx, o)
		}
	}

	e.publishGauges(now)
	if e.comps.Monitor != nil {
		e.comps.Monitor.ObserveTickLatency(time.Since(start))
	}

	// 错误率超阈直接拉闸
	if e.comps.Errors != nil && e.comps.Kill != nil && e.comps.Errors.ThresholdExceeded() {
		e.comps.Kill.Activate("error rate threshold exceeded")
	}
}

// checkShock 把中间价喂给该符号的价格冲击检测器，触发即拉闸。
func (e *Engine) checkShock(sym symbol.ID, mid float64, now time.Time) {
	if e.comps.Kill == nil || (e.cfg.Shock1mFrac <= 0 && e.cfg.Shock5mFrac <= 0) {
		return
	}
	g, ok := e.shocks[sym]
	if !ok {
		g = risk.NewShockGuard(e.cfg.Shock1mFrac, e.cfg.Shock5mFrac)
		e.shocks[sym] = g
	}
	if trip, reason := g.OnPrice(risk.PriceTick{Price: mid, Ts: now}); trip {
		e.comps.Kill.Activate(fmt.Sprintf("price shock on %s: %s", e.comps.Registry.Name(sym), reason))
	}
}

func (e *Engine) dispatch(ctx context.Context, o *order.Order) {
	e.stats.TotalOrders.Add(1)
	if e.comps.Guard != nil {
		if err := e.comps.Guard.PreOrder(o); err != nil {
			if e.comps.Monitor != nil {
				e.comps.Monitor.RecordRejection(o.StrategyTag)
			}
			e.comps.Logger.Warn("order blocked by guard",
				zap.String("client_order_id", o.ClientOrderID),
				zap.String("strategy", o.StrategyTag),
				zap.Error(err))
			order.ReleaseOrder(o)
			return
		}
	}
	if e.comps.Monitor != nil {
		e.comps.Monitor.RecordApproval(o.StrategyTag)
	}
	o.SentAt = time.Now()
	if e.comps.Orders != nil {
		if err := e.comps.Orders.Track(o); err != nil {
			e.comps.Logger.Warn("order not tracked",
				zap.String("client_order_id", o.ClientOrderID),
				zap.Error(err))
		}
	}
	if err := e.comps.Sink.Submit(ctx, o); err != nil {
		e.stats.TotalErrors.Add(1)
		if e.comps.Errors != nil {
			e.comps.Errors.RecordError()
		}
		if e.comps.Breaker != nil {
			e.comps.Breaker.RecordFailure(err.Error())
		}
		if e.comps.Orders != nil {
			_ = e.comps.Orders.Apply(o.ClientOrderID, func(ord *order.Order) {
				ord.LastError = err.Error()
			})
			_ = e.comps.Orders.UpdateStatus(o.ClientOrderID, order.StatusRejected)
		}
		e.comps.Logger.Error("order submit failed",
			zap.String("client_order_id", o.ClientOrderID),
			zap.Error(err))
		return
	}
	if e.comps.Orders != nil {
		_ = e.comps.Orders.UpdateStatus(o.ClientOrderID, order.StatusNew)
	}
	if e.comps.Breaker != nil {
		e.comps.Breaker.RecordSuccess()
	}
}

func (e *Engine) publishGauges(now time.Time) {
	if e.comps.Monitor == nil {
		return
	}
	snap := e.comps.Risk.Snapshot()
	e.comps.Monitor.SetExposure(snap.GrossExposure, snap.DailyRealized)
	for _, p := range e.comps.Risk.Positions() {
		e.comps.Monitor.SetPosition(e.comps.Registry.Name(p.Symbol), p.Qty)
	}
	if e.comps.Breaker != nil {
		e.comps.Monitor.SetBreakerState(int(e.comps.Breaker.State()))
	}
	if e.comps.Kill != nil {
		e.comps.Monitor.SetKillSwitch(e.comps.Kill.Activated())
	}
	if e.comps.Adverse != nil {
		e.comps.Monitor.SetToxicity(e.comps.Adverse.ToxicityScore(now))
	}
}

// maybeRollDay 跨 UTC 日时重置当日风控累计。
func (e *Engine) maybeRollDay(now time.Time) {
	day := utcDay(now)
	e.mu.Lock()
	rolled := day != e.lastDay
	if rolled {
		e.lastDay = day
	}
	e.mu.Unlock()
	if rolled {
		e.comps.Risk.ResetDaily()
		if e.comps.Errors != nil {
			e.comps.Errors.Clear()
		}
		e.comps.Logger.Info("daily risk counters reset")
	}
}

func (e *Engine) onKillSwitch() {
	e.comps.Logger.Error("kill switch activated, trading halted")
	if e.comps.Alerts != nil {
		_ = e.comps.Alerts.SendCritical("kill switch activated", map[string]interface{}{
			"reason": e.comps.Kill.Reason(),
		})
	}
	if e.comps.Monitor != nil {
		e.comps.Monitor.SetKillSwitch(true)
	}
}

func utcDay(t time.Time) int {
	return t.UTC().Year()*1000 + t.UTC().YearDay()
}
