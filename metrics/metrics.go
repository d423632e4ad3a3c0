// Package metrics 提供交易引擎的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus 指标收集器，持有独立 registry。
type Monitor struct {
	registry *prometheus.Registry

	// 信号与决策指标
	signalsGenerated *prometheus.CounterVec
	ordersApproved   *prometheus.CounterVec
	ordersRejected   *prometheus.CounterVec
	tickLatency      prometheus.Histogram

	// 成交与仓位指标
	fillsTotal    *prometheus.CounterVec
	position      *prometheus.GaugeVec
	grossExposure prometheus.Gauge
	dailyPnL      prometheus.Gauge

	// 风控指标
	breakerState  prometheus.Gauge
	killSwitch    prometheus.Gauge
	toxicityScore prometheus.Gauge

	// 行情接入指标
	feedReconnects prometheus.Counter
	feedMessages   prometheus.Counter
	bookUpdates    *prometheus.CounterVec
}

// Config 指标命名配置。
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Namespace: "engine",
		Subsystem: "trading",
	}
}

// New 创建新的 Monitor 实例。
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		signalsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "signals_generated_total",
			Help:      "策略信号总数",
		}, []string{"strategy"}),
		ordersApproved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_approved_total",
			Help:      "通过风控的订单总数",
		}, []string{"strategy"}),
		ordersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_rejected_total",
			Help:      "被风控拒绝的订单总数",
		}, []string{"strategy"}),
		tickLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tick_latency_seconds",
			Help:      "单次 tick 决策耗时分布（秒）",
			Buckets:   []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005},
		}),

		fillsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "成交笔数总数",
		}, []string{"symbol", "side"}),
		position: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position_qty",
			Help:      "按符号的净持仓数量",
		}, []string{"symbol"}),
		grossExposure: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "gross_exposure_usd",
			Help:      "总敞口（美元）",
		}),
		dailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "daily_pnl_usd",
			Help:      "当日已实现+未实现盈亏",
		}),

		breakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "breaker_state",
			Help:      "熔断器状态：0=CLOSED 1=OPEN 2=HALF_OPEN",
		}),
		killSwitch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "kill_switch_active",
			Help:      "紧急停止开关：0=正常 1=触发",
		}),
		toxicityScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "flow_toxicity_score",
			Help:      "订单流毒性评分 [0,1]",
		}),

		feedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_reconnects_total",
			Help:      "行情连接重连次数",
		}),
		feedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_messages_total",
			Help:      "行情消息总数",
		}),
		bookUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "book_updates_total",
			Help:      "订单簿更新次数",
		}, []string{"symbol"}),
	}
	return m
}

// RecordSignal 记录一次策略信号。
func (m *Monitor) RecordSignal(strategy string) {
	m.signalsGenerated.WithLabelValues(strategy).Inc()
}

// RecordApproval 记录一次风控放行。
func (m *Monitor) RecordApproval(strategy string) {
	m.ordersApproved.WithLabelValues(strategy).Inc()
}

// RecordRejection 记录一次风控拒绝。
func (m *Monitor) RecordRejection(strategy string) {
	m.ordersRejected.WithLabelValues(strategy).Inc()
}

// ObserveTickLatency 记录一次 tick 决策耗时。
func (m *Monitor) ObserveTickLatency(d time.Duration) {
	m.tickLatency.Observe(d.Seconds())
}

// RecordFill 记录一笔成交。
func (m *Monitor) RecordFill(symbol, side string) {
	m.fillsTotal.WithLabelValues(symbol, side).Inc()
}

// SetPosition 更新符号净持仓。
func (m *Monitor) SetPosition(symbol string, qty float64) {
	m.position.WithLabelValues(symbol).Set(qty)
}

// SetExposure 更新总敞口与当日盈亏。
func (m *Monitor) SetExposure(grossUSD, dailyPnL float64) {
	m.grossExposure.Set(grossUSD)
	m.dailyPnL.Set(dailyPnL)
}

// SetBreakerState 更新熔断器状态。
func (m *Monitor) SetBreakerState(state int) {
	m.breakerState.Set(float64(state))
}

// SetKillSwitch 更新紧急停止状态。
func (m *Monitor) SetKillSwitch(active bool) {
	if active {
		m.killSwitch.Set(1)
	} else {
		m.killSwitch.Set(0)
	}
}

// SetToxicity 更新毒性评分。
func (m *Monitor) SetToxicity(score float64) {
	m.toxicityScore.Set(score)
}

// RecordFeedReconnect 记录一次行情重连。
func (m *Monitor) RecordFeedReconnect() {
	m.feedReconnects.Inc()
}

// RecordFeedMessage 记录一条行情消息。
func (m *Monitor) RecordFeedMessage(symbol string) {
	m.feedMessages.Inc()
	m.bookUpdates.WithLabelValues(symbol).Inc()
}

// Handler 返回该 registry 的 HTTP 暴露端点。
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry，便于挂接额外 collector。
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Serve 在 addr 上启动指标服务器，阻塞直到服务退出。
func (m *Monitor) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
