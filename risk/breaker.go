package risk

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State 熔断器状态
type State int32

const (
	// StateClosed 关闭状态 - 正常运行
	StateClosed State = iota
	// StateOpen 打开状态 - 熔断，拒绝所有请求
	StateOpen
	// StateHalfOpen 半开状态 - 尝试恢复
	StateHalfOpen
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // 触发熔断的连续失败次数
	SuccessThreshold int           `yaml:"success_threshold"` // 半开转关闭所需成功次数
	Timeout          time.Duration `yaml:"timeout"`           // 熔断后进入半开的等待时间
	TestPeriod       time.Duration `yaml:"test_period"`       // 半开试探期时长
}

func (c *BreakerConfig) withDefaults() BreakerConfig {
	out := *c
	if out.FailureThreshold <= 0 {
		out.FailureThreshold = 5
	}
	if out.SuccessThreshold <= 0 {
		out.SuccessThreshold = 3
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.TestPeriod <= 0 {
		out.TestPeriod = 10 * time.Second
	}
	return out
}

// Breaker 熔断器。状态迁移全部走原子操作：读方 acquire，写方 acq-rel。
type Breaker struct {
	name  string
	cfg   BreakerConfig
	clock Clock
	log   *zap.Logger

	state         atomic.Int32
	failures      atomic.Int64 // CLOSED 下连续失败计数
	successes     atomic.Int64 // HALF_OPEN 下成功计数
	lastFailureNs atomic.Int64
	halfOpenNs    atomic.Int64
}

// NewBreaker 创建熔断器，零值配置项回退到默认值。
func NewBreaker(name string, cfg BreakerConfig, clock Clock, log *zap.Logger) *Breaker {
	if clock == nil {
		clock = NowUTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{name: name, cfg: cfg.withDefaults(), clock: clock, log: log}
}

// Allow 判断是否放行请求。OPEN 超时后自动转入半开并放行试探请求。
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case StateClosed:
		return true

	case StateOpen:
		elapsed := b.clock.Now().UnixNano() - b.lastFailureNs.Load()
		if elapsed < int64(b.cfg.Timeout) {
			return false
		}
		if b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
			b.successes.Store(0)
			b.halfOpenNs.Store(b.clock.Now().UnixNano())
			b.log.Warn("circuit breaker entering HALF_OPEN", zap.String("breaker", b.name))
		}
		return true

	case StateHalfOpen:
		elapsed := b.clock.Now().UnixNano() - b.halfOpenNs.Load()
		if elapsed >= int64(b.cfg.TestPeriod) && b.successes.Load() < int64(b.cfg.SuccessThreshold) {
			// 试探期结束仍未凑够成功数，重新熔断
			b.Open("test period expired")
			return false
		}
		return true

	default:
		return false
	}
}

// RecordSuccess 记录一次成功。CLOSED 下衰减失败计数，半开下累积恢复。
func (b *Breaker) RecordSuccess() {
	switch State(b.state.Load()) {
	case StateHalfOpen:
		if b.successes.Add(1) >= int64(b.cfg.SuccessThreshold) {
			if b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
				b.failures.Store(0)
				b.successes.Store(0)
				b.log.Info("circuit breaker CLOSED (recovered)", zap.String("breaker", b.name))
			}
		}
	case StateClosed:
		for {
			cur := b.failures.Load()
			if cur <= 0 {
				return
			}
			if b.failures.CompareAndSwap(cur, cur-1) {
				return
			}
		}
	}
}

// RecordFailure 记录一次失败。半开下立即熔断，关闭下达到阈值熔断。
func (b *Breaker) RecordFailure(reason string) {
	switch State(b.state.Load()) {
	case StateHalfOpen:
		b.Open("failed during half-open: " + reason)
	case StateClosed:
		if b.failures.Add(1) >= int64(b.cfg.FailureThreshold) {
			b.Open("threshold reached: " + reason)
		}
	}
}

// Open 强制打开熔断器并记录失败时间。
func (b *Breaker) Open(reason string) {
	if State(b.state.Swap(int32(StateOpen))) != StateOpen {
		b.lastFailureNs.Store(b.clock.Now().UnixNano())
		b.log.Error("circuit breaker OPENED",
			zap.String("breaker", b.name),
			zap.String("reason", reason))
	} else {
		b.lastFailureNs.Store(b.clock.Now().UnixNano())
	}
}

// Close 手动关闭熔断器并清零计数。
func (b *Breaker) Close() {
	b.state.Store(int32(StateClosed))
	b.failures.Store(0)
	b.successes.Store(0)
	b.log.Info("circuit breaker manually CLOSED", zap.String("breaker", b.name))
}

// State 返回当前状态。
func (b *Breaker) State() State { return State(b.state.Load()) }

// IsOpen 判断是否处于打开状态。
func (b *Breaker) IsOpen() bool { return b.State() == StateOpen }

// Name 返回熔断器名称。
func (b *Breaker) Name() string { return b.name }
