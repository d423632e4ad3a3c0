package risk

import (
	"sync"
	"time"
)

// ErrorRateConfig 错误率追踪配置。
type ErrorRateConfig struct {
	Window    time.Duration `yaml:"window"`    // 统计时间窗
	Threshold int           `yaml:"threshold"` // 窗口内最大错误数
}

// ErrorRateTracker 滑动窗口错误计数，供熔断决策消费。
type ErrorRateTracker struct {
	cfg   ErrorRateConfig
	clock Clock

	mu     sync.Mutex
	events []time.Time
}

// NewErrorRateTracker 创建错误率追踪器，零值配置回退默认 60s/10 次。
func NewErrorRateTracker(cfg ErrorRateConfig, clock Clock) *ErrorRateTracker {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if clock == nil {
		clock = NowUTC
	}
	return &ErrorRateTracker{cfg: cfg, clock: clock}
}

// RecordError 记录一次错误并逐出窗口外的旧事件。
func (t *ErrorRateTracker) RecordError() {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)
	t.events = append(t.events, now)
}

func (t *ErrorRateTracker) evictLocked(now time.Time) {
	cutoff := now.Add(-t.cfg.Window)
	i := 0
	for i < len(t.events) && !t.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

// ThresholdExceeded 判断窗口内错误数是否达到阈值。
func (t *ErrorRateTracker) ThresholdExceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(t.clock.Now())
	return len(t.events) >= t.cfg.Threshold
}

// Count 返回窗口内错误数。
func (t *ErrorRateTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(t.clock.Now())
	return len(t.events)
}

// Clear 清空全部事件。
func (t *ErrorRateTracker) Clear() {
	t.mu.Lock()
	t.events = t.events[:0]
	t.mu.Unlock()
}
