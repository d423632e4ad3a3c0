package risk

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// KillSwitch 紧急停机闩锁。
// 首次触发执行全部已注册的停机回调，后续触发为空操作。
type KillSwitch struct {
	activated atomic.Bool
	clock     Clock
	log       *zap.Logger

	mu          sync.Mutex
	handlers    []func()
	reason      string
	activatedAt time.Time
}

// NewKillSwitch 创建停机开关。
func NewKillSwitch(clock Clock, log *zap.Logger) *KillSwitch {
	if clock == nil {
		clock = NowUTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KillSwitch{clock: clock, log: log}
}

// RegisterHandler 注册停机回调，按注册顺序执行。
func (k *KillSwitch) RegisterHandler(fn func()) {
	k.mu.Lock()
	k.handlers = append(k.handlers, fn)
	k.mu.Unlock()
}

// Activate 触发停机。仅首次生效；回调逐个 recover 包裹，
// 单个回调崩溃不影响其余回调执行。
func (k *KillSwitch) Activate(reason string) {
	if !k.activated.CompareAndSwap(false, true) {
		return
	}
	k.mu.Lock()
	k.reason = reason
	k.activatedAt = k.clock.Now()
	handlers := make([]func(), len(k.handlers))
	copy(handlers, k.handlers)
	k.mu.Unlock()

	k.log.Error("KILL SWITCH ACTIVATED", zap.String("reason", reason))
	for _, fn := range handlers {
		k.runHandler(fn)
	}
	k.log.Error("all shutdown handlers executed")
}

func (k *KillSwitch) runHandler(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Error("shutdown handler panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Activated 判断开关是否已触发。
func (k *KillSwitch) Activated() bool { return k.activated.Load() }

// Reason 返回触发原因。
func (k *KillSwitch) Reason() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reason
}

// ActivatedAt 返回触发时间。
func (k *KillSwitch) ActivatedAt() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.activatedAt
}

// Reset 手动复位，仅供人工干预。
func (k *KillSwitch) Reset() {
	k.activated.Store(false)
	k.mu.Lock()
	k.reason = ""
	k.mu.Unlock()
	k.log.Warn("kill switch manually reset")
}
