package risk

import (
	"strings"
	"testing"
	"time"
)

func TestShockGuardStablePrices(t *testing.T) {
	g := NewShockGuard(0.01, 0.02)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if trip, _ := g.OnPrice(PriceTick{Price: 100, Ts: now.Add(time.Duration(i) * 10 * time.Second)}); trip {
			t.Fatal("stable prices must not trip")
		}
	}
}

func TestShockGuardOneMinuteJump(t *testing.T) {
	g := NewShockGuard(0.01, 0.02)
	now := time.Now()
	g.OnPrice(PriceTick{Price: 100, Ts: now})
	trip, reason := g.OnPrice(PriceTick{Price: 102, Ts: now.Add(30 * time.Second)})
	if !trip {
		t.Fatal("2% jump in 30s must trip")
	}
	if !strings.HasPrefix(reason, "1m") {
		t.Fatalf("reason = %q, want 1m window", reason)
	}
}

func TestShockGuardFiveMinuteDrift(t *testing.T) {
	g := NewShockGuard(0.10, 0.02)
	now := time.Now()
	// 缓慢下跌：每分钟 -0.6%，1m 窗口不触发，5m 累计超过 2%
	price := 100.0
	var trip bool
	var reason string
	for i := 0; i <= 5; i++ {
		trip, reason = g.OnPrice(PriceTick{Price: price, Ts: now.Add(time.Duration(i) * time.Minute)})
		price *= 0.994
	}
	if !trip {
		t.Fatal("cumulative 5m drift must trip")
	}
	if !strings.HasPrefix(reason, "5m") {
		t.Fatalf("reason = %q, want 5m window", reason)
	}
}

func TestShockGuardDisabled(t *testing.T) {
	g := NewShockGuard(0, 0)
	now := time.Now()
	g.OnPrice(PriceTick{Price: 100, Ts: now})
	if trip, _ := g.OnPrice(PriceTick{Price: 200, Ts: now.Add(time.Second)}); trip {
		t.Fatal("zero thresholds must disable the guard")
	}
}

func TestShockGuardEvictsOldSamples(t *testing.T) {
	g := NewShockGuard(0.01, 0)
	now := time.Now()
	g.OnPrice(PriceTick{Price: 100, Ts: now})
	// 10 分钟后价格翻倍，但旧样本已滚出窗口
	if trip, _ := g.OnPrice(PriceTick{Price: 200, Ts: now.Add(10 * time.Minute)}); trip {
		t.Fatal("samples outside the window must not count")
	}
}
