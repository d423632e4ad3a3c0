package risk

import (
	"time"

	"trading-engine-go/order"
)

// LatencyGuard 限制同方向订单的最小间隔，防止信号抖动导致的快速重复下单。
// 买卖方向各自独立计时，零间隔关闭该守卫。
type LatencyGuard struct {
	MinInterval time.Duration
	lastBuyTS   time.Time
	lastSellTS  time.Time
	clock       Clock
}

func NewLatencyGuard(minInterval time.Duration) *LatencyGuard {
	return &LatencyGuard{
		MinInterval: minInterval,
		clock:       NowUTC,
	}
}

func (g *LatencyGuard) PreOrder(o *order.Order) error {
	if g == nil || g.MinInterval <= 0 {
		return nil
	}
	now := g.clock.Now()
	target := &g.lastBuyTS
	if o.Side == order.SideSell {
		target = &g.lastSellTS
	}
	if !target.IsZero() && now.Sub(*target) < g.MinInterval {
		return ErrTooFrequent
	}
	*target = now
	return nil
}
