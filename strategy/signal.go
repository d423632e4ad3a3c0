package strategy

import (
	"sync/atomic"
	"time"

	"trading-engine-go/order"
	"trading-engine-go/symbol"
)

// 策略标签，贯穿信号、订单与统计。
const (
	TagOBI    = "OBI"
	TagArb    = "ARB"
	TagPairs  = "PAIRS"
	TagVolArb = "VOL_ARB"
	TagMM     = "MM"
)

// Signal 策略分析输出的单腿交易意图。
// 过期信号由消费方丢弃，策略本身不做回收。
type Signal struct {
	Strategy   string
	Symbol     symbol.ID
	Side       order.Side
	Confidence float64 // [0,1]

	Entry  float64
	Target float64
	Stop   float64

	CreatedAt time.Time
	Decay     time.Duration // 超过该时长视为过期
	Note      string
}

// Expired 判断信号在 now 时刻是否已经过期。
func (s *Signal) Expired(now time.Time) bool {
	if s.Decay <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) > s.Decay
}

// SignalStats 信号生成/过期计数，各策略内嵌复用。
type SignalStats struct {
	Generated atomic.Int64
	Expired   atomic.Int64
	Buys      atomic.Int64
	Sells     atomic.Int64
}

func (st *SignalStats) record(side order.Side) {
	st.Generated.Add(1)
	if side == order.SideBuy {
		st.Buys.Add(1)
	} else {
		st.Sells.Add(1)
	}
}

// SignalStatsSnapshot 供报表读取的普通值快照。
type SignalStatsSnapshot struct {
	Generated int64
	Expired   int64
	Buys      int64
	Sells     int64
}

// Snapshot 读取当前计数。
func (st *SignalStats) Snapshot() SignalStatsSnapshot {
	return SignalStatsSnapshot{
		Generated: st.Generated.Load(),
		Expired:   st.Expired.Load(),
		Buys:      st.Buys.Load(),
		Sells:     st.Sells.Load(),
	}
}
