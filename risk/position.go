package risk

import (
	"time"

	"trading-engine-go/symbol"
)

// Epsilon 仓位判平阈值。
const Epsilon = 1e-7

// Position 单符号仓位。Qty 正为多头、负为空头。
type Position struct {
	Symbol        symbol.ID
	Qty           float64
	AvgPrice      float64 // 成交量加权开仓均价
	RealizedPnL   float64
	UnrealizedPnL float64
	Fees          float64
	Notional      float64
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// Flat 判断仓位是否已平。
func (p *Position) Flat() bool {
	return abs(p.Qty) < Epsilon
}

// Side 返回 +1 多 / -1 空 / 0 平。
func (p *Position) Side() int {
	switch {
	case p.Qty > Epsilon:
		return 1
	case p.Qty < -Epsilon:
		return -1
	default:
		return 0
	}
}
