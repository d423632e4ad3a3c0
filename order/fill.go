package order

import (
	"time"

	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

// Fill 单笔成交回报。记录成交瞬间的盘口快照供事后分析。
type Fill struct {
	FillID          string
	ClientOrderID   string
	ExchangeOrderID string

	Symbol symbol.ID
	Venue  market.Venue
	Side   Side

	Price       float64
	Qty         float64
	Fee         float64
	FeeCurrency string
	IsMaker     bool

	ExchangeTime time.Time
	ReceivedTime time.Time

	// 成交时刻的盘口快照
	BidAtFill float64
	AskAtFill float64
	MidAtFill float64
}

// SignedQty 买为 +Qty，卖为 -Qty。
func (f *Fill) SignedQty() float64 {
	return f.Side.Sign() * f.Qty
}

// Notional 返回成交名义价值。
func (f *Fill) Notional() float64 {
	return f.Price * f.Qty
}

// Reset 清空成交记录，供对象池复用。
func (f *Fill) Reset() { *f = Fill{} }
