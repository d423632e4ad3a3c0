package order

import (
	"time"

	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign 买为 +1，卖为 -1。
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// String 实现 fmt.Stringer。
func (s Side) String() string {
	return string(s)
}

// Type 订单类型。
type Type string

const (
	TypeLimit      Type = "LIMIT"
	TypeMarket     Type = "MARKET"
	TypeLimitMaker Type = "LIMIT_MAKER"
	TypeLimitIOC   Type = "LIMIT_IOC"
	TypeStopLoss   Type = "STOP_LOSS"
	TypeStopLimit  Type = "STOP_LIMIT"
)

// Status 订单生命周期状态。
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusNew      Status = "NEW"
	StatusPartial  Status = "PARTIALLY_FILLED"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// statusRank 状态只能向终态单调推进，用序号表达偏序。
var statusRank = map[Status]int{
	StatusPending:  0,
	StatusNew:      1,
	StatusPartial:  2,
	StatusFilled:   3,
	StatusCanceled: 3,
	StatusRejected: 3,
	StatusExpired:  3,
}

// Terminal 判断是否为终态。
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Active 判断订单是否在场（已确认且未完结）。
func (s Status) Active() bool {
	return s == StatusNew || s == StatusPartial
}

// CanTransition 判断 from -> to 是否合法：终态不可再迁移，序号不可回退。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	return statusRank[to] >= statusRank[from]
}

// Order 订单完整状态。客户端 ID 创建时分配，交易所 ID 在确认后补齐。
type Order struct {
	ClientOrderID   string
	ExchangeOrderID string

	Symbol symbol.ID
	Venue  market.Venue
	Side   Side
	Type   Type

	Price       float64 // MARKET 单为 0
	OrigQty     float64
	FilledQty   float64
	RemainingQty float64

	Status       Status
	StrategyTag  string
	SignalID     string
	RiskNotional float64

	CreatedAt   time.Time
	SentAt      time.Time
	AckedAt     time.Time
	CompletedAt time.Time

	LastError string
}

// Active 判断订单是否在场。
func (o *Order) Active() bool { return o.Status.Active() }

// Notional 返回订单名义价值。
func (o *Order) Notional() float64 {
	px := o.Price
	if px < 0 {
		px = -px
	}
	return o.OrigQty * px
}

// ApplyFillQty 记入成交数量并维护 filled + remaining = orig。
func (o *Order) ApplyFillQty(qty float64) {
	o.FilledQty += qty
	o.RemainingQty = o.OrigQty - o.FilledQty
	if o.RemainingQty < 0 {
		o.RemainingQty = 0
	}
}

// Reset 清空订单，供对象池复用。
func (o *Order) Reset() { *o = Order{} }
