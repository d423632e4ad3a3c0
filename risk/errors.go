package risk

import "errors"

var (
	ErrBadFillPrice = errors.New("fill price must be positive")
	ErrBadFillQty   = errors.New("fill quantity must be positive")
	ErrTooFrequent  = errors.New("order too frequent")
)

// 预检拒绝原因是封闭集合，作为稳定标识返回而非自由文本。
const (
	ReasonKillSwitch    = "Kill switch active"
	ReasonCircuitOpen   = "Circuit breaker open"
	ReasonDailyLoss     = "Daily loss limit exceeded"
	ReasonTrailingStop  = "Trailing stop hit"
	ReasonOrderSize     = "Order size exceeds limit"
	ReasonSymbolLimit   = "Symbol position limit exceeded"
	ReasonGrossExposure = "Total gross exposure limit exceeded"
	ReasonConcentration = "Concentration limit exceeded"
)
