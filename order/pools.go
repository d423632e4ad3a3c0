package order

import "trading-engine-go/internal/pool"

// 热路径高频分配的两类对象走进程级对象池，启动时建好后不再替换。
var (
	orderPool = pool.New[Order](2048, func(o *Order) { o.Reset() })
	fillPool  = pool.New[Fill](2048, func(f *Fill) { f.Reset() })
)

// AcquireOrder 从池中取出空订单。
func AcquireOrder() *Order { return orderPool.Get() }

// ReleaseOrder 归还订单对象。
func ReleaseOrder(o *Order) { orderPool.Put(o) }

// AcquireFill 从池中取出空成交记录。
func AcquireFill() *Fill { return fillPool.Get() }

// ReleaseFill 归还成交对象。
func ReleaseFill(f *Fill) { fillPool.Put(f) }

// PoolStats 对象池占用快照。
type PoolStats struct {
	OrdersInUse int `json:"orders_in_use"`
	FillsInUse  int `json:"fills_in_use"`
	OrdersTotal int `json:"orders_total"`
	FillsTotal  int `json:"fills_total"`
}

// Pools 返回当前对象池统计。
func Pools() PoolStats {
	return PoolStats{
		OrdersInUse: orderPool.InUse(),
		FillsInUse:  fillPool.InUse(),
		OrdersTotal: orderPool.TotalAllocated(),
		FillsTotal:  fillPool.TotalAllocated(),
	}
}
