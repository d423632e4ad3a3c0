package risk

import "trading-engine-go/order"

// Guard 是下单前置校验的通用接口，限频、限额等都可实现。
type Guard interface {
	PreOrder(o *order.Order) error
}

// MultiGuard 顺序执行多个 Guard，只要有一个返回错误则中止。
type MultiGuard struct {
	Guards []Guard
}

func (m MultiGuard) PreOrder(o *order.Order) error {
	for _, g := range m.Guards {
		if g == nil {
			continue
		}
		if err := g.PreOrder(o); err != nil {
			return err
		}
	}
	return nil
}

// PreOrder 使 RateGuard 满足 Guard 接口。
func (g *RateGuard) PreOrder(_ *order.Order) error { return g.Allow() }
