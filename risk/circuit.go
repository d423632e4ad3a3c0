package risk

import (
	"fmt"
	"time"
)

// PriceTick 价格冲击检测的最小行情输入。
type PriceTick struct {
	Price float64
	Ts    time.Time
}

// ShockGuard 检测短窗内的剧烈价格变动。
// 1m/5m 窗口各自独立判定，阈值为相对涨跌幅；零阈值关闭该窗口。
// 由单个决策 goroutine 驱动，不加锁。
type ShockGuard struct {
	OneMinuteFrac  float64
	FiveMinuteFrac float64
	window1m       []PriceTick
	window5m       []PriceTick
}

// NewShockGuard 创建价格冲击检测器。
func NewShockGuard(oneMinFrac, fiveMinFrac float64) *ShockGuard {
	return &ShockGuard{
		OneMinuteFrac:  oneMinFrac,
		FiveMinuteFrac: fiveMinFrac,
		window1m:       make([]PriceTick, 0, 128),
		window5m:       make([]PriceTick, 0, 512),
	}
}

// OnPrice 记录一个价格点，返回 (是否触发, 触发窗口说明)。
func (g *ShockGuard) OnPrice(t PriceTick) (bool, string) {
	g.window1m = append(g.window1m, t)
	g.window5m = append(g.window5m, t)
	g.trim(&g.window1m, t.Ts.Add(-time.Minute))
	g.trim(&g.window5m, t.Ts.Add(-5*time.Minute))

	if moved, change := g.exceeded(g.window1m, g.OneMinuteFrac); moved {
		return true, fmt.Sprintf("1m move %.2f%%", change*100)
	}
	if moved, change := g.exceeded(g.window5m, g.FiveMinuteFrac); moved {
		return true, fmt.Sprintf("5m move %.2f%%", change*100)
	}
	return false, ""
}

func (g *ShockGuard) trim(buf *[]PriceTick, cutoff time.Time) {
	i := 0
	for ; i < len(*buf); i++ {
		if (*buf)[i].Ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		*buf = (*buf)[i:]
	}
}

func (g *ShockGuard) exceeded(buf []PriceTick, frac float64) (bool, float64) {
	if frac <= 0 || len(buf) == 0 {
		return false, 0
	}
	first := buf[0].Price
	if first == 0 {
		return false, 0
	}
	change := (buf[len(buf)-1].Price - first) / first
	if change > frac || change < -frac {
		return true, change
	}
	return false, change
}
