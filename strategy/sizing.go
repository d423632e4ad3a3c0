package strategy

import "math"

// KellyFraction 半凯利仓位比例，封顶 5%，不为负。
// winRate ∈ [0,1]，payoff 为平均盈亏比。
func KellyFraction(winRate, payoff float64) float64 {
	if payoff <= 0 || winRate <= 0 {
		return 0
	}
	k := winRate - (1-winRate)/payoff
	k *= 0.5
	if k < 0 {
		return 0
	}
	return math.Min(k, 0.05)
}

// PerformanceAdjustedNotional 按近期表现缩放基础名义：
// 胜率高于 0.6 放大 1.3 倍，低于 0.4 收缩到 0.7 倍。
func PerformanceAdjustedNotional(base, recentWinRate float64) float64 {
	switch {
	case recentWinRate > 0.6:
		return base * 1.3
	case recentWinRate < 0.4:
		return base * 0.7
	default:
		return base
	}
}

// RealizedVolBps 按对数收益率标准差估计已实现波动率（基点），
// 按每年 365×24×60 个分钟 bar 年化。样本不足返回 0。
func RealizedVolBps(prices []float64, annualize bool) float64 {
	if len(prices) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		rets = append(rets, math.Log(prices[i]/prices[i-1]))
	}
	if len(rets) < 2 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var v float64
	for _, r := range rets {
		d := r - mean
		v += d * d
	}
	sd := math.Sqrt(v / float64(len(rets)-1))
	if annualize {
		sd *= math.Sqrt(365 * 24 * 60)
	}
	return sd * 1e4
}
