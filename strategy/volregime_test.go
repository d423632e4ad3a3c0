package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-engine-go/order"
	"trading-engine-go/symbol"
)

func volConfig() VolConfig {
	return VolConfig{
		ATRPeriod:      5,
		HighEntry:      1.5,
		LowEntry:       0.6,
		TargetBps:      20,
		StopBps:        12,
		MaxHoldMinutes: 30,
	}
}

func newVol(t *testing.T) *VolRegime {
	t.Helper()
	reg := symbol.NewRegistry()
	return NewVolRegime(reg.Register("BTCUSDT"), volConfig())
}

// 以步长 step 推入 n 个价格，产生稳定的真实波幅序列。
func feed(v *VolRegime, start, step float64, n int) float64 {
	p := start
	for i := 0; i < n; i++ {
		p += step
		v.AddPrice(p)
	}
	return p
}

func TestVolRegimeClassification(t *testing.T) {
	v := newVol(t)

	// 波幅恒定 ⇒ cur/avg = 1 ⇒ NORMAL
	feed(v, 100, 0.1, 30)
	assert.Equal(t, VolNormal, v.Regime())

	// 最近波幅放大 ⇒ HIGH
	feed(v, 103, 2.0, 6)
	assert.Equal(t, VolHigh, v.Regime())
}

func TestVolRegimeLow(t *testing.T) {
	v := newVol(t)

	// 历史大波幅后转入静默
	feed(v, 100, 2.0, 30)
	feed(v, 160, 0.01, 10)
	assert.Equal(t, VolLow, v.Regime())
}

func TestVolRegimeNotReady(t *testing.T) {
	v := newVol(t)
	feed(v, 100, 1, 5) // ATR 样本不足 10
	assert.Equal(t, VolNormal, v.Regime())
	assert.InDelta(t, 0.0, v.AverageATR(), 1e-9)
}

func TestVolHighMeanReversion(t *testing.T) {
	v := newVol(t)
	now := time.Now()

	// 稳定段后急涨：HIGH + 5 样本涨幅 >1% ⇒ SELL
	feed(v, 100, 0.05, 30)
	feed(v, 101.5, 1.0, 5)
	require.Equal(t, VolHigh, v.Regime())

	sig := v.Analyze(now)
	require.NotNil(t, sig)
	assert.Equal(t, order.SideSell, sig.Side)
	assert.Equal(t, TagVolArb, sig.Strategy)
	assert.Equal(t, "HIGH", sig.Note)
	assert.Less(t, sig.Target, sig.Entry)

	// 急跌方向相反
	v2 := newVol(t)
	feed(v2, 200, -0.05, 30)
	feed(v2, 198.5, -2.0, 5)
	require.Equal(t, VolHigh, v2.Regime())
	sig2 := v2.Analyze(now)
	require.NotNil(t, sig2)
	assert.Equal(t, order.SideBuy, sig2.Side)
}

func TestVolLowBreakoutBias(t *testing.T) {
	v := newVol(t)
	now := time.Now()

	feed(v, 100, 2.0, 30)
	last := feed(v, 160, 0.01, 10)
	require.Equal(t, VolLow, v.Regime())

	sig := v.Analyze(now)
	require.NotNil(t, sig)
	assert.Equal(t, order.SideBuy, sig.Side)
	assert.InDelta(t, last, sig.Entry, 0.1)
	// 对称目标/止损
	assert.InDelta(t, sig.Entry*20/1e4, sig.Target-sig.Entry, 1e-6)
	assert.InDelta(t, sig.Entry*12/1e4, sig.Entry-sig.Stop, 1e-6)
}

func TestVolNormalNoSignal(t *testing.T) {
	v := newVol(t)
	feed(v, 100, 0.1, 30)
	if sig := v.Analyze(time.Now()); sig != nil {
		t.Fatalf("NORMAL regime must not signal, got %+v", sig)
	}
}

func TestVolShouldExit(t *testing.T) {
	v := newVol(t)
	now := time.Now()

	feed(v, 100, 0.1, 30)
	entry := VolEntry{Regime: VolNormal, EnteredAt: now}

	assert.False(t, v.ShouldExit(entry, now.Add(time.Minute)))
	// 超时退出
	assert.True(t, v.ShouldExit(entry, now.Add(31*time.Minute)))
	// 状态切换退出
	feed(v, 103, 2.0, 6)
	assert.True(t, v.ShouldExit(entry, now.Add(time.Minute)))
}

func TestVolStats(t *testing.T) {
	var s VolStats
	s.RecordTradeResult(VolHigh, 120, 10*time.Minute)
	s.RecordTradeResult(VolHigh, -40, 20*time.Minute)
	s.RecordTradeResult(VolLow, 10, 30*time.Minute)

	assert.EqualValues(t, 2, s.TradesByRegime[VolHigh])
	assert.EqualValues(t, 1, s.TradesByRegime[VolLow])
	assert.InDelta(t, 2.0/3, s.WinRate(), 1e-9)
	assert.InDelta(t, 20.0, s.AvgHoldMinutes(), 1e-9)
	assert.InDelta(t, 90.0, s.TotalPnL, 1e-9)
}

func TestVolSurfaceBias(t *testing.T) {
	tr := NewVolSurfaceTracker()
	now := time.Now()

	assert.Equal(t, VolBiasNeutral, tr.Bias())

	for i := 0; i < 10; i++ {
		tr.Record(0.50, 0.56, now)
	}
	assert.Equal(t, VolBiasOverpriced, tr.Bias())

	tr2 := NewVolSurfaceTracker()
	for i := 0; i < 10; i++ {
		tr2.Record(0.50, 0.45, now)
	}
	assert.Equal(t, VolBiasUnderpriced, tr2.Bias())
}
