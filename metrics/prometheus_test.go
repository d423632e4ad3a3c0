package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSignalCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordSignal("OBI")
	m.RecordSignal("OBI")
	m.RecordSignal("ARB")
	m.RecordApproval("OBI")
	m.RecordRejection("ARB")

	if got := testutil.ToFloat64(m.signalsGenerated.WithLabelValues("OBI")); got != 2 {
		t.Errorf("OBI signals = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.signalsGenerated.WithLabelValues("ARB")); got != 1 {
		t.Errorf("ARB signals = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ordersApproved.WithLabelValues("OBI")); got != 1 {
		t.Errorf("OBI approved = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected.WithLabelValues("ARB")); got != 1 {
		t.Errorf("ARB rejected = %v, want 1", got)
	}
}

func TestPositionAndRiskGauges(t *testing.T) {
	m := New(DefaultConfig())

	m.SetPosition("BTCUSDT", 1.5)
	m.SetExposure(120_000, -350)
	m.SetBreakerState(1)
	m.SetKillSwitch(true)
	m.SetToxicity(0.42)

	if got := testutil.ToFloat64(m.position.WithLabelValues("BTCUSDT")); got != 1.5 {
		t.Errorf("position = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(m.grossExposure); got != 120_000 {
		t.Errorf("gross exposure = %v, want 120000", got)
	}
	if got := testutil.ToFloat64(m.dailyPnL); got != -350 {
		t.Errorf("daily pnl = %v, want -350", got)
	}
	if got := testutil.ToFloat64(m.breakerState); got != 1 {
		t.Errorf("breaker state = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.killSwitch); got != 1 {
		t.Errorf("kill switch = %v, want 1", got)
	}
	m.SetKillSwitch(false)
	if got := testutil.ToFloat64(m.killSwitch); got != 0 {
		t.Errorf("kill switch = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.toxicityScore); got != 0.42 {
		t.Errorf("toxicity = %v, want 0.42", got)
	}
}

func TestFeedCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordFeedMessage("ETHUSDT")
	m.RecordFeedMessage("ETHUSDT")
	m.RecordFeedReconnect()
	m.RecordFill("ETHUSDT", "BUY")
	m.ObserveTickLatency(50 * time.Microsecond)

	if got := testutil.ToFloat64(m.feedMessages); got != 2 {
		t.Errorf("feed messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bookUpdates.WithLabelValues("ETHUSDT")); got != 2 {
		t.Errorf("book updates = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.feedReconnects); got != 1 {
		t.Errorf("reconnects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.fillsTotal.WithLabelValues("ETHUSDT", "BUY")); got != 1 {
		t.Errorf("fills = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordSignal("OBI")

	if m.Handler() == nil {
		t.Fatal("handler must not be nil")
	}
	n, err := testutil.GatherAndCount(m.Registry(), "engine_trading_signals_generated_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("gathered series = %d, want 1", n)
	}
}
