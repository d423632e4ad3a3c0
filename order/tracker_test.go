package order

import (
	"sync"
	"testing"
	"time"

	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

func newTestOrder(clientID string, sym symbol.ID, st Status) *Order {
	return &Order{
		ClientOrderID: clientID,
		Symbol:        sym,
		Venue:         market.VenueBinance,
		Side:          SideBuy,
		Type:          TypeLimit,
		Price:         100,
		OrigQty:       1,
		RemainingQty:  1,
		Status:        st,
		CreatedAt:     time.Now(),
	}
}

func TestTrackAndLookup(t *testing.T) {
	reg := symbol.NewRegistry()
	btc := reg.Register("BTCUSDT")
	tr := NewTracker(0)

	if err := tr.Track(newTestOrder("c1", btc, StatusNew)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := tr.Track(newTestOrder("c1", btc, StatusNew)); err == nil {
		t.Fatalf("duplicate track should fail")
	}

	if err := tr.SetExchangeID("c1", "x1", time.Now()); err != nil {
		t.Fatalf("ack: %v", err)
	}
	got, ok := tr.GetByExchange("x1")
	if !ok || got.ClientOrderID != "c1" {
		t.Fatalf("exchange lookup failed: %+v ok=%v", got, ok)
	}
	sym, ok := tr.SymbolOf("x1")
	if !ok || sym != btc {
		t.Fatalf("SymbolOf = %v ok=%v, want %v", sym, ok, btc)
	}
	if _, ok := tr.GetByExchange("missing"); ok {
		t.Fatalf("missing exchange id should not resolve")
	}
}

func TestActiveSetMatchesStatus(t *testing.T) {
	reg := symbol.NewRegistry()
	eth := reg.Register("ETHUSDT")
	tr := NewTracker(0)

	_ = tr.Track(newTestOrder("c1", eth, StatusNew))
	_ = tr.Track(newTestOrder("c2", eth, StatusPending))
	if tr.ActiveCount() != 1 {
		t.Fatalf("active = %d, want 1 (PENDING is not active)", tr.ActiveCount())
	}

	if err := tr.UpdateStatus("c2", StatusNew); err != nil {
		t.Fatalf("update: %v", err)
	}
	if tr.ActiveCount() != 2 {
		t.Fatalf("active = %d, want 2", tr.ActiveCount())
	}

	if err := tr.UpdateStatus("c1", StatusFilled); err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, o := range tr.ActiveOrders() {
		if !o.Status.Active() {
			t.Fatalf("active set holds non-active order %s status %s", o.ClientOrderID, o.Status)
		}
	}
	if tr.ActiveCount() != 1 {
		t.Fatalf("active = %d after fill, want 1", tr.ActiveCount())
	}
}

func TestStatusMonotone(t *testing.T) {
	reg := symbol.NewRegistry()
	sym := reg.Register("SOLUSDT")
	tr := NewTracker(0)
	_ = tr.Track(newTestOrder("c1", sym, StatusNew))

	if err := tr.UpdateStatus("c1", StatusPartial); err != nil {
		t.Fatalf("NEW->PARTIAL: %v", err)
	}
	if err := tr.UpdateStatus("c1", StatusNew); err == nil {
		t.Fatalf("PARTIAL->NEW must be rejected")
	}
	if err := tr.UpdateStatus("c1", StatusFilled); err != nil {
		t.Fatalf("PARTIAL->FILLED: %v", err)
	}
	if err := tr.UpdateStatus("c1", StatusCanceled); err == nil {
		t.Fatalf("terminal order must not transition")
	}
}

func TestFilledPlusRemainingInvariant(t *testing.T) {
	reg := symbol.NewRegistry()
	sym := reg.Register("BTCUSDT")
	tr := NewTracker(0)
	o := newTestOrder("c1", sym, StatusNew)
	o.OrigQty, o.RemainingQty = 2, 2
	_ = tr.Track(o)

	_ = tr.Apply("c1", func(o *Order) {
		o.ApplyFillQty(0.5)
		o.Status = StatusPartial
	})
	got, _ := tr.GetByClient("c1")
	if got.FilledQty+got.RemainingQty != got.OrigQty {
		t.Fatalf("filled %v + remaining %v != orig %v", got.FilledQty, got.RemainingQty, got.OrigQty)
	}
	if got.Status != StatusPartial {
		t.Fatalf("status = %s, want PARTIALLY_FILLED", got.Status)
	}
}

func TestCleanupCompleted(t *testing.T) {
	reg := symbol.NewRegistry()
	sym := reg.Register("BTCUSDT")
	tr := NewTracker(0)

	old := newTestOrder("old", sym, StatusNew)
	_ = tr.Track(old)
	_ = tr.UpdateStatus("old", StatusFilled)
	_ = tr.Apply("old", func(o *Order) { o.CompletedAt = time.Now().Add(-time.Hour) })

	_ = tr.Track(newTestOrder("live", sym, StatusNew))

	if removed := tr.CleanupCompleted(30 * time.Minute); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := tr.GetByClient("old"); ok {
		t.Fatalf("old order should be gone")
	}
	if _, ok := tr.GetByClient("live"); !ok {
		t.Fatalf("live order must survive cleanup")
	}
	if len(tr.OrdersOfSymbol(sym)) != 1 {
		t.Fatalf("symbol index not cleaned")
	}
}

func TestSoftCapEvictsCompleted(t *testing.T) {
	reg := symbol.NewRegistry()
	sym := reg.Register("BTCUSDT")
	tr := NewTracker(2)

	_ = tr.Track(newTestOrder("a", sym, StatusNew))
	_ = tr.UpdateStatus("a", StatusCanceled)
	_ = tr.Track(newTestOrder("b", sym, StatusNew))
	_ = tr.Track(newTestOrder("c", sym, StatusNew))

	if _, ok := tr.GetByClient("a"); ok {
		t.Fatalf("completed order a should have been evicted at cap")
	}
	if tr.Count() != 2 {
		t.Fatalf("count = %d, want 2", tr.Count())
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	reg := symbol.NewRegistry()
	sym := reg.Register("ETHUSDT")
	tr := NewTracker(0)
	_ = tr.Track(newTestOrder("c1", sym, StatusNew))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.ActiveOrders()
				tr.GetByClient("c1")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Apply("c1", func(o *Order) { o.RiskNotional = float64(j) })
			}
		}()
	}
	wg.Wait()
}
