package market

import (
	"testing"
	"time"

	"trading-engine-go/symbol"
)

func TestTrackerSnapshotAndBooks(t *testing.T) {
	reg := symbol.NewRegistry()
	btc := reg.Register("BTCUSDT")
	tr := NewTracker()
	now := time.Now()

	tr.ApplySnapshot(btc, VenueBinance,
		[]Level{{Price: 99.9, Qty: 2}},
		[]Level{{Price: 100.1, Qty: 3}},
		now)
	tr.ApplySnapshot(btc, VenueKraken,
		[]Level{{Price: 100.4, Qty: 1}},
		[]Level{{Price: 100.6, Qty: 1}},
		now.Add(-time.Second))

	if got := tr.Mid(btc, VenueBinance); got != 100.0 {
		t.Fatalf("binance mid = %v, want 100.0", got)
	}
	books, updated := tr.Books(btc)
	if len(books) != 2 || len(updated) != 2 {
		t.Fatalf("books = %d, updated = %d, want 2/2", len(books), len(updated))
	}
	if !updated[VenueKraken].Equal(now.Add(-time.Second)) {
		t.Fatalf("kraken updated ts wrong: %v", updated[VenueKraken])
	}
}

func TestTrackerUpdateLevel(t *testing.T) {
	reg := symbol.NewRegistry()
	eth := reg.Register("ETHUSDT")
	tr := NewTracker()
	now := time.Now()

	tr.UpdateLevel(eth, VenueBinance, true, 2000, 5, now)
	tr.UpdateLevel(eth, VenueBinance, false, 2001, 4, now)
	b := tr.Book(eth, VenueBinance)
	if b == nil {
		t.Fatal("book missing")
	}
	if b.BestBid() != 2000 || b.BestAsk() != 2001 {
		t.Fatalf("best = %v/%v", b.BestBid(), b.BestAsk())
	}

	// qty 0 删除价位
	tr.UpdateLevel(eth, VenueBinance, true, 2000, 0, now)
	if b.BestBid() != 0 {
		t.Fatalf("bid not removed: %v", b.BestBid())
	}
}

func TestTrackerMissingData(t *testing.T) {
	reg := symbol.NewRegistry()
	sol := reg.Register("SOLUSDT")
	tr := NewTracker()

	if b := tr.Book(sol, VenueBinance); b != nil {
		t.Fatalf("expected nil book, got %+v", b)
	}
	if books, _ := tr.Books(sol); books != nil {
		t.Fatalf("expected nil map, got %+v", books)
	}
	if s := tr.Staleness(sol, VenueBinance, time.Now()); s < 24*time.Hour {
		t.Fatalf("missing data staleness too small: %v", s)
	}
}

func TestTrackerStaleness(t *testing.T) {
	reg := symbol.NewRegistry()
	btc := reg.Register("BTCUSDT")
	tr := NewTracker()
	now := time.Now()

	tr.ApplySnapshot(btc, VenueCoinbase, nil, nil, now.Add(-150*time.Millisecond))
	got := tr.Staleness(btc, VenueCoinbase, now)
	if got != 150*time.Millisecond {
		t.Fatalf("staleness = %v, want 150ms", got)
	}
}
