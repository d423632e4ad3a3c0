package market

import (
	"testing"
	"time"
)

func seedBook() *Book {
	b := NewBook()
	b.UpdateBid(100.0, 2)
	b.UpdateBid(99.5, 3)
	b.UpdateBid(99.0, 5)
	b.UpdateAsk(100.5, 1)
	b.UpdateAsk(101.0, 4)
	b.UpdateAsk(101.5, 2)
	return b
}

func TestBestAndMid(t *testing.T) {
	b := seedBook()
	if got := b.BestBid(); got != 100.0 {
		t.Fatalf("best bid = %v, want 100", got)
	}
	if got := b.BestAsk(); got != 100.5 {
		t.Fatalf("best ask = %v, want 100.5", got)
	}
	if got := b.Mid(); got != 100.25 {
		t.Fatalf("mid = %v, want 100.25", got)
	}
	if got := b.Spread(); got != 0.5 {
		t.Fatalf("spread = %v, want 0.5", got)
	}
}

func TestEmptySideReturnsZero(t *testing.T) {
	b := NewBook()
	b.UpdateBid(100, 1)
	if b.Mid() != 0 {
		t.Fatalf("mid with empty ask side = %v, want 0", b.Mid())
	}
	if b.BestAsk() != 0 {
		t.Fatalf("best ask on empty side = %v, want 0", b.BestAsk())
	}
}

func TestZeroQtyRemovesLevel(t *testing.T) {
	b := seedBook()
	b.UpdateBid(100.0, 0)
	if got := b.BestBid(); got != 99.5 {
		t.Fatalf("best bid after removal = %v, want 99.5", got)
	}
	if got := b.BidDepth(); got != 2 {
		t.Fatalf("bid depth = %d, want 2", got)
	}
	// 删除不存在的档位不应报错或改变深度
	b.UpdateAsk(999.0, 0)
	if got := b.AskDepth(); got != 3 {
		t.Fatalf("ask depth = %d, want 3", got)
	}
}

func TestSortedOrder(t *testing.T) {
	b := seedBook()
	bids := b.TopBids(3)
	for i := 1; i < len(bids); i++ {
		if bids[i].Price >= bids[i-1].Price {
			t.Fatalf("bids not descending: %v", bids)
		}
	}
	asks := b.TopAsks(3)
	for i := 1; i < len(asks); i++ {
		if asks[i].Price <= asks[i-1].Price {
			t.Fatalf("asks not ascending: %v", asks)
		}
	}
}

func TestTopNClamps(t *testing.T) {
	b := seedBook()
	if got := len(b.TopBids(10)); got != 3 {
		t.Fatalf("top bids = %d, want 3", got)
	}
}

func TestUpdateExistingLevel(t *testing.T) {
	b := seedBook()
	b.UpdateBid(99.5, 9)
	bids := b.TopBids(3)
	if bids[1].Price != 99.5 || bids[1].Qty != 9 {
		t.Fatalf("level update failed: %+v", bids[1])
	}
	if b.BidDepth() != 3 {
		t.Fatalf("depth changed on in-place update: %d", b.BidDepth())
	}
}

func TestApplySnapshot(t *testing.T) {
	b := NewBook()
	ts := time.Now()
	b.ApplySnapshot(
		[]Level{{99, 1}, {100, 2}},
		[]Level{{102, 1}, {101, 2}},
		ts,
	)
	if b.BestBid() != 100 || b.BestAsk() != 101 {
		t.Fatalf("snapshot not sorted: bid %v ask %v", b.BestBid(), b.BestAsk())
	}
	if !b.UpdatedAt().Equal(ts) {
		t.Fatalf("updatedAt not set from snapshot")
	}
}

func TestVenueFees(t *testing.T) {
	cases := []struct {
		v    Venue
		want float64
	}{
		{VenueBinance, 10}, {VenueKraken, 16}, {VenueCoinbase, 40},
		{VenueBybit, 20}, {VenueUnknown, 20},
	}
	for _, c := range cases {
		if got := c.v.TakerFeeBps(); got != c.want {
			t.Errorf("%s fee = %v, want %v", c.v, got, c.want)
		}
	}
	if ParseVenue("KRAKEN") != VenueKraken {
		t.Errorf("ParseVenue KRAKEN failed")
	}
	if ParseVenue("NYSE") != VenueUnknown {
		t.Errorf("unknown venue should parse to UNKNOWN")
	}
}
