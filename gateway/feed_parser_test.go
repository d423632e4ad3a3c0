package gateway

import (
	"testing"
	"time"
)

func TestParseDepthSnapshotCombined(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@depth20","data":{"s":"BTCUSDT","E":1700000000000,` +
		`"b":[["99.90","2.5"],["99.80","1.0"]],"a":[["100.10","3.0"]]}}`)

	snap, err := ParseDepthSnapshot(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q", snap.Symbol)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("levels = %d/%d, want 2/1", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 99.90 || snap.Bids[0].Qty != 2.5 {
		t.Fatalf("bid[0] = %+v", snap.Bids[0])
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !snap.Ts.Equal(want) {
		t.Fatalf("ts = %v, want %v", snap.Ts, want)
	}
}

func TestParseDepthSnapshotBare(t *testing.T) {
	raw := []byte(`{"s":"ETHUSDT","b":[["2000.0","1.0"]],"a":[["2001.0","1.0"]]}`)

	snap, err := ParseDepthSnapshot(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Symbol != "ETHUSDT" {
		t.Fatalf("symbol = %q", snap.Symbol)
	}
	if snap.Ts.IsZero() {
		t.Fatal("ts must default to now")
	}
}

func TestParseDepthSnapshotRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing symbol", `{"b":[],"a":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDepthSnapshot([]byte(tc.raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseLevelsSkipsBad(t *testing.T) {
	raw := []byte(`{"s":"BTCUSDT","b":[["0","5"],["bad","1"],["99.5","2"]],"a":[]}`)
	snap, err := ParseDepthSnapshot(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 99.5 {
		t.Fatalf("bad levels not skipped: %+v", snap.Bids)
	}
}
