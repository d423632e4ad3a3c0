package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

type captureSink struct {
	applied atomic.Int64
	tracker *market.Tracker
}

func (s *captureSink) ApplySnapshot(sym symbol.ID, venue market.Venue, bids, asks []market.Level, ts time.Time) {
	s.tracker.ApplySnapshot(sym, venue, bids, asks, ts)
	s.applied.Add(1)
}

// depthServer 接受一次 ws 连接，推送 n 条深度消息后关闭连接。
func depthServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// 留一点时间让客户端读完再断开
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestFeedAppliesSnapshots(t *testing.T) {
	srv := depthServer(t, []string{
		`{"s":"BTCUSDT","E":1700000000000,"b":[["99.9","2"]],"a":[["100.1","3"]]}`,
	})
	defer srv.Close()

	reg := symbol.NewRegistry()
	sink := &captureSink{tracker: market.NewTracker()}
	f := NewFeed(FeedConfig{URL: wsURL(srv), Venue: market.VenueBinance}, reg, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sink.applied.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("snapshot never applied")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	btc := reg.Lookup("BTCUSDT")
	if btc == symbol.Invalid {
		t.Fatal("symbol not registered")
	}
	if mid := sink.tracker.Mid(btc, market.VenueBinance); mid != 100.0 {
		t.Fatalf("mid = %v, want 100.0", mid)
	}
}

func TestFeedReconnects(t *testing.T) {
	srv := depthServer(t, []string{
		`{"s":"ETHUSDT","b":[["2000","1"]],"a":[["2001","1"]]}`,
	})
	defer srv.Close()

	reg := symbol.NewRegistry()
	sink := &captureSink{tracker: market.NewTracker()}
	f := NewFeed(FeedConfig{URL: wsURL(srv), Venue: market.VenueBinance}, reg, sink, nil)

	var reconnects atomic.Int64
	f.OnReconnect = func() { reconnects.Add(1) }

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()

	// 服务端推完消息即断开；客户端应至少重连一次
	deadline := time.After(3 * time.Second)
	for reconnects.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("feed never reconnected")
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()
	<-done
	if sink.applied.Load() == 0 {
		t.Fatal("no snapshot applied before disconnect")
	}
}

func TestFeedStopsOnContextCancel(t *testing.T) {
	srv := depthServer(t, nil)
	defer srv.Close()

	reg := symbol.NewRegistry()
	sink := &captureSink{tracker: market.NewTracker()}
	f := NewFeed(FeedConfig{URL: wsURL(srv), Venue: market.VenueBinance}, reg, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}
