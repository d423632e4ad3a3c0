package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

type fakeReporter struct{ rep strategy.Report }

func (f fakeReporter) BuildReport(time.Time) strategy.Report { return f.rep }

type fakeRisk struct {
	stats  risk.Stats
	halted bool
}

func (f fakeRisk) Snapshot() risk.Stats { return f.stats }
func (f fakeRisk) Halted() bool         { return f.halted }

func newTestServer(rep Reporter, rv RiskView, metrics http.Handler) *httptest.Server {
	s := NewServer(":0", nil, rep, rv, nil, metrics)
	return httptest.NewServer(s.router())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(nil, fakeRisk{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" {
		t.Fatalf("status = %q, want ok", h.Status)
	}
}

func TestHealthzHalted(t *testing.T) {
	ts := newTestServer(nil, fakeRisk{halted: true}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestReportEndpoint(t *testing.T) {
	rep := strategy.Report{
		Counters: map[string]strategy.CounterSnapshot{
			"OBI": {Signals: 3, Approved: 2, Rejected: 1},
		},
		ToxicityScore: 0.25,
	}
	ts := newTestServer(fakeReporter{rep: rep}, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got strategy.Report
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Counters["OBI"].Signals != 3 || got.ToxicityScore != 0.25 {
		t.Fatalf("unexpected report: %+v", got)
	}
}

func TestReportUnavailable(t *testing.T) {
	ts := newTestServer(nil, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestRiskEndpoint(t *testing.T) {
	ts := newTestServer(nil, fakeRisk{stats: risk.Stats{DailyRealized: -42, OpenPositions: 2}}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/risk")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got risk.Stats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DailyRealized != -42 || got.OpenPositions != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestActiveOrdersEndpoint(t *testing.T) {
	tr := order.NewTracker(0)
	o := &order.Order{ClientOrderID: "c1", Side: order.SideBuy, Status: order.StatusNew, OrigQty: 1, Price: 100}
	if err := tr.Track(o); err != nil {
		t.Fatalf("track: %v", err)
	}
	s := NewServer(":0", nil, nil, nil, tr, nil)
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/orders/active")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got activeOrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 1 || len(got.Orders) != 1 || got.Orders[0].ClientOrderID != "c1" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestActiveOrdersUnavailable(t *testing.T) {
	ts := newTestServer(nil, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/orders/active")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestMetricsMount(t *testing.T) {
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("engine_up 1"))
	})
	ts := newTestServer(nil, nil, fake)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPoolsEndpoint(t *testing.T) {
	ts := newTestServer(nil, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/debug/pools")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got order.PoolStats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OrdersTotal <= 0 || got.FillsTotal <= 0 {
		t.Fatalf("pool totals must be positive: %+v", got)
	}
}
