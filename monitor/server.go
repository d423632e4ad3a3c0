// Package monitor 提供运维 HTTP 端点：健康检查、策略报告、风控快照与指标。
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
)

// Reporter 提供策略层运行报告。
type Reporter interface {
	BuildReport(now time.Time) strategy.Report
}

// RiskView 提供风控层快照。
type RiskView interface {
	Snapshot() risk.Stats
	Halted() bool
}

// OrdersView 提供在场订单视图。
type OrdersView interface {
	ActiveOrders() []order.Order
	ActiveCount() int
}

// Server 运维端点服务器。
type Server struct {
	addr     string
	log      *logger.Logger
	reporter Reporter
	riskView RiskView
	orders   OrdersView
	metrics  http.Handler
	started  time.Time
	httpSrv  *http.Server
}

// NewServer 创建运维服务器。orders 与 metrics 可以为 nil：metrics 为 nil 时不挂载 /metrics；
// orders 为 nil 时 /orders/active 仍挂载，返回 501。
func NewServer(addr string, log *logger.Logger, reporter Reporter, riskView RiskView, orders OrdersView, metrics http.Handler) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		addr:     addr,
		log:      log,
		reporter: reporter,
		riskView: riskView,
		orders:   orders,
		metrics:  metrics,
		started:  time.Now(),
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/report", s.handleReport)
	r.Get("/risk", s.handleRisk)
	r.Get("/orders/active", s.handleActiveOrders)
	r.Get("/debug/pools", s.handlePools)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start 启动 HTTP 服务，非阻塞。
func (s *Server) Start() {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		s.log.Info("ops server listening", zap.String("addr", s.addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Stop 优雅关闭。
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status   string `json:"status"`
	UptimeMs int64  `json:"uptime_ms"`
	Halted   bool   `json:"halted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		UptimeMs: time.Since(s.started).Milliseconds(),
	}
	code := http.StatusOK
	if s.riskView != nil && s.riskView.Halted() {
		// 引擎停机时仍返回 200 之外的状态，便于探活区分
		resp.Status = "halted"
		resp.Halted = true
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		http.Error(w, "reporter unavailable", http.StatusNotImplemented)
		return
	}
	writeJSON(w, http.StatusOK, s.reporter.BuildReport(time.Now()))
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if s.riskView == nil {
		http.Error(w, "risk view unavailable", http.StatusNotImplemented)
		return
	}
	writeJSON(w, http.StatusOK, s.riskView.Snapshot())
}

type activeOrdersResponse struct {
	Count  int           `json:"count"`
	Orders []order.Order `json:"orders"`
}

func (s *Server) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		http.Error(w, "orders view unavailable", http.StatusNotImplemented)
		return
	}
	writeJSON(w, http.StatusOK, activeOrdersResponse{
		Count:  s.orders.ActiveCount(),
		Orders: s.orders.ActiveOrders(),
	})
}

// 对象池占用情况，排查热路径泄漏时用。
func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, order.Pools())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
