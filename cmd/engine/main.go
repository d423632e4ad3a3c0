package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"trading-engine-go/config"
	"trading-engine-go/gateway"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/internal/engine"
	"trading-engine-go/market"
	"trading-engine-go/monitor"
	"trading-engine-go/symbol"
)

// trackerSink 把行情快照写进引擎的 tracker。
type trackerSink struct {
	tracker *market.Tracker
}

func (s *trackerSink) ApplySnapshot(sym symbol.ID, venue market.Venue, bids, asks []market.Level, ts time.Time) {
	s.tracker.ApplySnapshot(sym, venue, bids, asks, ts)
}

func main() {
	cfgPath := flag.String("config", "configs/engine.yaml", "配置文件路径")
	feedVenue := flag.String("feedVenue", "BINANCE", "行情接入场所")
	watch := flag.Bool("watch", false, "开启配置热加载")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	eng, err := engine.Build(cfg, zlog)
	if err != nil {
		zlog.Fatal("装配引擎失败", zap.Error(err))
	}
	comps := eng.Components()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 运维端点（健康、报表、风控快照、metrics）
	var ops *monitor.Server
	if cfg.OpsAddr != "" {
		ops = monitor.NewServer(cfg.OpsAddr, zlog, eng, comps.Risk, comps.Orders, comps.Monitor.Handler())
		ops.Start()
	}
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.OpsAddr {
		go func() {
			if err := comps.Monitor.Serve(cfg.MetricsAddr); err != nil {
				zlog.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	// 行情接入
	if cfg.Feed.URL != "" {
		venue := market.ParseVenue(*feedVenue)
		sink := &trackerSink{tracker: comps.Tracker}
		feed := gateway.NewFeed(cfg.Feed.Build(venue), comps.Registry, sink, zlog.Named("feed"))
		feed.OnMessage = func(symbolName string) { comps.Monitor.RecordFeedMessage(symbolName) }
		feed.OnReconnect = func() { comps.Monitor.RecordFeedReconnect() }
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				zlog.Error("feed exited", zap.Error(err))
			}
		}()
	}

	// 配置热加载只更新风控限额，策略结构不随配置重建
	if *watch {
		watcher, err := config.NewWatcher(*cfgPath, config.DefaultWatcherConfig(),
			func(updated config.AppConfig) {
				if err := comps.Risk.UpdateLimits(updated.Risk); err != nil {
					zlog.Warn("风控限额热更新被拒", zap.Error(err))
					return
				}
				zlog.Info("风控限额已热更新")
			},
			func(err error) {
				zlog.Warn("配置热加载失败，沿用旧配置", zap.Error(err))
			})
		if err != nil {
			zlog.Fatal("创建配置监听失败", zap.Error(err))
		}
		if err := watcher.Start(ctx); err != nil {
			zlog.Fatal("启动配置监听失败", zap.Error(err))
		}
		defer watcher.Stop()
	}

	if err := eng.Start(ctx); err != nil {
		zlog.Fatal("启动引擎失败", zap.Error(err))
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	zlog.Info("收到退出信号，停止引擎")
	cancel()
	_ = eng.Stop()
	if ops != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = ops.Stop(shutdownCtx)
	}
}
