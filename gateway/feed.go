// Package gateway 提供行情接入与执行网关的适配层。
package gateway

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

// FeedConfig 行情 WS 连接参数。
type FeedConfig struct {
	URL          string
	Venue        market.Venue
	PingInterval time.Duration
	ReadTimeout  time.Duration
	MaxBackoff   time.Duration
}

func (c FeedConfig) withDefaults() FeedConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// BookSink 接收解析后的盘口快照。
type BookSink interface {
	ApplySnapshot(sym symbol.ID, venue market.Venue, bids, asks []market.Level, ts time.Time)
}

// Feed 单场所行情 WS 客户端：读循环、心跳、断线退避重连。
type Feed struct {
	cfg    FeedConfig
	reg    *symbol.Registry
	sink   BookSink
	log    *logger.Logger
	dialer *websocket.Dialer

	// 可选回调，用于指标上报
	OnMessage   func(symbolName string)
	OnReconnect func()
}

// NewFeed 创建行情客户端。
func NewFeed(cfg FeedConfig, reg *symbol.Registry, sink BookSink, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{
		cfg:    cfg.withDefaults(),
		reg:    reg,
		sink:   sink,
		log:    log,
		dialer: websocket.DefaultDialer,
	}
}

// Run 阻塞运行直到 ctx 取消。断线后按指数退避重连。
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, nil)
		if err != nil {
			f.log.Warn("feed dial failed",
				zap.String("url", f.cfg.URL),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > f.cfg.MaxBackoff {
				backoff = f.cfg.MaxBackoff
			}
			if f.OnReconnect != nil {
				f.OnReconnect()
			}
			continue
		}

		f.log.Info("feed connected",
			zap.String("url", f.cfg.URL),
			zap.String("venue", f.cfg.Venue.String()))
		backoff = time.Second

		f.readLoop(ctx, conn)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f.log.Warn("feed disconnected, reconnecting", zap.String("venue", f.cfg.Venue.String()))
		if f.OnReconnect != nil {
			f.OnReconnect()
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
	})

	// ping goroutine 随连接退出；ctx 取消时关闭连接解除读阻塞
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(f.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("feed read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		f.handleMessage(raw)
	}
}

func (f *Feed) handleMessage(raw []byte) {
	snap, err := ParseDepthSnapshot(raw)
	if err != nil {
		f.log.Debug("unparsable feed message", zap.Error(err))
		return
	}
	sym := f.reg.Register(snap.Symbol)
	f.sink.ApplySnapshot(sym, f.cfg.Venue, snap.Bids, snap.Asks, snap.Ts)
	if f.OnMessage != nil {
		f.OnMessage(snap.Symbol)
	}
}
