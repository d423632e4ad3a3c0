// feedprobe 连接行情流并打印各符号的盘口顶档，用于验证接入链路。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-engine-go/gateway"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/market"
	"trading-engine-go/symbol"
)

type printSink struct {
	reg *symbol.Registry
}

func (s *printSink) ApplySnapshot(sym symbol.ID, venue market.Venue, bids, asks []market.Level, ts time.Time) {
	var bid, ask float64
	if len(bids) > 0 {
		bid = bids[0].Price
	}
	if len(asks) > 0 {
		ask = asks[0].Price
	}
	fmt.Printf("%s %s %s bid=%.4f ask=%.4f levels=%d/%d\n",
		ts.Format("15:04:05.000"), venue, s.reg.Name(sym), bid, ask, len(bids), len(asks))
}

func main() {
	url := flag.String("url", "", "行情 WS 地址")
	venueName := flag.String("venue", "BINANCE", "行情场所")
	flag.Parse()

	if *url == "" {
		log.Fatal("缺少 -url 参数")
	}

	reg := symbol.NewRegistry()
	feed := gateway.NewFeed(gateway.FeedConfig{
		URL:   *url,
		Venue: market.ParseVenue(*venueName),
	}, reg, &printSink{reg: reg}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("行情流退出: %v", err)
	}
}
