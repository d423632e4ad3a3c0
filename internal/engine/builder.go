package engine

import (
	"fmt"
	"time"

	"trading-engine-go/config"
	"trading-engine-go/infrastructure/alert"
	"trading-engine-go/infrastructure/logger"
	"trading-engine-go/market"
	"trading-engine-go/metrics"
	"trading-engine-go/order"
	"trading-engine-go/risk"
	"trading-engine-go/strategy"
	"trading-engine-go/symbol"
)

// Build 按配置装配一个完整引擎：注册符号、创建风控链路、
// 挂载启用的策略并接好指标与告警。
func Build(cfg config.AppConfig, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Nop()
	}

	reg := symbol.NewRegistry()
	syms := make([]symbol.ID, 0, len(cfg.Symbols))
	for _, name := range cfg.Symbols {
		syms = append(syms, reg.Register(name))
	}

	riskEng, err := risk.NewEngine(cfg.Risk, nil, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("build risk engine: %w", err)
	}

	breaker := risk.NewBreaker("order-flow", cfg.Breaker.Build(), nil, log.Logger)
	riskEng.AttachBreaker(breaker)

	kill := risk.NewKillSwitch(nil, log.Logger)
	riskEng.AttachKillSwitch(kill)

	errors := risk.NewErrorRateTracker(cfg.ErrorRate.Build(), nil)

	var adverse *strategy.AdverseFilter
	if cfg.Strategies.Adverse.Enabled {
		adverse = strategy.NewAdverseFilter(cfg.Strategies.Adverse.Build())
	}

	mon := metrics.New(metrics.DefaultConfig())

	coord := strategy.NewCoordinator(riskEng, adverse, cfg.Strategies.Notional, log.Logger)
	coord.OnSignal = mon.RecordSignal
	for _, sym := range syms {
		if cfg.Strategies.OBI.Enabled {
			if cfg.Strategies.OBI.Adaptive {
				coord.EnableAdaptiveOBI(sym, reg.Name(sym))
			} else {
				coord.EnableOBI(sym, cfg.Strategies.OBI.Build())
			}
		}
		if cfg.Strategies.Vol.Enabled {
			coord.EnableVol(sym, cfg.Strategies.Vol.Build())
		}
	}
	if cfg.Strategies.Arb.Enabled {
		coord.EnableArb(cfg.Strategies.Arb.Build())
	}
	if cfg.Strategies.Pairs.Enabled {
		for _, p := range cfg.Pairs {
			s1 := reg.Register(p.S1)
			s2 := reg.Register(p.S2)
			coord.EnablePairs(cfg.Strategies.Pairs.Build(), s1, s2)
			syms = appendMissing(syms, s1, s2)
		}
	}

	alerts := alert.NewManager([]alert.Channel{alert.NewLogChannel("engine", nil)}, time.Minute)

	guards := risk.MultiGuard{Guards: []risk.Guard{
		risk.NewRateGuard(cfg.Risk.MaxOrdersPerSec, nil),
	}}
	if cfg.Risk.MinOrderIntervalMs > 0 {
		guards.Guards = append(guards.Guards,
			risk.NewLatencyGuard(time.Duration(cfg.Risk.MinOrderIntervalMs)*time.Millisecond))
	}

	e, err := New(Config{
		PrimaryVenue: market.VenueBinance,
		Shock1mFrac:  cfg.Risk.Shock1mFrac,
		Shock5mFrac:  cfg.Risk.Shock5mFrac,
	}, Components{
		Registry:    reg,
		Tracker:     market.NewTracker(),
		Risk:        riskEng,
		Breaker:     breaker,
		Kill:        kill,
		Errors:      errors,
		Coordinator: coord,
		Adverse:     adverse,
		Orders:      order.NewTracker(0),
		Guard:       guards,
		Monitor:     mon,
		Alerts:      alerts,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	e.Track(syms...)
	return e, nil
}

func appendMissing(syms []symbol.ID, more ...symbol.ID) []symbol.ID {
	for _, s := range more {
		seen := false
		for _, have := range syms {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			syms = append(syms, s)
		}
	}
	return syms
}
