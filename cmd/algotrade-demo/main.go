// Command algotrade-demo wires the Cache, Message Bus, Data Engine,
// Execution Engine, Strategy Engine, and Timer service together and
// drives a handful of ticks through them, to exercise the engines'
// wiring end to end.
package main

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/algotrade/internal/bar"
	"github.com/abdoElHodaky/algotrade/internal/bus"
	"github.com/abdoElHodaky/algotrade/internal/cache"
	"github.com/abdoElHodaky/algotrade/internal/data"
	"github.com/abdoElHodaky/algotrade/internal/execution"
	"github.com/abdoElHodaky/algotrade/internal/strategy"
	"github.com/abdoElHodaky/algotrade/internal/timer"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
	"github.com/abdoElHodaky/algotrade/pkg/price"
)

// loggingAdapter is a venue adapter that only logs, for demo wiring —
// a stand-in for a real venue integration, which spec.md §4.9 leaves
// out of scope as caller-injected.
type loggingAdapter struct {
	logger *zap.Logger
	venue  identifiers.VenueId
}

func (a *loggingAdapter) SubmitOrder(o *execution.Order) (identifiers.VenueOrderId, error) {
	a.logger.Info("venue received order",
		zap.String("venue", string(a.venue)),
		zap.Uint64("order_id", uint64(o.OrderId)))
	return identifiers.NewVenueOrderId(), nil
}

func (a *loggingAdapter) CancelOrder(id identifiers.OrderId) error {
	a.logger.Info("venue received cancel", zap.Uint64("order_id", uint64(id)))
	return nil
}

func (a *loggingAdapter) ModifyOrder(id identifiers.OrderId, newQuantity price.Quantity, newPrice price.Price, hasNewPrice bool) error {
	return nil
}

// momentumStrategy submits a buy whenever it sees three consecutive
// closed bars with rising closes.
type momentumStrategy struct {
	strategy.BaseStrategy
	engine     *execution.Engine
	instrument identifiers.InstrumentId
	lastCloses []float64
}

func (s *momentumStrategy) Name() string { return "momentum-demo" }

func (s *momentumStrategy) OnBar(ctx *strategy.Context, b bar.Bar) error {
	if !b.Type.InstrumentId.Equal(s.instrument) {
		return nil
	}
	s.lastCloses = append(s.lastCloses, b.Close)
	if len(s.lastCloses) < 3 {
		return nil
	}
	n := len(s.lastCloses)
	if s.lastCloses[n-3] < s.lastCloses[n-2] && s.lastCloses[n-2] < s.lastCloses[n-1] {
		qty, err := price.QuantityFromFloat(1, price.QuantityPrecision)
		if err != nil {
			return err
		}
		o := execution.NewOrder(ctx.Config.StrategyId, s.instrument, execution.Buy, execution.Market, qty, execution.IOC)
		_, err = s.engine.SubmitOrder(o)
		return err
	}
	return nil
}

const heartbeatInterval = time.Second

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()

	market := cache.NewMarket(cache.DefaultMarketConfig())
	messageBus := bus.New(logger, bus.WithMetrics(registry, "demo"))
	defer messageBus.Close()

	dataEngine := data.New(market, data.DefaultConfig())
	if err := dataEngine.Start(); err != nil {
		logger.Fatal("failed to start data engine", zap.Error(err))
	}
	defer dataEngine.Stop()

	execConfig := execution.DefaultConfig()
	execConfig.Name = "demo"
	execConfig.Registerer = registry
	execEngine, err := execution.New(messageBus, logger, execConfig)
	if err != nil {
		logger.Fatal("failed to create execution engine", zap.Error(err))
	}
	defer execEngine.Close()

	quoteCache := cache.NewGeneric[float64](cache.GenericConfig{
		MaxSize:          1_000,
		EnableStatistics: true,
		Name:             "demo-quotes",
		Registerer:       registry,
	})

	instrument := identifiers.NewInstrumentId("BTCUSD", "DEMO")
	execEngine.ConfigureRouting(instrument, "DEMO")
	execEngine.RegisterVenueAdapter("DEMO", &loggingAdapter{logger: logger, venue: "DEMO"})

	barType := bar.Type{InstrumentId: instrument, Spec: bar.Specification{Step: 1, Aggregation: bar.Tick}}
	dataEngine.AddBarAggregator(barType)

	strategyEngine := strategy.New()
	mom := &momentumStrategy{engine: execEngine, instrument: instrument}
	if err := strategyEngine.AddStrategy(mom, strategy.Config{
		StrategyId:  "momentum-demo",
		Name:        "momentum-demo",
		Instruments: []identifiers.InstrumentId{instrument},
	}); err != nil {
		logger.Fatal("failed to register strategy", zap.Error(err))
	}
	if err := strategyEngine.Start(); err != nil {
		logger.Warn("strategy engine reported errors on start", zap.Error(err))
	}
	defer strategyEngine.Stop()

	timerSvc := timer.New(logger, timer.DefaultConfig())
	defer timerSvc.Close()
	if err := timerSvc.SetTimer("heartbeat", heartbeatInterval, 0, nil, func(name string) {
		if err := strategyEngine.ProcessTimer(name); err != nil {
			logger.Warn("strategy timer dispatch reported errors", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("failed to register heartbeat timer", zap.Error(err))
	}

	prices := []float64{100, 101, 102, 103}
	for i, p := range prices {
		closed, ok, err := dataEngine.ProcessTradeTick(cache.TradeTick{
			InstrumentId: instrument,
			Price:        p,
			Size:         1,
			TsEvent:      uint64(i + 1),
		})
		if err != nil {
			logger.Fatal("failed to process trade tick", zap.Error(err))
		}
		if ok {
			if err := strategyEngine.ProcessBar(closed); err != nil {
				logger.Warn("strategy bar dispatch reported errors", zap.Error(err))
			}
		}
		quoteCache.Put(instrument.String(), p)
	}

	stats := dataEngine.Statistics()
	quoteStats := quoteCache.Statistics()
	metricFamilies, err := registry.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", zap.Error(err))
	}
	logger.Info("demo run complete",
		zap.Uint64("ticks_processed", stats.TicksProcessed),
		zap.Uint64("bars_generated", stats.BarsGenerated),
		zap.Int("active_orders", execEngine.GetActiveOrdersCount()),
		zap.Uint64("quote_cache_inserts", quoteStats.Inserts),
		zap.Int("metric_families", len(metricFamilies)),
	)
}
