// Command opusbot runs the order-book-imbalance perpetuals engine: it
// wires exchange market data into the local book/signal/risk pipeline
// and drives trade decisions from a single event-loop goroutine.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/config"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/engine"
	"github.com/furkntrg41/opus-trade-bot/internal/event"
	"github.com/furkntrg41/opus-trade-bot/internal/exchange"
	"github.com/furkntrg41/opus-trade-bot/internal/filter"
	"github.com/furkntrg41/opus-trade-bot/internal/logging"
	"github.com/furkntrg41/opus-trade-bot/internal/loop"
	"github.com/furkntrg41/opus-trade-bot/internal/obi"
	"github.com/furkntrg41/opus-trade-bot/internal/orders"
	"github.com/furkntrg41/opus-trade-bot/internal/position"
	"github.com/furkntrg41/opus-trade-bot/internal/risk"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const eventBusCapacity = 4096

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.String("mode", "live", "engine mode: live|replay")
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	symbolFlag := flag.String("symbol", "BTCUSDT", "traded symbol")
	speed := flag.Float64("speed", 1.0, "replay-mode synthetic tick speed multiplier")
	syntheticTicks := flag.Int("synthetic-ticks", 0, "replay-mode: stop after N synthetic ticks (0 = run until signaled)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log, err := logging.New(*mode == "replay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	go serveMetrics(log)

	symbol := core.NewSymbol(strings.ToUpper(*symbolFlag))

	var client exchange.Client
	if *mode == "replay" {
		client = exchange.NewMockClient()
	} else {
		binanceCfg := exchange.DefaultBinanceConfig()
		binanceCfg.APIKey = cfg.Exchange.APIKey
		binanceCfg.SecretKey = cfg.Exchange.SecretKey
		binanceCfg.Testnet = cfg.Exchange.Testnet()
		client = exchange.NewBinanceClient(binanceCfg, log)
	}

	bus := event.NewBus(eventBusCapacity)

	obiGen := obi.New(cfg.OBIGeneratorConfig())
	signalFilter := filter.New(cfg.FilterManagerConfig())
	riskMgr := risk.New(cfg.RiskManagerConfig())
	orderMgr := orders.New(client, log)
	posTracker := position.New(client, log)

	engineCfg := cfg.EngineConfig(symbol.String())
	eng := engine.New(engineCfg, client, obiGen, signalFilter, riskMgr, orderMgr, posTracker, log)

	if !cfg.Trading.Enabled {
		log.Warn("trading.enabled is false; the engine does not read this flag and still places orders on qualified signals")
	}

	client.OnError(func(err error) {
		log.Warn("exchange client error", zap.Error(err))
	})

	if *mode == "replay" {
		runReplay(ctx, bus, symbol, *speed, *syntheticTicks, log)
	} else {
		if err := eng.Initialize(ctx); err != nil {
			log.Error("engine initialize failed", zap.Error(err))
			return 1
		}
		if err := client.SubscribeDepth(symbol, depthBridge(bus)); err != nil {
			log.Error("subscribe depth failed", zap.Error(err))
			return 1
		}
		if err := client.Start(ctx); err != nil {
			log.Error("exchange client start failed", zap.Error(err))
			return 1
		}
		defer client.Stop(context.Background())
	}

	l := loop.New(bus, eng.OnDepth, eng.OnTimer, log, engine.Timers()...)
	l.Run(ctx)

	log.Info("engine stopped")
	return 0
}

func serveMetrics(log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              "0.0.0.0:9090",
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	log.Info("metrics server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}

// depthBridge adapts an exchange.DepthUpdate callback into a
// event.Bus.PublishDepth call, the single crossing point between the
// exchange client's own goroutine and the engine's event-loop goroutine.
func depthBridge(bus *event.Bus) func(*exchange.DepthUpdate) {
	return func(d *exchange.DepthUpdate) {
		bus.PublishDepth(event.DepthUpdate{
			Symbol:      d.Symbol,
			SequenceID:  d.SequenceID,
			EventTimeMs: d.EventTimeMs,
			Bids:        d.Bids,
			Asks:        d.Asks,
		})
	}
}

// runReplay generates synthetic depth ticks directly onto the bus instead
// of a live exchange feed, standing in for the out-of-scope "data
// recording/replay tooling" collaborator — enough to exercise the engine
// end to end without a real connection. speed scales the tick interval;
// syntheticTicks, if non-zero, stops the feed after that many ticks.
func runReplay(ctx context.Context, bus *event.Bus, symbol core.Symbol, speed float64, syntheticTicks int, log *logging.Logger) {
	if speed <= 0 {
		speed = 1.0
	}
	interval := time.Duration(float64(100*time.Millisecond) / speed)
	rng := rand.New(rand.NewSource(1))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		midPrice := 50000.0
		count := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				midPrice += (rng.Float64() - 0.5) * 10
				bus.PublishDepth(syntheticTick(symbol, midPrice, rng))
				count++
				if syntheticTicks > 0 && count >= syntheticTicks {
					log.Info("synthetic tick budget reached, stopping replay feed", zap.Int("ticks", count))
					return
				}
			}
		}
	}()
}

func syntheticTick(symbol core.Symbol, mid float64, rng *rand.Rand) event.DepthUpdate {
	levels := 5
	bids := make([]book.PriceLevel, 0, levels)
	asks := make([]book.PriceLevel, 0, levels)
	for i := 0; i < levels; i++ {
		step := float64(i) * 0.5
		bids = append(bids, book.PriceLevel{
			Price:    core.PriceFromFloat64(mid - step - 0.1),
			Quantity: core.QuantityFromFloat64(0.1 + rng.Float64()),
		})
		asks = append(asks, book.PriceLevel{
			Price:    core.PriceFromFloat64(mid + step + 0.1),
			Quantity: core.QuantityFromFloat64(0.1 + rng.Float64()),
		})
	}
	return event.DepthUpdate{
		Symbol:      symbol,
		EventTimeMs: time.Now().UnixMilli(),
		Bids:        bids,
		Asks:        asks,
	}
}
