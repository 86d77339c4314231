package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nixlabs/nix-engine/params"
	"github.com/nixlabs/nix-engine/pkg/api"
	"github.com/nixlabs/nix-engine/pkg/nix/runtime"
	"github.com/nixlabs/nix-engine/pkg/nixlog"
	"github.com/nixlabs/nix-engine/pkg/storage"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := nixlog.NewWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("nixlog: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("log_initialized", "log_file", cfg.Node.LogFile)

	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "err", err)
	}
	defer store.Close()

	clock := runtime.NewRealSlotClock()
	engine := runtime.NewEngine(logger, clock)

	markets, err := store.LoadAllMarkets()
	if err != nil {
		sugar.Fatalw("load_markets_failed", "err", err)
	}
	for _, m := range markets {
		engine.InstallMarket(m)
		loans, err := store.LoadMarketLoans(m.Address)
		if err != nil {
			sugar.Fatalw("load_loans_failed", "market", m.Address.Hex(), "err", err)
		}
		if loans != nil {
			engine.InstallLoans(loans)
		}
	}
	globals, err := store.LoadAllGlobals()
	if err != nil {
		sugar.Fatalw("load_globals_failed", "err", err)
	}
	for _, g := range globals {
		engine.InstallGlobal(g)
	}
	sugar.Infow("state_loaded", "markets", len(markets), "globals", len(globals))

	dispatcher := runtime.NewDispatcher(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)

	server := api.NewServer(engine, dispatcher)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	persistTicker := time.NewTicker(5 * time.Second)
	defer persistTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			persistAll(sugar, store, engine)
			return
		case <-persistTicker.C:
			persistAll(sugar, store, engine)
		}
	}
}

func persistAll(sugar *zap.SugaredLogger, store *storage.Store, engine *runtime.Engine) {
	for _, addr := range engine.Markets() {
		m := engine.Market(addr)
		if m == nil {
			continue
		}
		if err := store.SaveMarket(m); err != nil {
			sugar.Errorw("save_market_failed", "market", addr.Hex(), "err", err)
		}
		if loans := engine.MarketLoans(addr); loans != nil {
			if err := store.SaveMarketLoans(loans); err != nil {
				sugar.Errorw("save_loans_failed", "market", addr.Hex(), "err", err)
			}
		}
	}
	for _, mint := range engine.Globals() {
		if g := engine.Global(mint); g != nil {
			if err := store.SaveGlobal(g); err != nil {
				sugar.Errorw("save_global_failed", "mint", mint.Hex(), "err", err)
			}
		}
	}
}
