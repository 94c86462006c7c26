package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dployr-io/sandbox/internal/api"
	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/ledger"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/middleware"
	"github.com/dployr-io/sandbox/internal/provider"
	"github.com/dployr-io/sandbox/internal/reconcile"
	"github.com/dployr-io/sandbox/internal/upstream"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)

	led, err := ledger.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger", "error", err)
	}
	defer led.Close()

	up := upstream.New(cfg.UpstreamURL, cfg.UpstreamTimeout, logger)
	reg := provider.NewRegistry()
	for _, name := range cfg.Providers {
		reg.Register(name, provider.NewUpstream(name, up))
	}
	logger.Info("providers registered", "providers", reg.Names())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.ReconcileInterval > 0 {
		sweeper := reconcile.New(led, up, cfg.ReconcileInterval, logger)
		go sweeper.Run(ctx)
		logger.Info("reconciliation sweeper started", "interval", cfg.ReconcileInterval.String())
	}

	r := api.Router(cfg, logger, led, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           middleware.Recoverer(r, logger),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// the client response must land within upstream timeout + small overhead
		WriteTimeout:   cfg.UpstreamTimeout + 5*time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB headers
	}
	logger.Info("server starting", "addr", srv.Addr, "upstream", cfg.UpstreamURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}
