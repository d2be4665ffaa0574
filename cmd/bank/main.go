package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/atmx/bank-engine/internal/bank"
	"github.com/atmx/bank-engine/internal/config"
	"github.com/atmx/bank-engine/internal/dispatch"
	"github.com/atmx/bank-engine/internal/logger"
	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/obs"
	"github.com/atmx/bank-engine/internal/vip"
)

func main() {
	// stdout carries the periodic status render; diagnostics go to stderr.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <vip-workers> <trace-file>...\n", os.Args[0])
		os.Exit(1)
	}
	vipWorkers, err := strconv.Atoi(os.Args[1])
	if err != nil || vipWorkers < 0 {
		fmt.Fprintf(os.Stderr, "usage: %s <vip-workers> <trace-file>...\n", os.Args[0])
		os.Exit(1)
	}
	traces := os.Args[2:]

	// Every trace file must be openable before any thread starts.
	for _, path := range traces {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("cannot open trace file", "path", path, "err", err)
			os.Exit(1)
		}
		f.Close()
	}

	cfg := config.Load()

	lg, err := logger.Open(cfg.LogFile)
	if err != nil {
		slog.Error("cannot open transaction log", "path", cfg.LogFile, "err", err)
		os.Exit(1)
	}

	eng := bank.New(lg, len(traces))
	queue := vip.NewQueue()
	runID := uuid.New().String()
	slog.Info("bank engine starting",
		"run_id", runID,
		"agents", len(traces),
		"vip_workers", vipWorkers,
		"log_file", cfg.LogFile,
	)

	// --- Ops HTTP server (optional) ---
	var opsSrv *http.Server
	if cfg.OpsAddr != "" {
		hub := obs.NewHub(runID, eng.Stopping(), cfg.OpsAllowAnyOrigin)
		go hub.Run()
		eng.OnStatus = hub.BroadcastStatus

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok","service":"bank-engine"}`))
		})
		r.Handle("/metrics", metrics.Handler())
		r.Get("/ws", hub.HandleWS)

		opsSrv = &http.Server{
			Addr:        cfg.OpsAddr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		}
		go func() {
			slog.Info("ops server listening", "addr", cfg.OpsAddr)
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("ops server error", "err", err)
				os.Exit(1)
			}
		}()
	}

	// --- Background services ---
	var services sync.WaitGroup
	services.Add(2)
	go func() {
		defer services.Done()
		eng.RunStatus(os.Stdout, cfg.StatusPeriod)
	}()
	go func() {
		defer services.Done()
		eng.RunCommission(cfg.CommissionPeriod)
	}()

	// --- VIP workers ---
	var vipWG sync.WaitGroup
	for i := 0; i < vipWorkers; i++ {
		vipWG.Add(1)
		go func() {
			defer vipWG.Done()
			if err := dispatch.RunVIPWorker(eng, queue); err != nil {
				slog.Error("vip worker failed", "err", err)
				os.Exit(1)
			}
		}()
	}

	// --- Agent dispatchers ---
	var agents sync.WaitGroup
	for i, path := range traces {
		agents.Add(1)
		go func(id int, path string) {
			defer agents.Done()
			src, err := dispatch.OpenFile(path)
			if err != nil {
				slog.Error("cannot open trace file", "path", path, "err", err)
				os.Exit(1)
			}
			defer src.Close()
			d := &dispatch.Dispatcher{Bank: eng, Queue: queue, ID: id, Pace: cfg.AgentPace}
			if err := d.Run(src); err != nil {
				slog.Error("agent dispatcher failed", "agent", id, "err", err)
				os.Exit(1)
			}
		}(i+1, path)
	}

	// Cooperative shutdown: agents drain first, then the VIP queue closes and
	// its workers drain, then the background services stop.
	agents.Wait()
	queue.Close()
	vipWG.Wait()
	eng.RequestStop()
	services.Wait()

	if opsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsSrv.Shutdown(ctx); err != nil {
			slog.Error("ops server shutdown error", "err", err)
		}
	}
	lg.Close()
	slog.Info("bank engine stopped", "run_id", runID)
}
