package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"netlogd/internal/archiver"
	"netlogd/internal/config"
	"netlogd/internal/eventbus"
	"netlogd/internal/logger"
	"netlogd/internal/metrics"
	"netlogd/internal/observer"
	"netlogd/internal/server"
)

func main() {
	// A Fargate task only ever gets the logical CPUs its vCPU request
	// entitles it to; leaving GOMAXPROCS at Go's default (all cores the
	// host reports) causes busy-loop scheduling under partial CPU
	// shares. GOMAXPROCS lets ops override per task; default to 1.
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runtime.GOMAXPROCS(n)
		}
	} else {
		runtime.GOMAXPROCS(1)
	}

	cfg := config.Load()
	logger.Init(cfg)
	m := metrics.New()

	// The file executor owns every piece of the observer's on-disk
	// state (chunk files, constants file, closing file); the archiver
	// only ever reads a finished file after Stop/Stitch has produced
	// it, so it is wired up as an entirely separate component rather
	// than something the observer calls into directly.
	arch := archiver.NewManager(cfg, m)

	bus := eventbus.New()
	obs := observer.New(cfg.FinalLogPath, cfg.MaxTotalSize, cfg.ChunkCount, constants(cfg), m,
		observer.WithFlushThreshold(cfg.FlushThreshold))
	obs.StartObserving(bus, eventbus.CaptureModeDefault)

	h := server.NewHandler(cfg, m, bus)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      h.Routes(),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		sig := <-sigCh
		log.Printf("[INFO] shutdown signal received: %v", sig)

		// 1) Stop taking new HTTP traffic.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[ERROR] http shutdown: %v", err)
		}
		cancel()

		// 2) Drain the write queue, stitch the final log file, and
		// only once that has actually finished on the file executor,
		// hand the finished file to the archiver. Submit is safe to
		// call even if archiving is disabled — it is then a no-op.
		done := make(chan struct{})
		obs.StopObserving(bus, nil, func() {
			arch.Submit(cfg.FinalLogPath)
			close(done)
		})
		<-done

		// 3) Let the archiver finish whatever upload or DLQ write it
		// just started before the process exits.
		arch.Shutdown()
		log.Println("[INFO] shutdown complete")
	}()

	log.Printf("[INFO] netlogd listening on %s, writing to %s", cfg.HTTPAddr, cfg.FinalLogPath)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[FATAL] http server terminated: %v", err)
	}
}

// constants is the value written as the prologue of every log (into
// constants.json in bounded mode, straight into the final file in
// unbounded mode) (spec.md §4.3.2) — in Chromium this is the dictionary
// of statically-known constant tables (event types, string mappings,
// etc). This repository has no such fixed catalog to mirror, so it
// carries the handful of fields a reader stitching the log back
// together actually needs to make sense of the instance that wrote it.
func constants(cfg config.Config) any {
	return map[string]any{
		"service":  cfg.ServiceName,
		"instance": cfg.InstanceID,
	}
}
