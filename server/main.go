package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := LoadConfig()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db open", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}
	if n, err := store.PromoteAdmins(ctx, cfg.AdminEmails); err != nil {
		log.Error("promote admins", "err", err)
		os.Exit(1)
	} else if n > 0 {
		log.Info("promoted admins", "count", n)
	}

	var model ChatModel = disabledModel{}
	if cfg.Brain.Enabled() {
		model = NewOpenAIClient(cfg.Brain)
	} else {
		log.Warn("brain disabled", "reason", "BRAIN_API_KEY not set")
	}

	engine := NewEngine(store, NewBlobStore(cfg.UploadDir, cfg.MaxUploadBytes), DefaultPolicy(), log)
	brain := NewBrain(store, engine, model, cfg.Brain.HistoryLimit, log)

	mux := http.NewServeMux()
	api := newAPI(cfg, store, engine, brain, log)
	api.routes(mux)

	// WriteTimeout stays zero: SSE streams and model calls outlive a fixed deadline
	srv := &http.Server{Addr: cfg.Addr, Handler: withLogging(log, mux),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second}

	go func() {
		log.Info("listening", "addr", cfg.Addr, "db", string(store.dialect))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			log.Error("listen", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	ctxSh, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSh()
	if err := srv.Shutdown(ctxSh); err != nil {
		log.Error("shutdown", "err", err)
	}
}
