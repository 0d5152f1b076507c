package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ronycse16b/soulcraft-orders/internal/api"
	"github.com/ronycse16b/soulcraft-orders/internal/config"
	"github.com/ronycse16b/soulcraft-orders/internal/database"
	"github.com/ronycse16b/soulcraft-orders/internal/lifecycle"
	"github.com/ronycse16b/soulcraft-orders/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Error("connect to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to database")

	st := store.New(db)
	svc := lifecycle.NewService(st, lifecycle.LogNotifier{Log: log}, log)
	handler := api.NewHandler(log, st, svc, st)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	log.Info("server stopped")
}
