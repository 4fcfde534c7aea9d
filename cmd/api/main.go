package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimdocs-backend/internal/bootstrap"
	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/shared/config"
	"claimdocs-backend/internal/shared/server"
	"claimdocs-backend/internal/shared/storage/db"
	"claimdocs-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		telemetry.Error("bootstrap failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	router := server.NewRouter(server.RouterDeps{
		Env:            cfg.Env,
		AllowedOrigins: cfg.CORSAllowOrigin,
		Documents:      documents.NewHandler(app.Documents, cfg.MaxUploadBytes, cfg.PollMinInterval),
		Health:         app.Health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		telemetry.Info("api listening", map[string]any{"port": cfg.Port, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error("server stopped", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	telemetry.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Error("shutdown incomplete", map[string]any{"error": err.Error()})
	}
}
