package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fbxdash/backend/fbxd/internal/config"
	"fbxdash/backend/fbxd/internal/server"
	"fbxdash/backend/fbxd/internal/stats"
)

func main() {
	cfg := config.FromEnv()
	logger := server.Logger(cfg)

	srv := server.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := stats.NewStore(*logger, cfg.DataDir, cfg.StatsRetention)
	if err != nil {
		logger.Warn().Err(err).Msg("stats history disabled")
	} else {
		defer store.Close()
		srv.SetStats(store)
		client, session, detector := srv.Core()
		sampler := stats.NewSampler(*logger, client, session, detector, store, cfg.StatsInterval)
		go sampler.Run(ctx)
	}

	httpSrv := &http.Server{Addr: cfg.Bind, Handler: srv.Router()}
	go func() {
		logger.Info().Msgf("fbxd listening on http://%s", cfg.Bind)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	// Close the appliance session so the box does not accumulate stale ones.
	_, session, _ := srv.Core()
	session.Logout(shutdownCtx)
}
