package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sbutler/safer-illinois-app/internal/api"
	"github.com/sbutler/safer-illinois-app/internal/auth"
	"github.com/sbutler/safer-illinois-app/internal/codec"
	"github.com/sbutler/safer-illinois-app/internal/config"
	"github.com/sbutler/safer-illinois-app/internal/logging"
	"github.com/sbutler/safer-illinois-app/internal/snapshot"
	"github.com/sbutler/safer-illinois-app/internal/store"
	"github.com/sbutler/safer-illinois-app/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(zerolog.New(os.Stderr), "config", err)
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fatal(logger, "config", err)
	}
	if err := run(cfg, logger); err != nil {
		fatal(logger, "server", err)
	}
	logger.Info().Msg("stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	authn, err := auth.NewAuthenticator(cfg.AdminAPIKey)
	if err != nil {
		return err
	}

	telemetry.Init()

	opts := api.Options{
		Env:            cfg.Env,
		Auth:           authn,
		Logger:         logger,
		Location:       loc,
		RateLimitPerIP: cfg.RateLimitPerIP,
	}
	if cfg.PrivateKeyFile != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return err
		}
		if opts.PrivateKey, err = codec.ParsePrivateKeyPEM(pem); err != nil {
			return err
		}
		d := codec.NewDispatcher(cfg.CryptoWorkers)
		defer d.Close()
		opts.Dispatcher = d
		logger.Info().Int("workers", cfg.CryptoWorkers).Msg("sealed record evaluation enabled")
	}

	srvAPI := api.NewServer(st, opts)
	if err := bootstrap(ctx, srvAPI, st, cfg, logger); err != nil {
		return err
	}

	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // rule streams stay open
		IdleTimeout:  60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range map[string]*http.Server{"api": apiSrv, "metrics": metricsSrv} {
		g.Go(func() error {
			logger.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutCtx), metricsSrv.Shutdown(shutCtx))
	})
	return g.Wait()
}

// bootstrap publishes the stored rule document, or seeds the store from
// RULES_FILE when it has none. Without either the server starts with an
// empty rule set.
func bootstrap(ctx context.Context, srv *api.Server, st store.Store, cfg *config.Config, logger zerolog.Logger) error {
	err := srv.RebuildSnapshot(ctx)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if cfg.RulesFile == "" {
		logger.Warn().Str("env", cfg.Env).Msg("no rule document; serving empty rule set")
		return nil
	}

	doc, err := os.ReadFile(cfg.RulesFile)
	if err != nil {
		return err
	}
	if err := srv.Publish(doc); err != nil {
		return err
	}
	snap := snapshot.Load()
	if _, err := st.PutDocument(ctx, store.Document{Env: cfg.Env, Body: snap.Document, ETag: snap.ETag}); err != nil {
		return err
	}
	logger.Info().Str("file", cfg.RulesFile).Msg("rule document seeded")
	return nil
}

func fatal(logger zerolog.Logger, component string, err error) {
	logger.Error().Err(err).Str("component", component).Msg("fatal")
	os.Exit(1)
}
