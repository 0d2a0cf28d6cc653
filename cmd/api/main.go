package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/config"
	"github.com/fleetgate/fleetgate/internal/dispatch"
	"github.com/fleetgate/fleetgate/internal/httpapi"
	"github.com/fleetgate/fleetgate/internal/identity"
	"github.com/fleetgate/fleetgate/internal/obs"
	"github.com/fleetgate/fleetgate/internal/store/pg"
)

var version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := obs.Logger()
		boot.Fatal().Err(err).Msg("load configuration")
	}

	obs.InitLogger(obs.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	obs.Init()
	log := obs.Logger()

	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	provider, err := identity.NewLocal(store.Credentials(), store.RefreshTokens(), cfg.Auth.Secret,
		identity.WithIssuer(cfg.Auth.Issuer),
		identity.WithAccessTTL(cfg.Auth.AccessTTL),
		identity.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build identity provider")
	}

	resolver, err := identity.NewTokenResolver(provider)
	if err != nil {
		log.Fatal().Err(err).Msg("build token resolver")
	}

	gate, err := access.NewGate(resolver, store,
		access.WithLogger(log),
		access.WithDecisionHook(func(shape string, outcome access.Outcome) {
			obs.RecordGateDecision(shape, outcome.String())
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build authorization gate")
	}

	svc, err := dispatch.NewService(gate, provider, store.Stores())
	if err != nil {
		log.Fatal().Err(err).Msg("build dispatch service")
	}

	api := httpapi.New(svc, gate, provider, httpapi.ReadyProbe{DB: store.DB()}, httpapi.Options{
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		Version:         version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting fleetgate-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("stopped")
}
