package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/signalroom/internal/adapters/http"
	wssignal "github.com/dkeye/signalroom/internal/adapters/signal"
	"github.com/dkeye/signalroom/internal/app"
	"github.com/dkeye/signalroom/internal/config"
	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	action, err := app.ParseBackpressureAction(cfg.Signal.Backpressure)
	if err != nil {
		return err
	}

	sessions := core.NewMemoryStore()
	conns := core.NewRegistry()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg,
		func() float64 { return float64(sessions.Len()) },
		func() float64 { return float64(conns.Len()) },
	)

	rt := &app.Router{
		Sessions:          sessions,
		Conns:             conns,
		Policy:            app.SimplePolicy{Action: action},
		Metrics:           m,
		NotifyUnavailable: cfg.Signal.NotifyUnavailableTarget,
	}

	g, ctx := errgroup.WithContext(ctx)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Signal:   wssignal.NewSignalWSController(rt, conns, m, cfg.Signal),
		Sessions: sessions,
		Metrics:  m,
		Gatherer: reg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("signalroom started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.RunJanitor(ctx, cfg.Session.EmptyTTL, cfg.Session.SweepInterval)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	return g.Wait()
}
