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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"zimship/config"
	"zimship/logging"
	"zimship/obs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zimship-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bknd, err := logging.NewBackend(cfg.LogFile, cfg.DebugLevel, os.Stdout)
	if err != nil {
		return err
	}
	defer bknd.Close()
	log := bknd.Logger("API")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "zimship-api", cfg.OTelEndpoint, cfg.AppEnv)
	if err != nil {
		log.Warnf("Tracing disabled: %v", err)
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer shutdownTracer(context.Background())

	a, err := newApp(ctx, cfg, bknd)
	if err != nil {
		return err
	}
	defer a.Close()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(a.server.Router(), "zimship-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if a.worker != nil {
		g.Go(func() error {
			deliveries, err := a.consumer.Deliveries(gctx)
			if err != nil {
				log.Errorf("Notification worker not started: %v", err)
				return nil
			}
			return a.worker.Run(gctx, deliveries)
		})
	}

	return g.Wait()
}
