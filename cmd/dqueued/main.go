// Command dqueued is the composition root for the durable queue service: it loads
// configuration, wires up the ambient observability stack, starts the queue engine
// against PostgreSQL, mounts the admin HTTP surface, and (optionally) runs a sample
// subscription. Invoked with "admin <verb> ..." as its first argument it instead
// drops into the operator CLI against the same engine, without starting the HTTP
// server or any subscriptions.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/durablequeue/admin/cli"
	adminhttp "github.com/rise-and-shine/durablequeue/admin/http"
	"github.com/rise-and-shine/durablequeue/cfgloader"
	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/http/server"
	"github.com/rise-and-shine/durablequeue/http/server/middleware"
	"github.com/rise-and-shine/durablequeue/meta"
	"github.com/rise-and-shine/durablequeue/observability/alert"
	"github.com/rise-and-shine/durablequeue/observability/logger"
	"github.com/rise-and-shine/durablequeue/observability/tracing"
	"github.com/rise-and-shine/durablequeue/pagination"
	"github.com/rise-and-shine/durablequeue/pg"
)

func main() {
	cfg := cfgloader.MustLoad[config]()

	logger.SetGlobal(cfg.Logger)
	log := logger.Named("cmd.dqueued")
	meta.SetServiceInfo(cfg.ServiceName, cfg.ServiceVersion)

	shutdownTracer, err := tracing.InitGlobalTracer(cfg.Tracing)
	if err != nil {
		log.Fatalx(errx.Wrap(err))
	}
	defer func() {
		if err := shutdownTracer(); err != nil {
			log.Warnx(errx.Wrap(err))
		}
	}()

	if err := alert.SetGlobal(cfg.Alert, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		log.Fatalf("failed to initialize alert provider: %v", err)
	}
	alertProvider, err := alert.NewProvider(cfg.Alert, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		log.Fatalx(errx.Wrap(err))
	}

	pool, err := pg.NewPool(cfg.DB)
	if err != nil {
		log.Fatalx(errx.Wrap(err))
	}
	defer pool.Close()

	db, err := pg.NewBunDB(cfg.DB)
	if err != nil {
		log.Fatalx(errx.Wrap(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warnx(errx.Wrap(err))
		}
	}()

	engine := dqueue.New(db, pool, cfg.Queue, log, alertProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.Fatalx(errx.Wrap(err))
	}

	if len(os.Args) > 1 && os.Args[1] == "admin" {
		runAdminCLI(ctx, engine, os.Args[2:])
		return
	}

	runService(ctx, cancel, engine, cfg, log)
}

func runAdminCLI(ctx context.Context, engine dqueue.Engine, args []string) {
	if err := cli.Run(ctx, engine, os.Stdout, args); err != nil {
		os.Exit(1)
	}
}

func runService(ctx context.Context, cancel context.CancelFunc, engine dqueue.Engine, cfg config, log logger.Logger) {
	var wg sync.WaitGroup

	var sub dqueue.Subscription
	if cfg.ExampleQueueEnabled {
		var err error
		sub, err = startExampleSubscription(ctx, engine, log)
		if err != nil {
			log.Fatalx(errx.Wrap(err))
		}
	}

	httpSrv := buildHTTPServer(cfg, engine, log)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting admin HTTP server")
		if err := httpSrv.Start(); err != nil {
			log.With("error", err).Warn("admin HTTP server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if sub != nil {
		if err := sub.Stop(shutdownCtx); err != nil {
			log.Warnx(errx.Wrap(err))
		}
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		log.Warnx(errx.Wrap(err))
	}
	if err := httpSrv.Stop(); err != nil {
		log.Warnx(errx.Wrap(err))
	}

	wg.Wait()

	if err := log.Sync(); err != nil {
		// logger is shutting down; nothing further to log this into.
		_ = err
	}
}

func buildHTTPServer(cfg config, engine dqueue.Engine, log logger.Logger) *server.HTTPServer {
	mws := []server.Middleware{
		middleware.NewRecoveryMW(log),
		middleware.NewTracingMW(),
		middleware.NewTimeoutMW(cfg.HTTP.HandleTimeout),
		middleware.NewMetaInjectMW(cfg.ServiceName, cfg.ServiceVersion),
		middleware.NewAlertingMW(),
		middleware.NewLoggerMW(log),
		middleware.NewErrorHandlerMW(cfg.HTTP.HideErrorDetails),
	}

	httpSrv := server.NewHTTPServer(cfg.HTTP, mws)
	httpSrv.RegisterRouter(func(r fiber.Router) {
		adminhttp.RegisterRoutes(r.Group("/admin"), engine, pagination.DefaultConfig())
	})

	return httpSrv
}
