// Command orderpipe ingests BuffaloEx shipment orders and flattens them for
// downstream querying.
//
//	@title			orderpipe API
//	@version		1.0
//	@description	Trigger BuffaloEx order pipeline runs and query flattened orders.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token issued by `orderpipe token`. Format: "Bearer {token}"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/infrastructure/auth"
	"github.com/buffalo/orderpipe/internal/infrastructure/config"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/infrastructure/scheduler"
	"github.com/buffalo/orderpipe/internal/interfaces/http/handler"
	"github.com/buffalo/orderpipe/internal/interfaces/http/router"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}
	command := flag.Arg(0)
	if command != "token" && flag.NArg() != 1 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, command, flag.Args()[1:], cfg, log)
	stop()

	if err != nil {
		log.Error("orderpipe failed", zap.String("command", command), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	_ = logger.Sync(log)
}

func run(ctx context.Context, command string, args []string, cfg *config.Config, log *zap.Logger) error {
	switch command {
	case "token":
		return issueToken(cfg, args)
	case "ingest", "transform", "run", "serve":
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "ingest":
		_, err = a.runner.Run(ctx, scheduler.PhaseIngest, scheduler.TriggerCLI)
	case "transform":
		_, err = a.runner.Run(ctx, scheduler.PhaseTransform, scheduler.TriggerCLI)
	case "run":
		_, err = a.runner.RunAll(ctx, scheduler.TriggerCLI)
	case "serve":
		err = serve(ctx, cfg, a)
	}
	return err
}

// serve runs the daily trigger and the HTTP API until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, a *app) error {
	log := a.log
	if cfg.Scheduler.Enabled {
		trigger, err := scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
			Hour:          cfg.Scheduler.DailyHour,
			Minute:        cfg.Scheduler.DailyMinute,
			CheckInterval: cfg.Scheduler.CheckInterval,
		}, a.runner, log)
		if err != nil {
			return err
		}
		if err := trigger.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Warn("Daily trigger did not stop cleanly", zap.Error(err))
			}
		}()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var engineOpts []router.EngineOption
	if a.tracing {
		engineOpts = append(engineOpts, router.WithTracing(cfg.Telemetry.ServiceName, nil))
	}
	if cfg.HTTP.AuthSecret != "" {
		tokens, err := auth.NewTokenService(cfg.HTTP)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, router.WithAuth(tokens))
	} else {
		log.Warn("http.auth_secret is empty, the API is unauthenticated")
	}
	if cfg.HTTP.SwaggerEnabled {
		engineOpts = append(engineOpts, router.WithSwagger())
	}
	engine := router.NewEngine(router.Handlers{
		System: handler.NewSystemHandler(cfg.App.Name, a.db),
		Runs:   handler.NewRunHandler(a.runner),
		Orders: handler.NewOrderHandler(a.transformed),
	}, log, engineOpts...)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

// issueToken prints a signed API token. args are the subject followed by
// optional scopes; the read scope is granted when none are given.
func issueToken(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("token requires a subject")
	}
	tokens, err := auth.NewTokenService(cfg.HTTP)
	if err != nil {
		return err
	}

	scopes := args[1:]
	if len(scopes) == 0 {
		scopes = []string{auth.ScopeRead}
	}
	for _, scope := range scopes {
		if scope != auth.ScopeRead && scope != auth.ScopeTrigger {
			return fmt.Errorf("unknown scope %q", scope)
		}
	}

	token, expiresAt, err := tokens.Issue(args[0], scopes...)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `BuffaloEx order pipeline

Usage:
  orderpipe <command>
  orderpipe token <subject> [read|trigger ...]

Commands:
  ingest      Log in to the portal and store every new order detail
  transform   Flatten the raw store into orders_transformed
  run         ingest, then transform
  serve       Run the daily scheduler and the HTTP trigger API
  token       Print a bearer token for the HTTP API (needs http.auth_secret)

Configuration is read from config.toml (., /etc/orderpipe) and ORDERPIPE_*
environment variables. BUFFALO_DB_HOST, BUFFALO_DB_PORT, BUFFALO_DB_NAME,
BUFFALO_DB_USER and BUFFALO_DB_PASS are honoured for the database.`)
}
