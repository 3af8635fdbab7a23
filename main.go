package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	"github.com/getsentry/sentry-go"
	sentryfasthttp "github.com/getsentry/sentry-go/fasthttp"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"microticks/internal/config"
	"microticks/internal/db"
	"microticks/internal/http/handlers"
	appmw "microticks/internal/http/middleware"
	"microticks/internal/logger"
	"microticks/internal/metrics"
	ui "microticks/web"
)

const usage = `usage: microticks <command> [flags]

commands:
  serve            run the HTTP API (default)
  initdb           create the database tables
  createconsumer   register a consumer and print its key
  deleteconsumer   deactivate a consumer
  cleanup          remove dangling sessions and events
`

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain returns the process exit code so deferred log syncing runs
// before the process exits.
func realMain(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 2
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "invalid log level %q: %v\n", cfg.LogLevel, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	if err := run(args, cfg, log, stdout); err != nil {
		log.Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}

// run dispatches a subcommand. Without arguments it serves.
func run(args []string, cfg *config.Config, log *zap.Logger, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(args, cfg, log)
	case "initdb":
		return withGateway(cfg, log, func(gw *db.Gateway) error {
			log.Info("initialized the database")
			return nil
		})
	case "createconsumer":
		return createConsumer(args, cfg, log, stdout)
	case "deleteconsumer":
		if len(args) != 1 {
			return errors.New("deleteconsumer takes exactly one NAME argument")
		}
		return withGateway(cfg, log, func(gw *db.Gateway) error {
			if err := gw.Consumers.Deactivate(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deactivated consumer %q\n", args[0])
			return nil
		})
	case "cleanup":
		return withGateway(cfg, log, func(gw *db.Gateway) error {
			return cleanup(gw, log)
		})
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func withGateway(cfg *config.Config, log *zap.Logger, fn func(gw *db.Gateway) error) error {
	gw, err := db.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer gw.Close()
	return fn(gw)
}

// underscoreFlags lets --ip_filter and --ip-filter mean the same flag.
func underscoreFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func createConsumer(args []string, cfg *config.Config, log *zap.Logger, stdout io.Writer) error {
	fs := pflag.NewFlagSet("createconsumer", pflag.ContinueOnError)
	fs.SetNormalizeFunc(underscoreFlags)
	ipFilter := fs.String("ip-filter", "", "IP filter stored with the consumer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("createconsumer takes exactly one NAME argument")
	}
	name := fs.Arg(0)

	var filter *string
	if fs.Changed("ip-filter") {
		filter = ipFilter
	}

	return withGateway(cfg, log, func(gw *db.Gateway) error {
		key, err := gw.Consumers.Register(name, filter)
		if err != nil {
			return err
		}
		metrics.ConsumersRegistered.Inc()
		fmt.Fprintf(stdout, "Created new consumer %q\n", name)
		fmt.Fprintf(stdout, "Consumer key: %s\n", key)
		return nil
	})
}

func cleanup(gw *db.Gateway, log *zap.Logger) error {
	sessions, events, err := gw.Cleanup()
	if err != nil {
		return err
	}
	metrics.CleanupDeleted.WithLabelValues("sessions").Add(float64(sessions))
	metrics.CleanupDeleted.WithLabelValues("events").Add(float64(events))
	log.Info("database cleanup done", zap.Int64("sessions", sessions), zap.Int64("events", events))
	return nil
}

func serve(args []string, cfg *config.Config, log *zap.Logger) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to listen on")
	fs.BoolVar(&cfg.CleanupOnStart, "cleanup", cfg.CleanupOnStart, "remove dangling sessions and events before serving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gw, err := db.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer gw.Close()

	if cfg.CleanupOnStart {
		if err := cleanup(gw, log); err != nil {
			return err
		}
	}

	handler := newHandler(gw, cfg, log)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		handler = sentryfasthttp.New(sentryfasthttp.Options{}).Handle(handler)
		log.Info("sentry error reporting enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &fasthttp.Server{
		Handler: handler,
		Name:    "microticks",
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("microticks listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.ShutdownWithContext(shutdownCtx)
}

// newHandler builds the routed handler wrapped in the global middleware
// chain: request logger, CORS, no-cache headers, then the router.
func newHandler(gw *db.Gateway, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	r := router.New()
	r.SaveMatchedRoutePath = true

	keyed := appmw.APIKey(cfg)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.ServeFS("/static/{filepath:*}", ui.StaticFS())

	r.GET("/", keyed(handlers.Page("index.html")))
	r.GET("/dash", keyed(handlers.Page("dash.html")))
	r.GET("/metrics", keyed(handlers.Metrics()))

	r.POST("/sessions", keyed(appmw.ConsumerAuth(gw.Consumers)(handlers.StartSession(gw))))
	r.POST("/sessions/stop", keyed(handlers.StopSession(gw)))
	r.GET("/sessions", keyed(handlers.ListSessions(gw)))

	r.POST("/events", keyed(handlers.StoreEvent(gw)))
	r.GET("/events", keyed(handlers.ListEvents(gw)))

	return appmw.RequestLogger(log)(appmw.CORS(appmw.NoCache(r.Handler)))
}
