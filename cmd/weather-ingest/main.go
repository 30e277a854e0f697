package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-ingest/internal/api/http"
	"github.com/i474232898/weather-ingest/internal/common"
	"github.com/i474232898/weather-ingest/internal/config"
	"github.com/i474232898/weather-ingest/internal/logging"
	"github.com/i474232898/weather-ingest/internal/metrics"
	"github.com/i474232898/weather-ingest/internal/scheduler"
	"github.com/i474232898/weather-ingest/internal/store"
	"github.com/i474232898/weather-ingest/internal/weather"
	"github.com/i474232898/weather-ingest/internal/weather/providers"
)

const usage = `usage: weather-ingest <command> [flags]

commands:
  serve                          run the scheduler and admin API (default)
  run -kind history|forecast     run the pipeline once
  backfill -start D -end D       re-ingest history for an inclusive date range
`

func main() {
	bootstrap, _ := zap.NewProduction()
	zap.ReplaceGlobals(bootstrap)

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootstrap.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if err := dispatch(ctx, cmd, args, cfg, logger); err != nil {
		logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cmd string, args []string, cfg *config.AppConfig, logger *zap.Logger) error {
	switch cmd {
	case "serve", "run", "backfill":
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := store.Open(ctx, cfg.DB.StoreOptions(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	httpClient := providers.NewHTTPClient(cfg.HTTPTimeout, cfg.InsecureSkipVerify)
	client := providers.NewWeatherAPIClient(httpClient, providers.WeatherAPIOptions{
		BaseURL: cfg.WeatherAPIURL,
		APIKey:  cfg.WeatherAPIKey,
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}, logger)

	runner := weather.NewRunner(client, db, logger,
		weather.WithErrorPolicy(cfg.ErrorPolicy),
		weather.WithRecorder(metrics.New(reg)))
	backfiller := weather.NewBackfiller(runner, logger, cfg.BackfillRate)

	switch cmd {
	case "run":
		return runCommand(ctx, args, cfg, runner, logger)
	case "backfill":
		return backfillCommand(ctx, args, cfg, backfiller, logger)
	default:
		return serve(ctx, cfg, runner, backfiller, db, reg, logger)
	}
}

func runCommand(ctx context.Context, args []string, cfg *config.AppConfig, runner *weather.Runner, logger *zap.Logger) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	kindFlag := fs.String("kind", "history", "history or forecast")
	dateFlag := fs.String("date", "", "history date YYYY-MM-DD (default yesterday)")
	city := fs.String("city", cfg.City, "location query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kind, err := weather.ParseKind(*kindFlag)
	if err != nil {
		return err
	}
	var date time.Time
	if *dateFlag != "" {
		if date, err = common.ParseDate(*dateFlag); err != nil {
			return err
		}
	}

	n, err := runner.Run(ctx, *city, kind, date)
	if err != nil {
		return err
	}
	logger.Info("run finished", zap.String("city", *city), zap.Stringer("kind", kind), zap.Int("records", n))
	return nil
}

func backfillCommand(ctx context.Context, args []string, cfg *config.AppConfig, backfiller *weather.Backfiller, logger *zap.Logger) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	start := fs.String("start", "", "first date YYYY-MM-DD")
	end := fs.String("end", "", "last date YYYY-MM-DD (inclusive)")
	city := fs.String("city", cfg.City, "location query")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *start == "" || *end == "" {
		return errors.New("backfill requires -start and -end")
	}

	summary, err := backfiller.Backfill(ctx, *city, *start, *end)
	if err != nil {
		return err
	}
	logger.Info("backfill summary",
		zap.String("run_id", summary.RunID),
		zap.Int("processed_days", summary.Processed),
		zap.Int("total_days", summary.Total))
	return nil
}

func serve(ctx context.Context, cfg *config.AppConfig, runner *weather.Runner, backfiller *weather.Backfiller,
	db weather.Store, reg *prometheus.Registry, logger *zap.Logger) error {
	sched := scheduler.New(cfg.City, cfg.Schedule, runner, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-ingest",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-ingest",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Runner:     runner,
		Backfiller: backfiller,
		Store:      db,
	})

	go func() {
		logger.Info("admin api listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Warn("fiber server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
