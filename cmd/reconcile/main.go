package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/orderrecon/internal/bootstrap"
	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/config"
	"github.com/angelmondragon/orderrecon/pkg/db"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile"})

	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.Cmd, "cmd", cmdCatchup, "command: catchup|run|invoice|token")
	flag.DurationVar(&opts.Window, "window", 0, "scan window for run/catchup (defaults from config)")
	flag.StringVar(&opts.Label, "label", "", "run label recorded with the summary")
	flag.StringVar(&opts.OrderID, "order-id", "", "order uuid (for invoice)")
	flag.StringVar(&opts.IncrementID, "increment-id", "", "order increment id (for invoice)")
	flag.StringVar(&opts.Token, "token", "", "provider checkout token (for invoice)")
	flag.StringVar(&opts.Subject, "subject", "", "operator identity (for token)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "reconcile",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.Cmd,
	})

	if !opts.needsGraph() {
		if err := mintToken(os.Stdout, cfg.AdminAuth, opts.Subject, time.Now()); err != nil {
			fail(err)
		}
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()

	var recorder reconcile.RunRecorder
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Warn(ctx, "redis unavailable, run summary will not be stored")
	} else {
		defer redisClient.Close()
		recorder = reconcile.NewRedisRunStore(redisClient)
	}

	graph, err := bootstrap.NewReconcile(bootstrap.ReconcileParams{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Recorder:  recorder,
		Component: "reconcile-cli",
	})
	requireResource(logg, "reconciliation graph", err)

	switch opts.Cmd {
	case cmdCatchup, cmdRun:
		err = runReconcile(ctx, os.Stdout, graph.Runner, cfg.Reconcile, opts)
	case cmdInvoice:
		err = runInvoice(ctx, os.Stdout, graph.InvoiceReconciler, opts)
	default:
		err = fmt.Errorf("unknown -cmd %q", opts.Cmd)
	}
	if err != nil {
		logg.Error(ctx, "reconcile command failed", err)
		fail(err)
	}
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to initialize "+name, err)
	fail(err)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
