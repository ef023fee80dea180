package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/config"
	"github.com/Swind/go-task-manager/core"
	tmprom "github.com/Swind/go-task-manager/observability/prometheus"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run fork/join task trees and report throughput",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Worker count; overrides the config (-1 for GOMAXPROCS minus reserved)",
			},
			&cli.IntFlag{
				Name:  "trees",
				Value: 64,
				Usage: "Number of root batches to submit",
			},
			&cli.IntFlag{
				Name:  "depth",
				Value: 4,
				Usage: "Fork depth of each tree",
			},
			&cli.IntFlag{
				Name:  "width",
				Value: 4,
				Usage: "Children forked per inner node",
			},
			&cli.IntFlag{
				Name:  "spin",
				Value: 20000,
				Usage: "Busy-work iterations per leaf",
			},
			&cli.StringFlag{
				Name:  "mix",
				Value: "high=1,normal=4,low=2",
				Usage: "Priority weights for root batches",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve /metrics and /healthz on this address; overrides the config",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "Keep serving metrics this long after the workload finishes",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	mix, err := parseMix(c.String("mix"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	shape := treeShape{
		Depth: c.Int("depth"),
		Width: c.Int("width"),
		Spin:  c.Int("spin"),
	}
	if err := shape.validate(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// GOMAXPROCS must follow the container quota before the default worker count is derived
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", core.F("error", err))
	}
	defer undo()

	reg := prom.NewRegistry()
	exporter, err := tmprom.NewMetricsExporter(cfg.MetricsNamespace, reg, tmprom.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller, err := tmprom.NewSnapshotPoller(cfg.MetricsNamespace, reg, time.Second)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	opts, err := cfg.Options()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	tm := taskmanager.New(append(opts, taskmanager.WithMetrics(exporter))...)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tm.StartContext(ctx, cfg.Workers); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer tm.Shutdown()

	poller.AddPool(tm.Name(), tm)
	poller.Start(ctx)
	defer poller.Stop()

	g, gctx := errgroup.WithContext(ctx)
	workloadDone := make(chan struct{})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newRouter(reg, tm),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", core.F("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-workloadDone:
				linger(gctx, c.Duration("linger"))
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var report benchReport
	g.Go(func() error {
		defer close(workloadDone)
		var err error
		report, err = runWorkload(gctx, tm, shape, mix, c.Int("trees"))
		return err
	})

	if err := g.Wait(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	report.write(c.App.Writer, tm.Stats())
	return nil
}

func linger(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
