package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "Print the effective configuration",
		Action: configAction,
	}
}

func configAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	workers := cfg.Workers
	if workers == taskmanager.AutoWorkers {
		workers = taskmanager.DefaultWorkerCount(cfg.ReservedThreads)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "name:              %s\n", cfg.Name)
	fmt.Fprintf(w, "workers:           %d\n", workers)
	fmt.Fprintf(w, "reserved_threads:  %d\n", cfg.ReservedThreads)
	fmt.Fprintf(w, "evaluator:         %s (high_quota=%d, normal_quota=%d)\n", cfg.Evaluator, cfg.HighQuota, cfg.NormalQuota)
	fmt.Fprintf(w, "log:               %s/%s\n", cfg.LogBackend, cfg.LogLevel)
	fmt.Fprintf(w, "metrics_addr:      %s\n", cfg.MetricsAddr)
	fmt.Fprintf(w, "metrics_namespace: %s\n", cfg.MetricsNamespace)
	fmt.Fprintf(w, "history_size:      %d\n", cfg.HistorySize)
	return nil
}
