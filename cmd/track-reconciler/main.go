package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/TrackRecon/config"
	"github.com/urfave/cli/v3"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML config",
		Sources: cli.EnvVars("configPath"),
	}

	cmd := &cli.Command{
		Name:  "track-reconciler",
		Usage: "Reconcile active orders with carrier tracking data",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a single reconciliation and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd.String("config"))
					if err != nil {
						return err
					}
					_, err = RunReconcilerOnce(ctx, cfg, defaultReconcilerFactories())
					return err
				},
			},
			{
				Name:  "serve",
				Usage: "Run reconciliations on a schedule and expose the ops HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd.String("config"))
					if err != nil {
						return err
					}
					return ServeReconciler(ctx, cfg, defaultReconcilerFactories(), nil)
				},
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("track-reconciler", "error", err.Error())
		cancel()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required (--config or configPath env var)")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфига, %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))
	return cfg, nil
}
