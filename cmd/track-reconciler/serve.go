package main

import (
	"context"
	"log/slog"

	"github.com/BearBump/TrackRecon/config"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const defaultSchedule = "@every 1h"

// cronLogger routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}

// ServeReconciler triggers a run on every schedule tick and serves the ops endpoints until ctx is
// done. Runs never overlap: the poller drops triggers that arrive while a run is pending.
func ServeReconciler(ctx context.Context, cfg *config.Config, f reconcilerFactories, onListen func(addr string)) error {
	r, err := buildReconciler(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer r.Close()

	schedule := cfg.Reconciler.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	c := cron.New(cron.WithLogger(cronLogger{}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(schedule, r.poller.Trigger); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", schedule)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.poller.Run(gctx)
	})
	g.Go(func() error {
		return runOpsHTTPServer(gctx, opsHTTPOpts{
			httpAddr: cfg.Reconciler.HTTPAddr,
			onListen: onListen,
			handler:  newOpsRouter(r),
		})
	})

	c.Start()
	slog.Info("reconciler scheduled", "schedule", schedule, "http_addr", cfg.Reconciler.HTTPAddr)

	err = g.Wait()
	<-c.Stop().Done()

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
