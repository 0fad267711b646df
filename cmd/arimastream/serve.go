package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/arimastream/scheduler"
	"github.com/sartorproj/arimastream/server"
)

const jobName = "forecast"

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job on a cron schedule and serve health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.init(); err != nil {
				return err
			}
			defer a.close()
			if a.cfg.State.Type == "channel" {
				return errors.New("state type channel is only supported by run")
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	sched := scheduler.New(a.log)
	run := func(ctx context.Context) error {
		_, err := a.runOnce(ctx)
		return err
	}
	if err := sched.AddJob(a.cfg.Schedule.Cron, jobName, run); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	if a.cfg.Metrics.Enabled {
		srv := server.New(server.Config{
			Addr:        a.cfg.Metrics.Addr,
			MetricsPath: a.cfg.Metrics.Path,
			Gatherer:    a.registry,
			Status:      sched.Status,
			Log:         a.log,
		})
		g.Go(func() error { return srv.Run(ctx) })
	}
	if a.cfg.Schedule.RunOnStart {
		g.Go(func() error {
			// failures surface in the job status
			_ = sched.RunNow(jobName, run)
			return nil
		})
	}
	return g.Wait()
}
