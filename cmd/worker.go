package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/meeting-transcriber/scheduler"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued transcriptions and serve metrics and the intake endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conf, log, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		reg := prometheus.NewRegistry()
		s, err := newStack(ctx, conf, log, reg)
		if err != nil {
			return err
		}
		defer s.close()

		p, err := s.pipeline(s.locker())
		if err != nil {
			return err
		}
		q := s.queue()
		sch := &scheduler.Scheduler{Meetings: s.store, Queue: q, Log: log}
		pool := &scheduler.Pool{Queue: q, Runner: p, Meetings: s.store, Workers: conf.Worker.Count, Log: log}

		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("POST /meetings/{id}/transcriptions", scheduler.Handler(sch))
		srv := &http.Server{Addr: conf.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("serving metrics and intake")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shut, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shut)
		})
		g.Go(func() error {
			log.WithField("workers", conf.Worker.Count).Info("worker pool started")
			return pool.Run(ctx)
		})
		return g.Wait()
	},
}
