package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/metrics"
)

func newCmdRun() *cobra.Command {
	var (
		dryRun      bool
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a reconciliation pass, or repeat it with --interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			a.reconciler.DryRun = dryRun

			if interval <= 0 {
				pools := a.source.Fetch(cmd.Context(), a.cfg.RecordType)
				return a.reconciler.Run(cmd.Context(), pools).Err
			}
			return runLoop(ctrl.SetupSignalHandler(), a, interval, metricsAddr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log planned actions without writing to the provider")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the pass at this interval until interrupted (0 = run once)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-bind-address", ":9090", "Address serving /metrics and /healthz in loop mode (empty disables)")
	return cmd
}

func runLoop(ctx context.Context, a *app, interval time.Duration, metricsAddr string) error {
	log := ctrl.Log.WithName("setup")

	m := metrics.New()
	a.reconciler.Metrics = m

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Info("serving metrics", "address", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(err, "shutting down metrics server")
			}
		}()
	}

	log.Info("starting reconciliation loop", "interval", interval)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		pools := a.source.Fetch(ctx, a.cfg.RecordType)
		a.reconciler.Run(ctx, pools)
	}, interval)

	select {
	case err := <-errCh:
		return err
	default:
	}
	log.Info("reconciliation loop stopped")
	return nil
}
