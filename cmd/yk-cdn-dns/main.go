package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/config"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/source"
)

var Version = "dev"

// exitConfig is returned for configuration errors, before any provider call.
const exitConfig = 2

func newRootCmd() *cobra.Command {
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)

	cmd := &cobra.Command{
		Use:     "yk-cdn-dns",
		Short:   "Keep per-line CDN DNS records pointed at the fastest edge IPs",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
			return nil
		},
	}
	cmd.PersistentFlags().String("config", "", "Config file path (env "+config.EnvConfigPath+")")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(newCmdRun())
	cmd.AddCommand(newCmdRecords())
	cmd.AddCommand(newCmdCandidates())
	cmd.AddCommand(newCmdClean())
	cmd.AddCommand(newCmdVersion())
	return cmd
}

func main() {
	pflag.CommandLine.SortFlags = false

	root := newRootCmd()
	root.SetContext(context.Background())
	if _, err := root.ExecuteC(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			os.Exit(exitConfig)
		}
		os.Exit(1)
	}
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg        *config.Config
	provider   dns.Provider
	reconciler *controller.Reconciler
	source     *source.Client
}

func setup(cmd *cobra.Command) (*app, error) {
	log := ctrl.Log.WithName("setup")

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info("loaded config", "provider", cfg.Provider, "type", cfg.RecordType, "domains", cfg.Domains.Len())

	provider, err := dns.NewProvider(cfg.Provider, ctrl.Log.WithName("dns-"+cfg.Provider), cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("unable to create DNS provider: %w", err)
	}

	return &app{
		cfg:        cfg,
		provider:   provider,
		reconciler: controller.NewReconciler(ctrl.Log.WithName("reconciler"), provider, cfg),
		source: source.New(ctrl.Log.WithName("source"), source.Config{
			URL:      cfg.Source.URL,
			Key:      cfg.Source.Key,
			Fallback: cfg.Source.Fallback,
			Timeout:  cfg.Source.Timeout,
		}),
	}, nil
}
