package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/spf13/cobra"

	"github.com/appetiteclub/reconciler/internal/app"
	"github.com/appetiteclub/reconciler/internal/config"
)

const (
	appName      = "reconciler-utils"
	appNamespace = "RECONCILER"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Backend   string
	PebbleDir string
	LogLevel  string

	// LoadConfig reads the service configuration. Flags override it.
	LoadConfig func() (config.Config, error)
}

// NewRootCommand creates the root command for the utility CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: loadServiceConfig})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "utils",
		Short:         "Maintenance commands for the order reconciler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "document store backend (mongo|pebble|memory)")
	cmd.PersistentFlags().StringVar(&opts.PebbleDir, "pebble-dir", "", "pebble data directory")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level")

	cmd.AddCommand(NewSeedDemoCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewPricesCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func loadServiceConfig() (config.Config, error) {
	aptConfig, err := apt.LoadConfig(appNamespace, []string{})
	if err != nil {
		return config.Config{}, fmt.Errorf("cannot load config: %w", err)
	}
	return config.Load(aptConfig)
}

// resolve applies flag overrides on top of the loaded configuration.
func (o *RootOptions) resolve() (config.Config, apt.Logger, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.Backend != "" {
		cfg.Store.Backend = o.Backend
	}
	if o.PebbleDir != "" {
		cfg.Store.PebbleDir = o.PebbleDir
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, apt.NewLogger(cfg.LogLevel), nil
}

// openStore opens the configured backend without a change feed. Writes made
// by maintenance commands are not announced.
func (o *RootOptions) openStore(ctx context.Context) (*app.Store, config.Config, apt.Logger, error) {
	cfg, logger, err := o.resolve()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	store, err := app.OpenStore(ctx, cfg, nil, logger)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return store, cfg, logger, nil
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, app.AppVersion)
		},
	}
}
