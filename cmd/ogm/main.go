// Command ogm runs sample workloads against a graph store and manages the
// client configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/syssam/velox-ogm/client"
	"github.com/syssam/velox-ogm/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli holds the flags shared by all commands.
type cli struct {
	configPath string
}

func (c *cli) load() (*config.Config, error) {
	return config.Load(c.configPath)
}

func (c *cli) open(ctx context.Context) (*client.Client, *config.Config, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, nil, err
	}
	cl, err := client.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cl, cfg, nil
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ogm",
		Short:         "Entity graph persistence toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML configuration file")
	root.AddCommand(
		newDemoCmd(c),
		newStatsCmd(c),
		newConfigCmd(c),
	)
	return root
}

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the client configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the configuration file and environment",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := c.load()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (store=%s mode=%s)\n", cfg.Store.Driver, cfg.Engine.Mode)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := c.load()
				if err != nil {
					return err
				}
				cfg.Store.Password = ""
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		newWatchCmd(c),
	)
	return cmd
}

// newWatchCmd keeps a client open and applies changes of the
// configuration file to it until interrupted.
func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload the configuration file on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.configPath == "" {
				return fmt.Errorf("watch requires --config")
			}
			ctx := cmd.Context()
			cl, cfg, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer cl.Close()
			log, err := cfg.Logger(zap.NewAtomicLevelAt(cfg.Level()))
			if err != nil {
				return err
			}
			w, err := config.NewWatcher(c.configPath, cfg, log.Named("config"))
			if err != nil {
				return err
			}
			w.OnChange(cl.Reconfigure)
			fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", c.configPath)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
