package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/config"
	"github.com/garyjia/site-invoices/internal/container"
	"github.com/garyjia/site-invoices/pkg/utils"
)

var version = "1.0.0"

// app carries state shared by all subcommands
type app struct {
	configPath string
	verbose    bool
	out        io.Writer
	container  *container.Container
}

// execute runs the command line and releases the container afterwards,
// including when a subcommand fails.
func execute(out io.Writer, args []string) error {
	a := &app{out: out}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and maintain the site invoice ledger",
		Long: `ledgerctl loads the invoice ledger from the store of record and lets you
list entries, print totals, export the ledger to a spreadsheet and change
payment status without going through the HTTP service.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level to stderr")

	rootCmd.AddCommand(
		newListCmd(a),
		newTotalsCmd(a),
		newExportCmd(a),
		newSetStatusCmd(a),
	)
	rootCmd.SetOut(a.out)

	return rootCmd
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      level,
		OutputPath: "stderr",
		Format:     "console",
		Service:    "ledgerctl",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	logger.Debug("Ledger loaded", zap.Int("entries", c.Ledger().Len()))
	a.container = c
	return nil
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	return err
}
