package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsdispatch/app"
	"github.com/kilianp07/emsdispatch/config"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "emsdispatch",
	Short:        "Emergency vehicle dispatch simulator",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (built-in defaults when empty)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, app.Realtime)
	if err != nil {
		return err
	}
	sum, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	logger.New("main").Infof("summary: %s", sum)
	return nil
}
