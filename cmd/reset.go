package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/savelife/rescue/app"
	"github.com/savelife/rescue/config"
	"github.com/savelife/rescue/core/model"
	"github.com/savelife/rescue/infra/logger"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Release every responding driver back to available",
	RunE:  resetRun,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func resetRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New("reset-command")
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Engine.HandleAmbulance(ctx, model.AmbulanceEvent{Token: "cli-reset", Enable: false})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	logg.Infof("released %d responders", res.ResetCount)
	return nil
}
