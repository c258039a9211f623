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

var (
	notifyToken   string
	notifyLat     float64
	notifyLon     float64
	notifyMessage string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Inject a test help request and report the dispatch outcome",
	RunE:  notifyRun,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyToken, "token", "cli-test", "originating device token")
	notifyCmd.Flags().Float64Var(&notifyLat, "lat", 0, "latitude in degrees")
	notifyCmd.Flags().Float64Var(&notifyLon, "lon", 0, "longitude in degrees")
	notifyCmd.Flags().StringVar(&notifyMessage, "message", "test incident", "help message body")
	rootCmd.AddCommand(notifyCmd)
}

func notifyRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New("notify-command")
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	ev := model.PersonEvent{
		Token:    notifyToken,
		Message:  notifyMessage,
		Position: &model.Position{Lat: notifyLat, Lon: notifyLon},
	}
	res, err := svc.Engine.HandlePerson(ctx, ev)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	logg.Infof("selected %d, notified %d, skipped %d", len(res.Selected), res.Notified, res.Skipped)
	return nil
}
