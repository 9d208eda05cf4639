package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/logging"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "prospector",
	Short:        "Multi-identity outreach engine",
	Long:         "Discovers profiles from a search page, sends invitations, verifies acceptances and sends follow-up messages across a pool of authenticated identities.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.ReplaceGlobals(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./config.yaml)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
