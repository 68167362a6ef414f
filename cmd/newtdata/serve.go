package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/biot9999/newtdata/internal/logger"
	"github.com/biot9999/newtdata/internal/schedule"
)

var (
	serveConfigPath string
	serveLogLevel   string
	serveOnce       bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cleanup scheduler",
	Long: `Run Newtdata as a long-lived scheduler: on every cron tick it drains
the account queue, cleaning each pending account in turn. Cleaned
accounts are stamped in the queue file and skipped on later ticks.

Use --once to drain the queue a single time and exit.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	cfg, log := mustSetup(serveConfigPath, serveLogLevel)

	if !cfg.Schedule.Enabled && !serveOnce {
		fmt.Printf("❌ Scheduling is disabled in configuration (set [schedule] enabled = true or use --once)\n")
		os.Exit(1)
	}

	log.Info("🚀 Starting Newtdata scheduler",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "cron", Value: cfg.Schedule.Cron},
		logger.Field{Key: "queue_file", Value: cfg.Schedule.QueueFile},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := schedule.NewRunner(cfg.Schedule, func(ctx context.Context, account string) error {
		summary, err := runCleanup(ctx, cfg, log, account)
		if summary != nil {
			printSummary(summary)
		}
		return err
	}, log)
	if err != nil {
		log.Error("Failed to initialize scheduler", err)
		os.Exit(1)
	}

	if serveOnce {
		if err := runner.RunOnce(ctx); err != nil {
			log.Error("Queue drain failed", err)
			os.Exit(1)
		}
		log.Info("👋 Queue drained")
		return
	}

	if err := runner.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", err)
		os.Exit(1)
	}

	log.Info("✅ Newtdata scheduler is running")

	<-ctx.Done()
	log.Info("🛑 Shutting down scheduler...")
	runner.Stop()
	log.Info("👋 Newtdata stopped gracefully")
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveOnce, "once", false, "Drain the queue once and exit")
}
