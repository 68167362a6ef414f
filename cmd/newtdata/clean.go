package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/biot9999/newtdata/internal/cleaner"
	"github.com/biot9999/newtdata/internal/config"
	"github.com/biot9999/newtdata/internal/logger"
	"github.com/biot9999/newtdata/internal/notify"
	"github.com/biot9999/newtdata/internal/telegram"
)

var (
	cleanConfigPath string
	cleanLogLevel   string
	cleanDryRun     bool
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run one cleanup job now (main command)",
	Long: `Run a full cleanup of the configured account: delete private chat
histories, leave all groups and channels, delete all contacts and
archive the remaining dialogs. Writes CSV and JSON reports.

Ctrl+C stops the job gracefully: in-flight actions finish and the
report covers everything done so far.`,
	Run: cleanHandler,
}

func cleanHandler(cmd *cobra.Command, args []string) {
	cfg, log := mustSetup(cleanConfigPath, cleanLogLevel)

	if cleanDryRun {
		cfg.Cleanup.DryRun = true
	}

	log.Info("🚀 Starting Newtdata cleanup",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "account", Value: cfg.Account.Name},
		logger.Field{Key: "dry_run", Value: cfg.Cleanup.DryRun},
	)

	// Create context cancelled on SIGINT/SIGTERM so in-flight actions
	// can finish and the report gets written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runCleanup(ctx, cfg, log, cfg.Account.Name)
	if err != nil {
		log.Error("Cleanup job failed", err)
	}
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		os.Exit(1)
	}
}

// mustSetup loads .env, configuration and the logger, exiting on any
// failure. Shared by clean and serve.
func mustSetup(configPath, logLevel string) (*config.Config, *logger.Logger) {
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Printf("❌ Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	if configPath == "" {
		configPath = "./config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("❌ Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	return cfg, log
}

// runCleanup executes one full cleanup job for the given account.
func runCleanup(ctx context.Context, cfg *config.Config, log *logger.Logger, account string) (*cleaner.Summary, error) {
	client, err := telegram.NewClient(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to connect account %s: %w", account, err)
	}

	opts := []cleaner.Option{}

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.New(cfg.Notify, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cleaner.WithProgress(notifier.Progress))
		log.Info("✅ Progress notifier enabled",
			logger.Field{Key: "chat_id", Value: cfg.Notify.ChatID})
	}

	if cfg.Metrics.Enabled {
		opts = append(opts, cleaner.WithMetrics(setupMetrics(cfg.Metrics, log)))
	}

	job := cleaner.New(client, cleaner.Config{
		Account:                   account,
		LeaveConcurrency:          cfg.Cleanup.LeaveConcurrency,
		DeleteHistoryConcurrency:  cfg.Cleanup.DeleteHistoryConcurrency,
		DeleteContactsConcurrency: cfg.Cleanup.DeleteContactsConcurrency,
		ActionSpacing:             secondsToDuration(cfg.Cleanup.ActionSpacingSeconds),
		MinPeerInterval:           secondsToDuration(cfg.Cleanup.MinPeerIntervalSeconds),
		RevokeByDefault:           cfg.Cleanup.RevokeByDefault,
		MaxRetries:                cfg.Cleanup.MaxRetries,
		ContactBatchSize:          cfg.Cleanup.ContactBatchSize,
		ReportDir:                 cfg.Reports.Dir,
		DryRun:                    cfg.Cleanup.DryRun,
	}, log, opts...)

	summary, err := job.Run(ctx)

	if summary != nil && notifier != nil {
		// Summary delivery must not depend on the cancelled job context.
		if nerr := notifier.Summary(context.Background(), summary); nerr != nil {
			log.Warn("failed to send summary notification",
				logger.Field{Key: "error", Value: nerr})
		}
	}
	return summary, err
}

var metricsOnce bool

// setupMetrics registers cleanup metrics and starts the exposition
// endpoint. The listener is started once per process.
func setupMetrics(cfg config.MetricsConfig, log *logger.Logger) *cleaner.PrometheusMetrics {
	m := cleaner.InitPrometheusMetrics("newtdata", prometheus.DefaultRegisterer)

	if !metricsOnce {
		metricsOnce = true
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
				log.Error("metrics endpoint failed", err,
					logger.Field{Key: "addr", Value: cfg.ListenAddr})
			}
		}()
		log.Info("📊 Metrics endpoint listening",
			logger.Field{Key: "addr", Value: cfg.ListenAddr})
	}
	return m
}

func printSummary(s *cleaner.Summary) {
	status := "✅ Cleanup finished"
	if s.Cancelled {
		status = "⚠️ Cleanup cancelled"
	}
	fmt.Printf("%s for %s (job %s, %s)\n", status, s.Account, s.JobID, s.Elapsed.Round(time.Second))
	fmt.Printf("  groups left:        %d\n", s.Stats.GroupsLeft)
	fmt.Printf("  channels left:      %d\n", s.Stats.ChannelsLeft)
	fmt.Printf("  histories deleted:  %d\n", s.Stats.HistoriesDeleted)
	fmt.Printf("  contacts deleted:   %d\n", s.Stats.ContactsDeleted)
	fmt.Printf("  dialogs archived:   %d\n", s.Stats.DialogsClosed)
	fmt.Printf("  skipped: %d, errors: %d\n", s.Stats.Skipped, s.Stats.Errors)
	fmt.Printf("  reports: %s, %s\n", s.CSVPath, s.JSONPath)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	cleanCmd.Flags().StringVarP(&cleanLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Enumerate and report without performing any action")
}
