// Package config provides configuration loading and validation for newtdata.
// It supports TOML configuration files with environment variable expansion,
// default values, and comprehensive validation.
//
// Configuration structure:
//   - [account]: Account/session identification
//   - [cleanup]: Cleanup engine concurrency, spacing, and revoke policy
//   - [reports]: Report output directory
//   - [logging]: Logging level, format, and output
//   - [notify]: Bot API progress notifier
//   - [schedule]: Cron-driven queue runner
//   - [metrics]: Prometheus exposition
//
// Environment variables:
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: token = "${NOTIFY_BOT_TOKEN}"
package config

import "path/filepath"

// Config represents the main application configuration.
type Config struct {
	Account  AccountConfig  `toml:"account"`
	Cleanup  CleanupConfig  `toml:"cleanup"`
	Reports  ReportsConfig  `toml:"reports"`
	Logging  LoggingConfig  `toml:"logging"`
	Notify   NotifyConfig   `toml:"notify"`
	Schedule ScheduleConfig `toml:"schedule"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// AccountConfig identifies the account the job runs against.
type AccountConfig struct {
	Name string `toml:"name"`
}

// CleanupConfig holds the cleanup engine knobs. Concurrency ceilings
// are per action category; the categories run in independent pools.
type CleanupConfig struct {
	LeaveConcurrency          int     `toml:"leave_concurrency"`
	DeleteHistoryConcurrency  int     `toml:"delete_history_concurrency"`
	DeleteContactsConcurrency int     `toml:"delete_contacts_concurrency"`
	ActionSpacingSeconds      float64 `toml:"action_spacing_seconds"`
	MinPeerIntervalSeconds    float64 `toml:"min_peer_interval_seconds"`
	RevokeByDefault           bool    `toml:"revoke_by_default"`
	MaxRetries                int     `toml:"max_retries"`
	ContactBatchSize          int     `toml:"contact_batch_size"`
	DryRun                    bool    `toml:"dry_run"`
}

// ReportsConfig holds report artifact settings.
type ReportsConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// NotifyConfig holds the Bot API notifier settings. When enabled, job
// progress and the final summary are sent to the operator chat.
type NotifyConfig struct {
	Enabled       bool   `toml:"enabled"`
	Token         string `toml:"token"`
	ChatID        int64  `toml:"chat_id"`
	ProgressEvery int    `toml:"progress_every"`
}

// ScheduleConfig holds the cron-driven queue runner settings.
type ScheduleConfig struct {
	Enabled   bool   `toml:"enabled"`
	Cron      string `toml:"cron"`
	Timezone  string `toml:"timezone"`
	QueueFile string `toml:"queue_file"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// ReportPath returns the path for a report artifact file.
func (c *ReportsConfig) ReportPath(name string) string {
	return filepath.Join(c.Dir, name)
}
