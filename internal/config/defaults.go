package config

// applyDefaults fills in default values for fields left unset.
func applyDefaults(c *Config) {
	if c.Cleanup.LeaveConcurrency == 0 {
		c.Cleanup.LeaveConcurrency = 3
	}
	if c.Cleanup.DeleteHistoryConcurrency == 0 {
		c.Cleanup.DeleteHistoryConcurrency = 2
	}
	if c.Cleanup.DeleteContactsConcurrency == 0 {
		c.Cleanup.DeleteContactsConcurrency = 3
	}
	if c.Cleanup.ActionSpacingSeconds == 0 {
		c.Cleanup.ActionSpacingSeconds = 0.3
	}
	if c.Cleanup.MinPeerIntervalSeconds == 0 {
		c.Cleanup.MinPeerIntervalSeconds = 1.5
	}
	if c.Cleanup.MaxRetries == 0 {
		c.Cleanup.MaxRetries = 3
	}
	if c.Cleanup.ContactBatchSize == 0 {
		c.Cleanup.ContactBatchSize = 100
	}

	if c.Reports.Dir == "" {
		c.Reports.Dir = "./results/cleanup_reports"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Notify.ProgressEvery == 0 {
		c.Notify.ProgressEvery = 25
	}

	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "UTC"
	}
	if c.Schedule.QueueFile == "" {
		c.Schedule.QueueFile = "./accounts.yaml"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
}
