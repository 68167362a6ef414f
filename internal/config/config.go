package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML configuration file, applies defaults and
// expands environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for consistency and returns all
// problems found, not just the first one.
func (c *Config) Validate() []error {
	var errors []error

	if c.Account.Name == "" {
		errors = append(errors, fmt.Errorf("account.name is required"))
	}

	if c.Cleanup.LeaveConcurrency < 1 {
		errors = append(errors, fmt.Errorf("cleanup.leave_concurrency must be at least 1, got %d", c.Cleanup.LeaveConcurrency))
	}
	if c.Cleanup.DeleteHistoryConcurrency < 1 {
		errors = append(errors, fmt.Errorf("cleanup.delete_history_concurrency must be at least 1, got %d", c.Cleanup.DeleteHistoryConcurrency))
	}
	if c.Cleanup.DeleteContactsConcurrency < 1 {
		errors = append(errors, fmt.Errorf("cleanup.delete_contacts_concurrency must be at least 1, got %d", c.Cleanup.DeleteContactsConcurrency))
	}
	if c.Cleanup.ActionSpacingSeconds < 0 {
		errors = append(errors, fmt.Errorf("cleanup.action_spacing_seconds cannot be negative"))
	}
	if c.Cleanup.MinPeerIntervalSeconds < 0 {
		errors = append(errors, fmt.Errorf("cleanup.min_peer_interval_seconds cannot be negative"))
	}
	if c.Cleanup.MaxRetries < 1 {
		errors = append(errors, fmt.Errorf("cleanup.max_retries must be at least 1, got %d", c.Cleanup.MaxRetries))
	}
	if c.Cleanup.ContactBatchSize < 1 || c.Cleanup.ContactBatchSize > 100 {
		errors = append(errors, fmt.Errorf("cleanup.contact_batch_size must be between 1 and 100, got %d", c.Cleanup.ContactBatchSize))
	}

	if c.Reports.Dir == "" {
		errors = append(errors, fmt.Errorf("reports.dir is required"))
	} else if err := validatePath(c.Reports.Dir, "reports.dir"); err != nil {
		errors = append(errors, err)
	}

	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Notify.Enabled {
		if c.Notify.Token == "" {
			errors = append(errors, fmt.Errorf("notify.token is required when notify is enabled"))
		} else if err := validateBotToken(c.Notify.Token); err != nil {
			errors = append(errors, err)
		}
		if c.Notify.ChatID == 0 {
			errors = append(errors, fmt.Errorf("notify.chat_id is required when notify is enabled"))
		}
	}

	if c.Schedule.Enabled {
		if c.Schedule.Cron == "" {
			errors = append(errors, fmt.Errorf("schedule.cron is required when schedule is enabled"))
		}
		if c.Schedule.QueueFile == "" {
			errors = append(errors, fmt.Errorf("schedule.queue_file is required when schedule is enabled"))
		}
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errors = append(errors, fmt.Errorf("metrics.listen_addr is required when metrics is enabled"))
	}

	return errors
}

// validateBotToken checks the <bot_id>:<token> shape of a Bot API token.
func validateBotToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return fmt.Errorf("notify.token has invalid format (expected format: <bot_id>:<token>, got: %s)", maskSecret(token))
	}

	botID := parts[0]
	botToken := parts[1]

	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("notify.token has invalid bot ID length (expected 3-15 digits, got %d digits)", len(botID))
	}

	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("notify.token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}

	if len(botToken) < 10 || len(botToken) > 50 {
		return fmt.Errorf("notify.token has invalid token length (expected 10-50 characters, got %d)", len(botToken))
	}

	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.HasPrefix(path, "~") {
		return nil
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}
