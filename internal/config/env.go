package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadEnv loads environment variables from a .env file. Lines are
// parsed as KEY=VALUE; empty lines and comments (starting with #) are
// ignored. Returns an error if the file cannot be read.
func LoadEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if key != "" {
			os.Setenv(key, value)
		}
	}

	return nil
}

// LoadEnvOptional loads environment variables from a .env file if it
// exists; a missing file is not an error.
func LoadEnvOptional(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return LoadEnv(path)
}

// expandEnvVars expands environment variable references in fields that
// commonly carry them.
func expandEnvVars(c *Config) error {
	if strings.HasPrefix(c.Notify.Token, "${") {
		c.Notify.Token = expandEnv(c.Notify.Token)
	}

	if strings.HasPrefix(c.Account.Name, "${") {
		c.Account.Name = expandEnv(c.Account.Name)
	}

	c.Reports.Dir = expandHome(expandEnv(c.Reports.Dir))
	c.Schedule.QueueFile = expandHome(expandEnv(c.Schedule.QueueFile))

	return nil
}

// expandEnv expands a ${VAR} or ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	return os.Getenv(s[2:end])
}

// expandHome expands a leading ~ in a path.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
