package config

import (
	"fmt"

	"github.com/realmsync/realmsync/pkg/secrets"
)

// Validate checks a fully defaulted configuration for invalid values.
func Validate(cfg *Config) error {
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.ShutdownTimeout)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.Kerberos.TaskTimeoutHours <= 0 {
		return fmt.Errorf("kerberos.task_timeout_hours must be positive, got %d", cfg.Kerberos.TaskTimeoutHours)
	}

	if cfg.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %v", cfg.Sync.Interval)
	}

	switch cfg.Lock.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("lock.backend must be \"memory\" or \"postgres\", got %q", cfg.Lock.Backend)
	}

	if cfg.Secrets.Key != "" {
		if _, err := secrets.ParseKey(cfg.Secrets.Key); err != nil {
			return fmt.Errorf("secrets.key: %w", err)
		}
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Level)
	}

	switch cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", cfg.Format)
	}

	if cfg.Output == "" {
		return fmt.Errorf("logging.output must not be empty")
	}

	return nil
}
