package config

import (
	"fmt"
	"time"
)

// DefaultHistoryDSN keeps the run log in a shared in-memory database
const DefaultHistoryDSN = ":memory:"

// HistoryConfig holds configuration for the run history store and its pruning
type HistoryConfig struct {
	// DSN is the SQLite data source; a file path makes the history durable
	// Default: in-memory
	DSN string `yaml:"dsn"`

	// RetentionHours is how old a run must be before it is pruned (in hours)
	// Default: 168, Range: 0-8760 (0-365 days)
	// 0 = disable pruning
	RetentionHours int `yaml:"retention_hours"`

	// Keep is the minimum number of recent runs to keep regardless of age
	// Default: 100, Range: 0-100000
	Keep int `yaml:"keep"`
}

// DefaultHistoryConfig returns the default history configuration
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		DSN:            DefaultHistoryDSN,
		RetentionHours: 168,
		Keep:           100,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("history.dsn is required")
	}
	if c.RetentionHours < 0 || c.RetentionHours > 8760 {
		return fmt.Errorf("history.retention_hours must be between 0 and 8760 (got %d)", c.RetentionHours)
	}
	if c.Keep < 0 || c.Keep > 100000 {
		return fmt.Errorf("history.keep must be between 0 and 100000 (got %d)", c.Keep)
	}
	return nil
}

// Retention returns the age threshold as a time.Duration; zero disables pruning
func (c HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}
