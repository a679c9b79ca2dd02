package parsers

import (
	"fmt"
	"time"
)

// ParseConfig holds configuration for reading tabular input files
type ParseConfig struct {
	// Sheet is the workbook sheet to read; empty means the first sheet
	Sheet string `mapstructure:"sheet"`

	Delimiter     rune `mapstructure:"delimiter"`
	SkipEmptyRows bool `mapstructure:"skip_empty_rows"`

	// FallbackEncoding decodes CSV files that are not valid UTF-8 as
	// Windows-1258 instead of rejecting them
	FallbackEncoding bool `mapstructure:"fallback_encoding"`

	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		SkipEmptyRows:    true,
		FallbackEncoding: true,
		FetchTimeout:     60 * time.Second,
		MaxConcurrency:   4,
	}
}

// Validate checks the configuration for invalid values
func (c *ParseConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	return nil
}
