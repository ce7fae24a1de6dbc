package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the run configuration. Values come from the environment (or
// an optional .env file); command-line flags override them in cmd.
type Config struct {
	SourceDir   string `mapstructure:"CCDA_SOURCE_DIR"`
	TargetDir   string `mapstructure:"CCDA_TARGET_DIR"`
	ErrorDir    string `mapstructure:"CCDA_ERROR_DIR"`
	FilePattern string `mapstructure:"CCDA_FILE_PATTERN"`
	Append      bool   `mapstructure:"CCDA_APPEND"`
}

// Load reads configuration from the environment with an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("CCDA_FILE_PATTERN", "ccd*.xml")
	v.SetDefault("CCDA_APPEND", false)

	v.BindEnv("CCDA_SOURCE_DIR")
	v.BindEnv("CCDA_TARGET_DIR")
	v.BindEnv("CCDA_ERROR_DIR")
	v.BindEnv("CCDA_FILE_PATTERN")
	v.BindEnv("CCDA_APPEND")

	// Try reading .env, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration names every directory the run
// needs. Existence of the directories is the batch runner's startup
// validation, not a config concern.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source directory is required (--source or CCDA_SOURCE_DIR)")
	}
	if c.TargetDir == "" {
		return fmt.Errorf("target directory is required (--target or CCDA_TARGET_DIR)")
	}
	if c.ErrorDir == "" {
		return fmt.Errorf("error directory is required (--error-dir or CCDA_ERROR_DIR)")
	}
	if c.FilePattern == "" {
		return fmt.Errorf("file pattern must not be empty")
	}
	return nil
}
