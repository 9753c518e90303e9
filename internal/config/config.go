package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRetainDaily   = 7
	DefaultRetainWeekly  = 4
	DefaultRetainMonthly = 6

	DefaultCompressionLevel = 3
)

type RetentionConfig struct {
	Daily   int `yaml:"daily"`
	Weekly  int `yaml:"weekly"`
	Monthly int `yaml:"monthly"`
}

type S3Config struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Retry    struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"retry,omitempty"`
}

type Config struct {
	BaseDir          string          `yaml:"base_dir"`
	ServicesDir      string          `yaml:"services_dir"`
	BackupDir        string          `yaml:"backup_dir"`
	AgePublicKey     string          `yaml:"age_public_key"`
	CompressionLevel int             `yaml:"compression_level"`
	Retention        RetentionConfig `yaml:"retention"`
	S3               S3Config        `yaml:"s3"`
	WebhookURL       string          `yaml:"webhook_url,omitempty"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Retention.Daily == 0 {
		c.Retention.Daily = DefaultRetainDaily
	}
	if c.Retention.Weekly == 0 {
		c.Retention.Weekly = DefaultRetainWeekly
	}
	if c.Retention.Monthly == 0 {
		c.Retention.Monthly = DefaultRetainMonthly
	}
	if c.CompressionLevel == 0 {
		c.CompressionLevel = DefaultCompressionLevel
	}
}

func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.ServicesDir == "" {
		return fmt.Errorf("services_dir is required")
	}
	if c.AgePublicKey == "" {
		return fmt.Errorf("age_public_key is required")
	}
	if !strings.HasPrefix(c.AgePublicKey, "age1") {
		return fmt.Errorf("age_public_key must start with 'age1'")
	}
	if c.Retention.Daily < 0 || c.Retention.Weekly < 0 || c.Retention.Monthly < 0 {
		return fmt.Errorf("retention counts must be non-negative")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required when s3 is enabled")
		}
	} else if c.BackupDir == "" {
		return fmt.Errorf("backup_dir is required when s3 is disabled")
	}
	return nil
}

func (c *Config) S3RetryAttempts() int {
	if c.S3.Retry.MaxAttempts > 0 {
		return c.S3.Retry.MaxAttempts
	}
	return 3
}
