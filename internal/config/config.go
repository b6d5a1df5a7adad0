package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr     = ":8080"
	DefaultTableName      = "IAMRoleRequests"
	DefaultTTL            = 7 * 24 * time.Hour
	DefaultTrustPrincipal = "ec2.amazonaws.com"
	DefaultCallInterval   = 200 * time.Millisecond
	DefaultWorkers        = 4
	DefaultArchivePrefix  = "role-grant/cleanup"
	DefaultDatabase       = "role-grant.db"
	DefaultSweepInterval  = time.Minute
)

// Config holds settings loaded from ~/.config/role-grant/config.yaml.
type Config struct {
	Profile        string        `yaml:"profile"`
	Region         string        `yaml:"region"`
	ListenAddr     string        `yaml:"listen_addr"`
	TableName      string        `yaml:"table_name"`
	TopicARN       string        `yaml:"topic_arn"`
	BaseURL        string        `yaml:"base_url"`
	DefaultTTL     time.Duration `yaml:"default_ttl"`
	TrustPrincipal string        `yaml:"trust_principal"`
	Cleanup        Cleanup       `yaml:"cleanup"`
	Local          Local         `yaml:"local"`
	Log            Log           `yaml:"log"`
}

type Cleanup struct {
	// CallInterval spaces destructive IAM calls during teardown.
	CallInterval  time.Duration `yaml:"call_interval"`
	Workers       int           `yaml:"workers"`
	ArchiveBucket string        `yaml:"archive_bucket"`
	ArchivePrefix string        `yaml:"archive_prefix"`
}

type Local struct {
	Database      string        `yaml:"database"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "role-grant", "config.yaml")
}

// Load reads the config file at path, or DefaultPath when path is empty.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := &Config{}
	if path == "" {
		cfg.applyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.TableName == "" {
		c.TableName = DefaultTableName
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.TrustPrincipal == "" {
		c.TrustPrincipal = DefaultTrustPrincipal
	}
	if c.Cleanup.CallInterval <= 0 {
		c.Cleanup.CallInterval = DefaultCallInterval
	}
	if c.Cleanup.Workers <= 0 {
		c.Cleanup.Workers = DefaultWorkers
	}
	if c.Cleanup.ArchivePrefix == "" {
		c.Cleanup.ArchivePrefix = DefaultArchivePrefix
	}
	if c.Local.Database == "" {
		c.Local.Database = DefaultDatabase
	}
	if c.Local.SweepInterval <= 0 {
		c.Local.SweepInterval = DefaultSweepInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Merge applies CLI flag overrides. Flags take precedence over config defaults.
func (c *Config) Merge(profile, region string) (string, string) {
	p := c.Profile
	if profile != "" {
		p = profile
	}
	r := c.Region
	if region != "" {
		r = region
	}
	c.Profile, c.Region = p, r
	return p, r
}

// Validate checks the settings a server needs. Local mode runs without SNS
// or DynamoDB, so topic_arn is only required otherwise.
func (c *Config) Validate(local bool) error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if !local && c.TopicARN == "" {
		errs = append(errs, errors.New("topic_arn is required"))
	}
	if c.Cleanup.Workers < 1 {
		errs = append(errs, fmt.Errorf("cleanup.workers must be positive, got %d", c.Cleanup.Workers))
	}
	return errors.Join(errs...)
}
