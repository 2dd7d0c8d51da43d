package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

const (
	// EnvConfigPath names the configuration file.
	EnvConfigPath = "CDN_DNS_CONFIG"
	// EnvDomains overrides the domains section with an inline YAML or JSON document.
	EnvDomains = "CDN_DNS_DOMAINS"

	defaultConfigPath = "configs/cdn-dns.yaml"
)

// ConfigError reports missing or malformed configuration. It is fatal.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// SourceConfig configures the candidate IP source.
type SourceConfig struct {
	URL      string        `yaml:"url"`
	Key      string        `yaml:"key"`
	Fallback string        `yaml:"fallback"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config holds the DNS provider, candidate source, and desired state.
type Config struct {
	Provider       string            `yaml:"provider"`
	Settings       map[string]string `yaml:"settings"`
	RecordType     string            `yaml:"record_type"`
	TTL            int               `yaml:"ttl"`
	PageSize       int               `yaml:"page_size"`
	RecordsPerLine int               `yaml:"records_per_line"`
	Source         SourceConfig      `yaml:"source"`
	Domains        DomainMap         `yaml:"domains"`
}

func defaults() Config {
	return Config{
		RecordType:     "A",
		TTL:            600,
		PageSize:       100,
		RecordsPerLine: 2,
		Source: SourceConfig{
			Fallback: "CT",
			Timeout:  10 * time.Second,
		},
	}
}

// Load reads the configuration from path, or from the path in
// CDN_DNS_CONFIG when path is empty, defaulting to "configs/cdn-dns.yaml".
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from the given file path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("reading config file: %w", err)}
	}
	return Parse(data)
}

// Parse decodes, expands, and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parsing config file: %w", err)}
	}

	if v := os.Getenv(EnvDomains); v != "" {
		dm, err := ParseDomainMap([]byte(v))
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("%s: %w", EnvDomains, err)}
		}
		cfg.Domains = *dm
	}

	// Expand ${ENV_VAR} references in secrets and endpoints.
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}
	cfg.Source.URL = os.ExpandEnv(cfg.Source.URL)
	cfg.Source.Key = os.ExpandEnv(cfg.Source.Key)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider == "" {
		errs = append(errs, configErrorf("missing required field 'provider'"))
	}
	switch strings.ToUpper(c.RecordType) {
	case "A", "AAAA":
		c.RecordType = strings.ToUpper(c.RecordType)
	default:
		errs = append(errs, configErrorf("record_type must be A or AAAA, got %q", c.RecordType))
	}
	if c.TTL < 0 {
		errs = append(errs, configErrorf("ttl must not be negative, got %d", c.TTL))
	}
	if c.PageSize < 0 {
		errs = append(errs, configErrorf("page_size must not be negative, got %d", c.PageSize))
	}
	if c.RecordsPerLine < 0 {
		errs = append(errs, configErrorf("records_per_line must not be negative, got %d", c.RecordsPerLine))
	}
	if c.Source.URL == "" {
		errs = append(errs, configErrorf("missing required field 'source.url'"))
	}
	if c.Source.Fallback != "" {
		l, err := dns.ParseLine(c.Source.Fallback)
		if err != nil {
			errs = append(errs, configErrorf("source.fallback: %w", err))
		} else {
			c.Source.Fallback = l.ISPCode()
		}
	}
	if c.Domains.Len() == 0 {
		errs = append(errs, configErrorf("no domains configured (set 'domains' or %s)", EnvDomains))
	}
	return errors.Join(errs...)
}
