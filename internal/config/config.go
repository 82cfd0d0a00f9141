// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BrokerConfig configures the Kafka producer.
type BrokerConfig struct {
	Brokers         []string      `yaml:"brokers"`
	Topic           string        `yaml:"topic"`
	ClientID        string        `yaml:"client_id"`
	Compression     string        `yaml:"compression"`
	Linger          time.Duration `yaml:"linger"`
	BatchMaxBytes   int32         `yaml:"batch_max_bytes"`
	Retries         int           `yaml:"retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// PublisherConfig holds the publish loop timings.
type PublisherConfig struct {
	Interval               time.Duration `yaml:"interval"`
	AckTimeout             time.Duration `yaml:"ack_timeout"`
	FailureBackoff         time.Duration `yaml:"failure_backoff"`
	DrainTimeout           time.Duration `yaml:"drain_timeout"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	PrintOnly              bool          `yaml:"print_only"`
}

// Bounds is the location bounding box.
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// GeneratorConfig tunes record generation. Seed 0 means a random seed.
type GeneratorConfig struct {
	Timezone string `yaml:"timezone"`
	Seed     uint64 `yaml:"seed"`
	Bounds   Bounds `yaml:"bounds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AdminConfig struct {
	Addr string `yaml:"addr"`
}

type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// MirrorConfig lists optional local copies of published records.
type MirrorConfig struct {
	File     string         `yaml:"file"`
	Greptime GreptimeConfig `yaml:"greptime"`
}

// Config is the root configuration of the publisher.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Publisher PublisherConfig `yaml:"publisher"`
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Mirror    MirrorConfig    `yaml:"mirror"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Brokers:         []string{"kafka:9092"},
			Topic:           "ats_telemetry",
			ClientID:        "ats-simulator",
			Compression:     "snappy",
			Linger:          100 * time.Millisecond,
			BatchMaxBytes:   1 << 20,
			Retries:         3,
			RetryBackoff:    time.Second,
			DeliveryTimeout: 30 * time.Second,
		},
		Publisher: PublisherConfig{
			Interval:               30 * time.Second,
			AckTimeout:             10 * time.Second,
			FailureBackoff:         5 * time.Second,
			DrainTimeout:           30 * time.Second,
			MaxConsecutiveFailures: 5,
		},
		Generator: GeneratorConfig{
			Timezone: "Local",
			Bounds:   Bounds{MinLat: 40.7, MaxLat: 40.9, MinLon: -74.1, MaxLon: -73.9},
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Mirror: MirrorConfig{
			Greptime: GreptimeConfig{Database: "public", Table: "ats_telemetry"},
		},
	}
}

// Load reads the YAML file at path over the defaults, validating it against
// the CUE schema first, then applies environment overrides. An empty path
// yields the defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
		if err := ValidateWithCue(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal config: %w", err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

const envBrokers = "KAFKA_BOOTSTRAP_SERVERS"

// ApplyEnv overrides cfg from the process environment.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(envBrokers); ok {
		cfg.Broker.Brokers = SplitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Broker.Topic = v
	}
	if v := os.Getenv("PUBLISH_INTERVAL"); v != "" {
		d, err := ParseInterval(v)
		if err != nil {
			return fmt.Errorf("PUBLISH_INTERVAL: %w", err)
		}
		cfg.Publisher.Interval = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		cfg.Mirror.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		cfg.Mirror.Greptime.Table = v
	}
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
	}
	return nil
}

// ResolveMode switches to print-only when no broker is configured. A
// KAFKA_BOOTSTRAP_SERVERS that is set but lists no broker is an error unless
// print-only was requested explicitly.
func (c *Config) ResolveMode() error {
	if c.Publisher.PrintOnly || len(c.Broker.Brokers) > 0 {
		return nil
	}
	if v, ok := os.LookupEnv(envBrokers); ok {
		return fmt.Errorf("%s=%q lists no brokers; use --print-only to write records to stdout", envBrokers, v)
	}
	c.Publisher.PrintOnly = true
	return nil
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseInterval accepts a Go duration or a bare number of seconds.
func ParseInterval(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

var compressionCodecs = map[string]bool{
	"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true,
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the semantic rules the schema cannot express, including
// values that came from the environment or flags.
func (c *Config) Validate() error {
	var errs []error
	if !c.Publisher.PrintOnly && len(c.Broker.Brokers) == 0 {
		errs = append(errs, errors.New("broker.brokers: at least one broker required"))
	}
	if c.Broker.Topic == "" {
		errs = append(errs, errors.New("broker.topic: must not be empty"))
	}
	if !compressionCodecs[c.Broker.Compression] {
		errs = append(errs, fmt.Errorf("broker.compression: unknown codec %q", c.Broker.Compression))
	}
	if c.Broker.Retries < 0 {
		errs = append(errs, errors.New("broker.retries: must be >= 0"))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"publisher.interval", c.Publisher.Interval},
		{"publisher.ack_timeout", c.Publisher.AckTimeout},
		{"publisher.failure_backoff", c.Publisher.FailureBackoff},
		{"publisher.drain_timeout", c.Publisher.DrainTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive", d.name))
		}
	}
	if c.Publisher.MaxConsecutiveFailures < 1 {
		errs = append(errs, errors.New("publisher.max_consecutive_failures: must be >= 1"))
	}
	b := c.Generator.Bounds
	if b.MinLat >= b.MaxLat || b.MinLat < -90 || b.MaxLat > 90 {
		errs = append(errs, fmt.Errorf("generator.bounds: invalid latitude range [%v, %v]", b.MinLat, b.MaxLat))
	}
	if b.MinLon >= b.MaxLon || b.MinLon < -180 || b.MaxLon > 180 {
		errs = append(errs, fmt.Errorf("generator.bounds: invalid longitude range [%v, %v]", b.MinLon, b.MaxLon))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("generator.timezone: %w", err))
	}
	if !logLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location resolves the generator timezone used for load bands.
func (c *Config) Location() (*time.Location, error) {
	switch c.Generator.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Generator.Timezone)
	}
}
