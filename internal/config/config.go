// Package config loads the quote service configuration from an optional
// YAML file and the environment. Environment variables win over the file.
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

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheNone     = "none"
)

// Provider kinds.
const (
	KindTariff = "tariff"
	KindHTTP   = "http"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Addr            string           `yaml:"addr"`
	Cache           CacheConfig      `yaml:"cache"`
	Kafka           KafkaConfig      `yaml:"kafka"`
	Providers       []ProviderConfig `yaml:"providers"`
	QuoteTimeout    time.Duration    `yaml:"quote_timeout"`
	ProbeTimeout    time.Duration    `yaml:"probe_timeout"`
	HealthInterval  time.Duration    `yaml:"health_interval"`
	MinResponseTime time.Duration    `yaml:"min_response_time"`
	RetryAfter      time.Duration    `yaml:"retry_after"`
}

// CacheConfig selects and configures the cache-aside backend.
type CacheConfig struct {
	Backend     string        `yaml:"backend"`
	RedisAddr   string        `yaml:"redis_addr"`
	DatabaseURL string        `yaml:"database_url"`
	TTL         time.Duration `yaml:"ttl"`
	// Timeout bounds each lookup and store, and each event publish.
	Timeout time.Duration `yaml:"timeout"`
	// PurgeInterval is how often expired sets are deleted; zero means TTL.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// KafkaConfig enables event publishing when Broker is set.
type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// ProviderConfig describes one carrier. Tariff fields apply to kind tariff,
// URL and Timeout to kind http.
type ProviderConfig struct {
	Zones             map[string]float64 `yaml:"zones"`
	ID                string             `yaml:"id"`
	Name              string             `yaml:"name"`
	Kind              string             `yaml:"kind"`
	Currency          string             `yaml:"currency"`
	Mode              string             `yaml:"mode"`
	URL               string             `yaml:"url"`
	BaseFee           float64            `yaml:"base_fee"`
	PerKg             float64            `yaml:"per_kg"`
	DefaultMultiplier float64            `yaml:"default_multiplier"`
	MinDays           int                `yaml:"min_days"`
	MaxDays           int                `yaml:"max_days"`
	Timeout           time.Duration      `yaml:"timeout"`
}

// Default returns the built-in configuration: an in-memory cache and three
// tariff carriers.
func Default() Config {
	return Config{
		Addr: ":8080",
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     15 * time.Minute,
			Timeout: time.Second,
		},
		Kafka:           KafkaConfig{Topic: "shipquote.events"},
		QuoteTimeout:    5 * time.Second,
		ProbeTimeout:    5 * time.Second,
		HealthInterval:  30 * time.Second,
		MinResponseTime: 50 * time.Millisecond,
		RetryAfter:      30 * time.Second,
		Providers: []ProviderConfig{
			{ID: "swift", Name: "Swift Freight", Kind: KindTariff, Currency: "EUR", Mode: "road",
				BaseFee: 25, PerKg: 3.2, DefaultMultiplier: 1, MinDays: 3, MaxDays: 5,
				Zones: map[string]float64{"lisbon": 1, "porto": 1, "madrid": 1.2, "paris": 1.6}},
			{ID: "atlas", Name: "Atlas Air Cargo", Kind: KindTariff, Currency: "EUR", Mode: "air",
				BaseFee: 60, PerKg: 5.5, DefaultMultiplier: 1.1, MinDays: 1, MaxDays: 2},
			{ID: "harbor", Name: "Harbor Sea Lines", Kind: KindTariff, Currency: "EUR", Mode: "sea",
				BaseFee: 15, PerKg: 1.4, DefaultMultiplier: 1, MinDays: 7, MaxDays: 12},
		},
	}
}

// Load reads the file named by SHIPQUOTE_CONFIG, if set, over Default and
// then applies environment overrides. The result is validated.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("SHIPQUOTE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return c.decode(b)
}

// decode overlays the YAML document b. A document that lists providers
// replaces the default provider set.
func (c *Config) decode(b []byte) error {
	providers := c.Providers
	c.Providers = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if c.Providers == nil {
		c.Providers = providers
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SHIPQUOTE_ADDR":  &c.Addr,
		"SHIPQUOTE_CACHE": &c.Cache.Backend,
		"REDIS_ADDR":      &c.Cache.RedisAddr,
		"DATABASE_URL":    &c.Cache.DatabaseURL,
		"KAFKA_BROKER":    &c.Kafka.Broker,
		"KAFKA_TOPIC":     &c.Kafka.Topic,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"QUOTE_TIMEOUT":   &c.QuoteTimeout,
		"PROBE_TIMEOUT":   &c.ProbeTimeout,
		"CACHE_TTL":       &c.Cache.TTL,
		"CACHE_TIMEOUT":   &c.Cache.Timeout,
		"PURGE_INTERVAL":  &c.Cache.PurgeInterval,
		"HEALTH_INTERVAL": &c.HealthInterval,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err)
		}
		*dst = d
	}
	return nil
}

// parseDuration accepts Go durations and bare integers as milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// Validate checks the configuration for values the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: addr is empty", ErrInvalid))
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%w: redis cache needs redis_addr", ErrInvalid))
		}
	case CachePostgres:
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("%w: postgres cache needs database_url", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Cache.Backend))
	}
	if c.QuoteTimeout <= 0 || c.ProbeTimeout <= 0 || c.Cache.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeouts must be positive", ErrInvalid))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: health_interval must be positive", ErrInvalid))
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		label := fmt.Sprintf("providers[%d]", i)
		switch {
		case strings.TrimSpace(p.ID) == "":
			errs = append(errs, fmt.Errorf("%w: %s has no id", ErrInvalid, label))
		case seen[p.ID]:
			errs = append(errs, fmt.Errorf("%w: %s duplicates id %q", ErrInvalid, label, p.ID))
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("%w: %s has no name", ErrInvalid, label))
		}
		switch p.Kind {
		case KindTariff:
			if p.MinDays < 0 || p.MinDays > p.MaxDays {
				errs = append(errs, fmt.Errorf("%w: %s transit range %d-%d", ErrInvalid, label, p.MinDays, p.MaxDays))
			}
		case KindHTTP:
			if p.URL == "" {
				errs = append(errs, fmt.Errorf("%w: %s needs url", ErrInvalid, label))
			}
		default:
			errs = append(errs, fmt.Errorf("%w: %s unknown kind %q", ErrInvalid, label, p.Kind))
		}
	}
	return errors.Join(errs...)
}
