// Package config loads process configuration: built-in defaults, then an
// optional YAML file, then REGISTRAR_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"registrar/internal/registration/privacy"
)

// Config is the whole process configuration.
type Config struct {
	Server     Server         `yaml:"server"`
	Postgres   Postgres       `yaml:"postgres"`
	Enrollment Enrollment     `yaml:"enrollment"`
	Redis      RedisConfig    `yaml:"redis"`
	Kafka      KafkaConfig    `yaml:"kafka"`
	Runner     Runner         `yaml:"runner"`
	Fetcher    Fetcher        `yaml:"fetcher"`
	Privacy    privacy.Limits `yaml:"privacy"`
	Noise      Noise          `yaml:"noise"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	JWTAudience     string        `yaml:"jwt_audience"`
	AdminToken      string        `yaml:"admin_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Postgres locates the registration database.
type Postgres struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Enrollment locates the enrollment directory.
type Enrollment struct {
	DSN      string        `yaml:"dsn"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RedisConfig backs the enrollment cache and install-state lookups. An empty
// URL disables both.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	InstalledKey string        `yaml:"installed_key"`
}

// KafkaConfig backs debug-report publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	DebugReportTopic string   `yaml:"debug_report_topic"`
	Partitions       int32    `yaml:"partitions"`
	Replication      int16    `yaml:"replication"`
}

// Runner bounds queue draining.
type Runner struct {
	BatchSize            int           `yaml:"batch_size"`
	MaxRetries           int           `yaml:"max_retries"`
	MaxRedirectsPerChain int           `yaml:"max_redirects_per_chain"`
	DrainInterval        time.Duration `yaml:"drain_interval"`
	TxTimeout            time.Duration `yaml:"tx_timeout"`
	InstallStatePolicy   bool          `yaml:"install_state_policy"`
}

// Fetcher tunes outbound registration fetches.
type Fetcher struct {
	Timeout            time.Duration `yaml:"timeout"`
	MaxWebDestinations int           `yaml:"max_web_destinations"`
	DebugKeyAllowlist  []string      `yaml:"debug_key_allowlist"`
}

// Noise configures randomized response. Its epsilon is privacy.epsilon so
// the gate and the randomizer agree. Seed 0 seeds from the OS.
type Noise struct {
	Seed uint64 `yaml:"seed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTSigningKey:   "dev-secret-key-change-in-production",
			JWTIssuer:       "registrar",
			JWTAudience:     "registrations",
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres:   Postgres{MaxOpenConns: 10},
		Enrollment: Enrollment{CacheTTL: 10 * time.Minute},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			DebugReportTopic: "registrar.debug-reports",
			Partitions:       3,
			Replication:      1,
		},
		Runner: Runner{
			BatchSize:            100,
			MaxRetries:           5,
			MaxRedirectsPerChain: 20,
			DrainInterval:        15 * time.Second,
			TxTimeout:            30 * time.Second,
			InstallStatePolicy:   true,
		},
		Fetcher: Fetcher{
			Timeout:            10 * time.Second,
			MaxWebDestinations: 3,
		},
		Privacy: privacy.DefaultLimits(),
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
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

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"REGISTRAR_ADDR":               &c.Server.Addr,
		"REGISTRAR_JWT_SIGNING_KEY":    &c.Server.JWTSigningKey,
		"REGISTRAR_ADMIN_TOKEN":        &c.Server.AdminToken,
		"REGISTRAR_POSTGRES_DSN":       &c.Postgres.DSN,
		"REGISTRAR_ENROLLMENT_DSN":     &c.Enrollment.DSN,
		"REGISTRAR_REDIS_URL":          &c.Redis.URL,
		"REGISTRAR_DEBUG_REPORT_TOPIC": &c.Kafka.DebugReportTopic,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("REGISTRAR_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("REGISTRAR_DEBUG_KEY_ALLOWLIST"); ok {
		c.Fetcher.DebugKeyAllowlist = splitList(v)
	}

	ints := map[string]*int{
		"REGISTRAR_BATCH_SIZE":              &c.Runner.BatchSize,
		"REGISTRAR_MAX_RETRIES":             &c.Runner.MaxRetries,
		"REGISTRAR_MAX_REDIRECTS_PER_CHAIN": &c.Runner.MaxRedirectsPerChain,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"REGISTRAR_DRAIN_INTERVAL": &c.Runner.DrainInterval,
		"REGISTRAR_FETCH_TIMEOUT":  &c.Fetcher.Timeout,
		"REGISTRAR_TX_TIMEOUT":     &c.Runner.TxTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	positive := map[string]int{
		"runner.batch_size":                                             c.Runner.BatchSize,
		"runner.max_retries":                                            c.Runner.MaxRetries,
		"runner.max_redirects_per_chain":                                c.Runner.MaxRedirectsPerChain,
		"fetcher.max_web_destinations":                                  c.Fetcher.MaxWebDestinations,
		"privacy.max_destinations_per_publisher_in_window":              c.Privacy.MaxDestinationsPerPublisherInWindow,
		"privacy.max_destinations_per_publisher_x_enrollment_in_window": c.Privacy.MaxDestinationsPerPublisherXEnrollmentInWindow,
		"privacy.max_destinations_in_active_source":                     c.Privacy.MaxDestinationsInActiveSource,
		"privacy.max_registration_origins_per_publisher_x_destination":  c.Privacy.MaxRegistrationOriginsPerPublisherXDestination,
		"privacy.max_sources_per_publisher":                             c.Privacy.MaxSourcesPerPublisher,
		"privacy.max_triggers_per_destination":                          c.Privacy.MaxTriggersPerDestination,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.Runner.DrainInterval <= 0 {
		errs = append(errs, errors.New("runner.drain_interval must be positive"))
	}
	if c.Fetcher.Timeout <= 0 {
		errs = append(errs, errors.New("fetcher.timeout must be positive"))
	}
	if c.Runner.TxTimeout <= 0 {
		errs = append(errs, errors.New("runner.tx_timeout must be positive"))
	} else if c.Fetcher.Timeout >= c.Runner.TxTimeout {
		errs = append(errs, fmt.Errorf("fetcher.timeout (%s) must be shorter than runner.tx_timeout (%s)", c.Fetcher.Timeout, c.Runner.TxTimeout))
	}
	if c.Privacy.Epsilon < 0 {
		errs = append(errs, errors.New("privacy.epsilon must not be negative"))
	}
	if c.Privacy.MaxReportStates <= 0 {
		errs = append(errs, errors.New("privacy.max_report_states must be positive"))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("server.jwt_signing_key is required"))
	}
	return errors.Join(errs...)
}
