// Package config loads and validates Aegis's runtime configuration, in the
// teacher's per-section Validate()/ApplyDefaults() idiom
// (engine/config/unified_config.go), composed by a single top-level Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fieldwatch/aegis/internal/backoff"
	"github.com/fieldwatch/aegis/internal/health"
)

// StoreConfig configures the Persistence Writer's database connection.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	BatchSize       int
	MaxRetries      int
	MigrationsDir   string
	WriterHighWater int
	WriterLowWater  int
}

func (c StoreConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("store: dsn is required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("store: max_conns must be > 0")
	}
	if c.WriterHighWater <= c.WriterLowWater {
		return fmt.Errorf("store: writer_high_water must exceed writer_low_water")
	}
	return nil
}

func (c *StoreConfig) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 8
	}
	if c.BatchSize == 0 {
		c.BatchSize = 200
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "embedded"
	}
	if c.WriterHighWater == 0 {
		c.WriterHighWater = 5000
	}
	if c.WriterLowWater == 0 {
		c.WriterLowWater = 1000
	}
}

// IngestConfig configures the HTTP Collector and Bus Subscriber.
type IngestConfig struct {
	HTTPWorkers    int
	MaxInFlight    int
	Backoff        backoff.Config
	MQTTBrokerURL  string
	MQTTClientID   string
	MQTTTopics     []string
	MQTTEnabled    bool
}

func (c IngestConfig) Validate() error {
	if c.HTTPWorkers <= 0 {
		return fmt.Errorf("ingest: http_workers must be > 0")
	}
	if c.MQTTEnabled && c.MQTTBrokerURL == "" {
		return fmt.Errorf("ingest: mqtt_broker_url is required when mqtt is enabled")
	}
	return nil
}

func (c *IngestConfig) applyDefaults() {
	if c.HTTPWorkers == 0 {
		c.HTTPWorkers = 4
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 16
	}
	if c.Backoff == (backoff.Config{}) {
		c.Backoff = backoff.DefaultConfig()
	}
	if c.MQTTClientID == "" {
		c.MQTTClientID = "aegis-server"
	}
	if len(c.MQTTTopics) == 0 {
		c.MQTTTopics = []string{"wardragon/drones", "wardragon/drone/+", "wardragon/aircraft", "wardragon/signals", "wardragon/system/attrs"}
	}
}

// RegistryConfig configures the Kit Registry.
type RegistryConfig struct {
	KitFilePath  string
	WatchFile    bool
	Thresholds   health.Thresholds
	HealthTTL    time.Duration
}

func (c RegistryConfig) Validate() error {
	if c.KitFilePath == "" {
		return fmt.Errorf("registry: kit_file_path is required")
	}
	return nil
}

func (c *RegistryConfig) applyDefaults() {
	if c.Thresholds == (health.Thresholds{}) {
		c.Thresholds = health.DefaultThresholds()
	}
	if c.HealthTTL == 0 {
		c.HealthTTL = 2 * time.Second
	}
}

// HTTPAPIConfig configures the Read HTTP API.
type HTTPAPIConfig struct {
	ListenAddr     string
	AllowedOrigins []string
}

func (c HTTPAPIConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("httpapi: listen_addr is required")
	}
	return nil
}

func (c *HTTPAPIConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	MetricsEnabled   bool
	MetricsBackend   string // "prom" (default), "otel", or "noop"
	PrometheusAddr   string
	TracingEnabled   bool
	CardinalityLimit int
}

func (c *TelemetryConfig) applyDefaults() {
	if c.MetricsBackend == "" {
		c.MetricsBackend = "prom"
	}
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
	if c.CardinalityLimit == 0 {
		c.CardinalityLimit = 200
	}
}

// Config is the top-level, validated configuration the server boots from.
type Config struct {
	Store     StoreConfig
	Ingest    IngestConfig
	Registry  RegistryConfig
	HTTPAPI   HTTPAPIConfig
	Telemetry TelemetryConfig
}

// Defaults returns a fully-populated default configuration; callers
// overlay env/flag overrides on top of it before calling Validate.
func Defaults() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	c.Store.applyDefaults()
	c.Ingest.applyDefaults()
	c.Registry.applyDefaults()
	c.HTTPAPI.applyDefaults()
	c.Telemetry.applyDefaults()
}

// Validate checks every section in turn, matching the teacher's
// UnifiedBusinessConfig.Validate() composition style.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.HTTPAPI.Validate(); err != nil {
		return err
	}
	return nil
}

// FromEnv overlays environment variables onto a Defaults() config. Unset
// variables leave the default in place.
func FromEnv() Config {
	c := Defaults()
	if v := os.Getenv("AEGIS_DB_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("AEGIS_DB_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.MaxConns = int32(n)
		}
	}
	if v := os.Getenv("AEGIS_MQTT_BROKER_URL"); v != "" {
		c.Ingest.MQTTBrokerURL = v
		c.Ingest.MQTTEnabled = true
	}
	if v := os.Getenv("AEGIS_KIT_FILE"); v != "" {
		c.Registry.KitFilePath = v
	}
	if v := os.Getenv("AEGIS_HTTP_LISTEN_ADDR"); v != "" {
		c.HTTPAPI.ListenAddr = v
	}
	if v := os.Getenv("AEGIS_METRICS_ENABLED"); v != "" {
		c.Telemetry.MetricsEnabled = v == "1" || v == "true"
	}
	if v := os.Getenv("AEGIS_PROMETHEUS_ADDR"); v != "" {
		c.Telemetry.PrometheusAddr = v
	}
	if v := os.Getenv("AEGIS_METRICS_BACKEND"); v != "" {
		c.Telemetry.MetricsBackend = v
	}
	return c
}
