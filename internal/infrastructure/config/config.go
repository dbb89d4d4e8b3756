package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for melcloudd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Storage  StorageConfig   `yaml:"storage"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	API      APIConfig       `yaml:"api"`
	History  HistoryConfig   `yaml:"history"`
	InfluxDB InfluxDBConfig  `yaml:"influxdb"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// AccountConfig describes one MELCloud account to mirror.
type AccountConfig struct {
	// Name identifies the account in storage paths, topics and logs.
	// It must be unique across accounts.
	Name string `yaml:"name"`

	// Email and Password are the MELCloud credentials.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// Language is the numeric MELCloud language id (0 = English).
	Language int `yaml:"language"`

	// RefreshIntervalSeconds is the cadence of the device list refresh.
	// Default: 120.
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`

	// DeviceIntervalSeconds is the cadence of the per-device state check.
	// Default: 15.
	DeviceIntervalSeconds int `yaml:"device_interval_seconds"`

	// BaseURL overrides the MELCloud endpoint. Intended for tests.
	BaseURL string `yaml:"base_url,omitempty"`

	// AllowInsecureTLS disables TLS certificate verification for the
	// vendor endpoint. The production MELCloud service presents a
	// certificate the client cannot validate, so this defaults to true.
	// Set to false only against an endpoint with a verifiable chain.
	AllowInsecureTLS *bool `yaml:"allow_insecure_tls,omitempty"`
}

// StorageConfig contains the on-disk snapshot cache settings.
type StorageConfig struct {
	// Dir is the root directory for account and device snapshot files.
	Dir string `yaml:"dir"`
}

// MQTTConfig contains MQTT bridge settings.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
	// Prefix is the topic prefix for all bridge topics. Default: "melcloudd".
	Prefix string `yaml:"prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// HistoryConfig contains local state-history settings.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file for the state-change audit trail.
	Path string `yaml:"path"`

	// RetentionDays bounds how long history rows are kept. 0 keeps forever.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MELCLOUDD_SECTION_KEY
// For example: MELCLOUDD_STORAGE_DIR, MELCLOUDD_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyAccountDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir: "./data",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "melcloudd",
			},
			QoS:    1,
			Prefix: "melcloudd",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		History: HistoryConfig{
			Path:          "./data/history.db",
			RetentionDays: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyAccountDefaults fills per-account zero values with defaults.
func applyAccountDefaults(cfg *Config) {
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.RefreshIntervalSeconds <= 0 {
			acc.RefreshIntervalSeconds = 120
		}
		if acc.DeviceIntervalSeconds <= 0 {
			acc.DeviceIntervalSeconds = 15
		}
		if acc.AllowInsecureTLS == nil {
			insecure := true
			acc.AllowInsecureTLS = &insecure
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MELCLOUDD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Storage
	if v := os.Getenv("MELCLOUDD_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}

	// Credentials for a single-account setup. Multi-account setups
	// configure credentials in the file.
	if len(cfg.Accounts) == 1 {
		if v := os.Getenv("MELCLOUDD_ACCOUNT_EMAIL"); v != "" {
			cfg.Accounts[0].Email = v
		}
		if v := os.Getenv("MELCLOUDD_ACCOUNT_PASSWORD"); v != "" {
			cfg.Accounts[0].Password = v
		}
	}

	// MQTT
	if v := os.Getenv("MELCLOUDD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MELCLOUDD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MELCLOUDD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("MELCLOUDD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MELCLOUDD_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("MELCLOUDD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("MELCLOUDD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for missing or inconsistent values.
//
// Returns:
//   - error: Describing the first problem found, or nil
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for i, acc := range c.Accounts {
		if acc.Name == "" {
			return fmt.Errorf("accounts[%d]: name is required", i)
		}
		if _, dup := seen[acc.Name]; dup {
			return fmt.Errorf("accounts[%d]: duplicate account name %q", i, acc.Name)
		}
		seen[acc.Name] = struct{}{}

		if acc.Email == "" {
			return fmt.Errorf("account %q: email is required", acc.Name)
		}
		if acc.Password == "" {
			return fmt.Errorf("account %q: password is required", acc.Name)
		}
	}

	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			return fmt.Errorf("mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("api.port must be between 1 and 65535")
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			return fmt.Errorf("influxdb.token is required when influxdb is enabled")
		}
	}

	return nil
}

// RefreshInterval returns the device list refresh cadence for an account.
func (a AccountConfig) RefreshInterval() time.Duration {
	return time.Duration(a.RefreshIntervalSeconds) * time.Second
}

// DeviceInterval returns the per-device state check cadence for an account.
func (a AccountConfig) DeviceInterval() time.Duration {
	return time.Duration(a.DeviceIntervalSeconds) * time.Second
}

// InsecureTLS reports whether TLS certificate verification is disabled.
func (a AccountConfig) InsecureTLS() bool {
	return a.AllowInsecureTLS == nil || *a.AllowInsecureTLS
}

// GetReadTimeout returns the API read timeout as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a time.Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a time.Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
