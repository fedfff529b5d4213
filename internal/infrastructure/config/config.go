package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the whac bridge and the
// cloud collector. All configuration is loaded from YAML and can be
// overridden by environment variables.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Cloud   CloudConfig   `yaml:"cloud"`
	Logging LoggingConfig `yaml:"logging"`
}

// SerialConfig contains serial transport settings for the device link.
type SerialConfig struct {
	// Port is the serial device path (e.g. "/dev/ttyACM0", "COM3").
	Port string `yaml:"port"`

	// BaudRate is the line speed. The MAX32655 firmware uses 115200.
	BaudRate int `yaml:"baud_rate"`

	// ReadTimeoutMs bounds a single blocking read so the forward loop can
	// service heartbeat timing. Default: 100ms.
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Keepalive int                 `yaml:"keepalive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// RetainState controls whether bridge status publishes are retained so
	// late subscribers see the last known device status.
	RetainState bool `yaml:"retain_state"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains broker reconnection settings. Broker-side
// reconnection is handled by the paho client itself, not reimplemented.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BridgeConfig contains bridge behaviour settings.
type BridgeConfig struct {
	// Namespace is the topic namespace prefix (default "whac").
	Namespace string `yaml:"namespace"`

	// IdentifyTimeout is how long to wait for the identify handshake
	// response before giving up (seconds). Default: 10.
	IdentifyTimeout int `yaml:"identify_timeout"`

	// HeartbeatInterval is how often the bridge republishes "online" to
	// prove it is alive (seconds). Default: 20.
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// Reconnect controls serial reconnection after a mid-run read failure.
	Reconnect SerialReconnectConfig `yaml:"reconnect"`
}

// SerialReconnectConfig bounds the serial reconnection window.
type SerialReconnectConfig struct {
	// Timeout is the total budget before giving up (seconds). Default: 600.
	Timeout int `yaml:"timeout"`

	// RetryInterval is the delay between open attempts (seconds). Default: 2.
	RetryInterval int `yaml:"retry_interval"`
}

// CloudConfig contains settings for the cloud collector binary.
type CloudConfig struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`

	// StaleAfter marks a device offline when no traffic has been seen for
	// this many seconds. Default: 60 (three missed heartbeats).
	StaleAfter int `yaml:"stale_after"`
}

// HTTPConfig contains the collector's HTTP API settings.
type HTTPConfig struct {
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Timeouts HTTPTimeoutConfig `yaml:"timeouts"`
}

// HTTPTimeoutConfig contains HTTP timeout settings in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the optional
// reaction-time series.
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

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WHAC_SECTION_KEY
// For example: WHAC_SERIAL_PORT, WHAC_MQTT_HOST
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults. The timing defaults
// match the device firmware's expectations.
func defaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:      115200,
			ReadTimeoutMs: 100,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:       2,
			Keepalive: 30,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     30,
			},
		},
		Bridge: BridgeConfig{
			Namespace:         "whac",
			IdentifyTimeout:   10,
			HeartbeatInterval: 20,
			Reconnect: SerialReconnectConfig{
				Timeout:       600,
				RetryInterval: 2,
			},
		},
		Cloud: CloudConfig{
			HTTP: HTTPConfig{
				Host: "0.0.0.0",
				Port: 8080,
				Timeouts: HTTPTimeoutConfig{
					Read:  30,
					Write: 30,
					Idle:  60,
				},
			},
			Database: DatabaseConfig{
				Path:        "./data/whac.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
			StaleAfter: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern: WHAC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Serial
	if v := os.Getenv("WHAC_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("WHAC_SERIAL_BAUD"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil {
			cfg.Serial.BaudRate = baud
		}
	}

	// MQTT
	if v := os.Getenv("WHAC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WHAC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("WHAC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WHAC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Cloud
	if v := os.Getenv("WHAC_DATABASE_PATH"); v != "" {
		cfg.Cloud.Database.Path = v
	}
	if v := os.Getenv("WHAC_INFLUXDB_TOKEN"); v != "" {
		cfg.Cloud.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Serial.BaudRate <= 0 {
		errs = append(errs, "serial.baud_rate must be positive")
	}
	if c.Serial.ReadTimeoutMs <= 0 {
		errs = append(errs, "serial.read_timeout_ms must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.Bridge.Namespace == "" {
		errs = append(errs, "bridge.namespace is required")
	}
	if strings.ContainsAny(c.Bridge.Namespace, "+#/") {
		errs = append(errs, "bridge.namespace must not contain MQTT separators or wildcards")
	}
	if c.Bridge.IdentifyTimeout <= 0 {
		errs = append(errs, "bridge.identify_timeout must be positive")
	}
	if c.Bridge.HeartbeatInterval <= 0 {
		errs = append(errs, "bridge.heartbeat_interval must be positive")
	}
	if c.Bridge.Reconnect.Timeout <= 0 {
		errs = append(errs, "bridge.reconnect.timeout must be positive")
	}
	if c.Bridge.Reconnect.RetryInterval <= 0 {
		errs = append(errs, "bridge.reconnect.retry_interval must be positive")
	}

	if c.Cloud.HTTP.Port < 1 || c.Cloud.HTTP.Port > 65535 {
		errs = append(errs, "cloud.http.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateBridge performs the additional checks the bridge binary needs.
// The serial port is only required when actually bridging a device, so the
// cloud collector can share the same config file without one.
func (c *Config) ValidateBridge() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required (set WHAC_SERIAL_PORT or serial.port)")
	}
	return nil
}

// GetReadTimeout returns the serial per-read timeout as a Duration.
func (c *SerialConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// GetIdentifyTimeout returns the handshake budget as a Duration.
func (c *BridgeConfig) GetIdentifyTimeout() time.Duration {
	return time.Duration(c.IdentifyTimeout) * time.Second
}

// GetHeartbeatInterval returns the heartbeat cadence as a Duration.
func (c *BridgeConfig) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// GetTimeout returns the total serial reconnect budget as a Duration.
func (c *SerialReconnectConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetRetryInterval returns the delay between reconnect attempts as a Duration.
func (c *SerialReconnectConfig) GetRetryInterval() time.Duration {
	return time.Duration(c.RetryInterval) * time.Second
}

// GetKeepalive returns the MQTT keepalive as a Duration.
func (c *MQTTConfig) GetKeepalive() time.Duration {
	return time.Duration(c.Keepalive) * time.Second
}

// GetStaleAfter returns the device staleness window as a Duration.
func (c *CloudConfig) GetStaleAfter() time.Duration {
	return time.Duration(c.StaleAfter) * time.Second
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
