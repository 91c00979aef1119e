// Package config loads and validates the device configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration decodes yaml strings like "10s" or "5m" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full device configuration.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Broker BrokerConfig `yaml:"broker"`
	Sync   SyncConfig   `yaml:"sync"`
}

// DeviceConfig identifies this scanner device and its operator.
type DeviceConfig struct {
	// ID is sent as X-Device-ID on every remote call.
	ID string `yaml:"id" validate:"required"`
	// Actor stamps updated_by on writes originating from this device.
	Actor string `yaml:"actor" validate:"required"`
}

// ServerConfig points at the basket server.
type ServerConfig struct {
	BaseURL string   `yaml:"base_url" validate:"required,url"`
	Timeout Duration `yaml:"timeout"`

	// PurgeRemoteDeleted removes the local snapshot when the server
	// reports a basket gone. Off by default: a stale local row is
	// recoverable, a wrongly purged one is not.
	PurgeRemoteDeleted bool `yaml:"purge_remote_deleted"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// BrokerConfig points at the AMQP broker whose connection doubles as the
// connectivity signal.
type BrokerConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// SyncConfig tunes the reconciler.
type SyncConfig struct {
	// Sweep is a cron spec for periodic queue sweeps, e.g. "@every 5m".
	Sweep string `yaml:"sweep" validate:"required"`
	// MaxRetries is the replay abandonment cutoff. Zero disables it.
	MaxRetries int `yaml:"max_retries" validate:"gte=0"`
}

// Default returns the configuration used when a key is absent from the
// file. Device identity and endpoints have no sensible defaults and must
// be provided.
func Default() Config {
	return Config{
		Server: ServerConfig{Timeout: Duration(10 * time.Second)},
		Store:  StoreConfig{Path: "wareline.db"},
		Sync:   SyncConfig{Sweep: "@every 5m", MaxRetries: 10},
	}
}

// Load reads, decodes, and validates a configuration file. Absent keys
// keep their Default values.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}
