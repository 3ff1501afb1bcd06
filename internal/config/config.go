// Package config resolves the server configuration. Values are applied in
// order: built-in defaults, the YAML config file, MANUTENCAO_* environment
// variables (a .env file may supply them), then command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "MANUTENCAO_"

// Config is the resolved server configuration.
type Config struct {
	Addr       string        `yaml:"addr"`
	Database   string        `yaml:"database"`
	LogPath    string        `yaml:"log"`
	Supervisor string        `yaml:"supervisor"`
	Timezone   string        `yaml:"timezone"`
	Metrics    MetricsConfig `yaml:"metrics"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MQTTConfig controls status event publishing. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:       ":8080",
		Database:   "manutencao.sqlite3",
		Supervisor: "encarregado",
		Timezone:   "Local",
		Metrics:    MetricsConfig{Enabled: true, Path: "/metrics"},
		MQTT:       MQTTConfig{ClientID: "manutencao", Topic: "manutencao", QoS: 1, Timeout: 5 * time.Second},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. A missing file is not an error unless path was given explicitly.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads path into the process environment if it exists. Variables
// already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from MANUTENCAO_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok
	}

	for name, dst := range map[string]*string{
		"ADDR":           &c.Addr,
		"DB":             &c.Database,
		"LOG":            &c.LogPath,
		"SUPERVISOR":     &c.Supervisor,
		"TIMEZONE":       &c.Timezone,
		"METRICS_PATH":   &c.Metrics.Path,
		"MQTT_BROKER":    &c.MQTT.Broker,
		"MQTT_CLIENT_ID": &c.MQTT.ClientID,
		"MQTT_TOPIC":     &c.MQTT.Topic,
	} {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("METRICS"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS: %w", EnvPrefix, err)
		}
		c.Metrics.Enabled = enabled
	}
	if v, ok := get("MQTT_QOS"); ok {
		qos, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("%sMQTT_QOS: %w", EnvPrefix, err)
		}
		c.MQTT.QoS = byte(qos)
	}
	if v, ok := get("MQTT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sMQTT_TIMEOUT: %w", EnvPrefix, err)
		}
		c.MQTT.Timeout = d
	}
	return nil
}

// RegisterFlags adds the flags ApplyFlags reads to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("addr", "a", d.Addr, "listen address")
	fs.StringP("db", "d", d.Database, "SQLite database path")
	fs.StringP("log", "l", "", "log file path (default: stdout/stderr only)")
	fs.StringP("supervisor", "u", d.Supervisor, "supervisor login created on first run")
	fs.String("mqtt-broker", "", "MQTT broker URL for status events, e.g. tcp://localhost:1883")
	fs.Bool("metrics", d.Metrics.Enabled, "expose Prometheus metrics")
}

// ApplyFlags overrides fields with the flags the user actually set.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	for name, dst := range map[string]*string{
		"addr":        &c.Addr,
		"db":          &c.Database,
		"log":         &c.LogPath,
		"supervisor":  &c.Supervisor,
		"mqtt-broker": &c.MQTT.Broker,
	} {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed("metrics") {
		enabled, err := fs.GetBool("metrics")
		if err != nil {
			return err
		}
		c.Metrics.Enabled = enabled
	}
	return nil
}

// Validate checks the combined configuration.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("listen address is empty")
	case c.Database == "":
		return errors.New("database path is empty")
	case strings.TrimSpace(c.Supervisor) == "":
		return errors.New("supervisor login is empty")
	case c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/"):
		return fmt.Errorf("metrics path %q must start with /", c.Metrics.Path)
	case c.MQTT.QoS > 2:
		return fmt.Errorf("mqtt qos %d out of range", c.MQTT.QoS)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the time zone dashboard dates are read in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
