package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EVENT_RELAY_CONSUMER_PORT.
const EnvPrefix = "EVENT_RELAY"

// DefaultConfigName is looked up in the working directory when no path is given.
const DefaultConfigName = "config"

// Config holds the settings of both processes. It is built once at process
// entry and handed to the components that need it.
type Config struct {
	Consumer   ConsumerConfig   `mapstructure:"consumer"`
	Propagator PropagatorConfig `mapstructure:"propagator"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Tracing    TracingConfig    `mapstructure:"tracing"`

	// Warning is set when a config file was found but could not be used and
	// defaults were applied instead.
	Warning string `mapstructure:"-"`

	settings map[string]any
}

type ConsumerConfig struct {
	DBPath       string        `mapstructure:"db_path"`
	DBType       string        `mapstructure:"db_type"`
	DatabaseURL  string        `mapstructure:"database_url"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// Addr returns host:port for the HTTP listener.
func (c ConsumerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type PropagatorConfig struct {
	URL            string        `mapstructure:"url"`
	Interval       float64       `mapstructure:"interval"`
	EventsFilePath string        `mapstructure:"events_file_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// IntervalDuration converts the interval, expressed in seconds, to a duration.
func (c PropagatorConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Stdout  bool `mapstructure:"stdout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("consumer.db_path", "events.db")
	v.SetDefault("consumer.db_type", "sqlite")
	v.SetDefault("consumer.database_url", "")
	v.SetDefault("consumer.host", "127.0.0.1")
	v.SetDefault("consumer.port", 8000)
	v.SetDefault("consumer.read_timeout", "30s")
	v.SetDefault("consumer.write_timeout", "30s")
	v.SetDefault("consumer.idle_timeout", "120s")
	v.SetDefault("consumer.max_body_bytes", 1048576)

	v.SetDefault("propagator.url", "http://127.0.0.1:8000/event")
	v.SetDefault("propagator.interval", 5.0)
	v.SetDefault("propagator.events_file_path", "events.json")
	v.SetDefault("propagator.timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("rate_limit.requests", 1000)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "events.received")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.stdout", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration plus environment overrides.
func Default() (*Config, error) {
	return decode(newViper())
}

// Load reads configPath, or ./config.{json,yaml,...} when configPath is
// empty. A missing file silently yields defaults. A file that cannot be
// parsed also yields defaults, with Warning describing the problem.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	var warning string
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			warning = fmt.Sprintf("invalid config file %s, using defaults: %v", v.ConfigFileUsed(), err)
			v = newViper()
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.Warning = warning
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.settings = v.AllSettings()
	return &cfg, nil
}

// YAML renders the effective settings, keyed as they appear in a config file.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
