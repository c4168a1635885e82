// Package config loads blockwire settings from defaults, an optional file
// and BLOCKWIRE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/blockwire/internal/protocol"
)

// Config is the top-level blockwire configuration.
type Config struct {
	Handshake HandshakeConfig `mapstructure:"handshake"`
	Requests  RequestsConfig  `mapstructure:"requests"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Log       LogConfig       `mapstructure:"log"`
}

// HandshakeConfig controls how blocks retry init.
type HandshakeConfig struct {
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// MaxAttempts caps init retries. Zero retries until the engine closes.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// RequestsConfig controls outstanding requests.
type RequestsConfig struct {
	// Timeout fails a request with no response after this long. Zero
	// waits forever.
	Timeout time.Duration `mapstructure:"timeout"`
}

// TraceConfig selects the message trace database.
type TraceConfig struct {
	// Path is the SQLite file. Empty disables tracing.
	Path string `mapstructure:"path"`
}

// BridgeConfig locates the socket dock serve listens on.
type BridgeConfig struct {
	Socket string `mapstructure:"socket"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from path (or defaults) with environment
// variable overrides (prefix BLOCKWIRE_).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("handshake.retry_interval", protocol.DefaultInitRetryInterval)
	v.SetDefault("handshake.max_attempts", 0)
	v.SetDefault("requests.timeout", time.Duration(0))
	v.SetDefault("trace.path", "")
	v.SetDefault("bridge.socket", "blockwire.sock")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("BLOCKWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns every
// problem found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.Handshake.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: handshake.retry_interval must be positive, got %s", c.Handshake.RetryInterval))
	}
	if c.Handshake.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("config: handshake.max_attempts must not be negative, got %d", c.Handshake.MaxAttempts))
	}
	if c.Requests.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: requests.timeout must not be negative, got %s", c.Requests.Timeout))
	}
	if strings.TrimSpace(c.Bridge.Socket) == "" {
		errs = append(errs, errors.New("config: bridge.socket must not be empty"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level must be one of [debug, info, warn, error], got %q", c.Log.Level)
	}
	return level, nil
}

// EngineOptions converts the handshake and request settings into engine
// options. logger may be nil.
func (c *Config) EngineOptions(logger *slog.Logger) []protocol.EngineOption {
	opts := []protocol.EngineOption{
		protocol.WithInitRetryInterval(c.Handshake.RetryInterval),
		protocol.WithMaxInitAttempts(c.Handshake.MaxAttempts),
		protocol.WithRequestTimeout(c.Requests.Timeout),
	}
	if logger != nil {
		opts = append(opts, protocol.WithLogger(logger))
	}
	return opts
}
