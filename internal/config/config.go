package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings shared by every command.
type Config struct {
	PeerIdPrefix     string        `mapstructure:"peer_id_prefix"`
	Port             int           `mapstructure:"port"`
	MaxPeers         int           `mapstructure:"max_peers"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	MaxMessageLength int           `mapstructure:"max_message_length"`
	MaxDecodeDepth   int           `mapstructure:"max_decode_depth"`
	PeerCachePath    string        `mapstructure:"peer_cache_path"`
	AnnounceRetries  int           `mapstructure:"announce_retries"`
}

func DefaultConfig() Config {
	cfg, err := decode(defaults())

	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}

	return *cfg
}

/*
Load reads the YAML file at path and layers it between the built-in defaults
and overrides (usually command-line flags):

	defaults < file < overrides

An empty path means DefaultPath(); a missing file at the default path yields
the defaults, a missing explicit path is an error. Unknown keys are rejected.
*/
func Load(path string, overrides map[string]any) (*Config, error) {
	explicit := path != ""

	if !explicit {
		path = DefaultPath()
	}

	values := defaults()

	fileValues, err := readFile(path)

	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, err
	}

	for key, value := range fileValues {
		values[key] = value
	}

	for key, value := range overrides {
		values[key] = value
	}

	cfg, err := decode(values)

	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	return cfg, nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	values := map[string]any{}

	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return values, nil
}

func decode(values map[string]any) (*Config, error) {
	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &cfg,
	})

	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case len(c.PeerIdPrefix) >= 20:
		return fmt.Errorf("%w: peer_id_prefix must be shorter than 20 bytes", ErrInvalidConfig)
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("%w: port %d is out of range", ErrInvalidConfig, c.Port)
	case c.MaxPeers < 1:
		return fmt.Errorf("%w: max_peers must be at least 1", ErrInvalidConfig)
	case c.MaxMessageLength < 1:
		return fmt.Errorf("%w: max_message_length must be positive", ErrInvalidConfig)
	case c.MaxDecodeDepth < 1:
		return fmt.Errorf("%w: max_decode_depth must be positive", ErrInvalidConfig)
	case c.AnnounceRetries < 1:
		return fmt.Errorf("%w: announce_retries must be at least 1", ErrInvalidConfig)
	case c.DialTimeout < 0 || c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}

	return nil
}
