// Package config loads the game server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/go-l2server/frame"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the root of the configuration file.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Log     LogConfig     `yaml:"log"`
	Cache   CacheConfig   `yaml:"cache"`
	Workers WorkersConfig `yaml:"workers"`
	Metrics MetricsConfig `yaml:"metrics"`
	Seed    SeedConfig    `yaml:"seed"`
}

// NetworkConfig configures the client listener and per-session limits.
type NetworkConfig struct {
	Listen            string        `yaml:"listen"`
	MaxConnections    int           `yaml:"max_connections"`
	MaxFrameSize      int           `yaml:"max_frame_size"`
	OutboundQueueSize int           `yaml:"outbound_queue_size"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ServerID          int32         `yaml:"server_id"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	Console bool   `yaml:"console"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type WorkersConfig struct {
	Size int `yaml:"size"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// SeedConfig lists the accounts and characters created at startup. Session
// keys are given for every account or for none; without keys any non-empty
// account may log in.
type SeedConfig struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

type SeedAccount struct {
	Name       string          `yaml:"name"`
	SessionKey *SeedSessionKey `yaml:"session_key"`
	Characters []SeedCharacter `yaml:"characters"`
}

type SeedSessionKey struct {
	PlayKey1  int32 `yaml:"play_key1"`
	PlayKey2  int32 `yaml:"play_key2"`
	LoginKey1 int32 `yaml:"login_key1"`
	LoginKey2 int32 `yaml:"login_key2"`
}

// SeedCharacter is created in its account's next free slot. A zero level
// means level 1.
type SeedCharacter struct {
	Name    string `yaml:"name"`
	Level   int32  `yaml:"level"`
	Attack  int32  `yaml:"attack"`
	Defence int32  `yaml:"defence"`
	X       int32  `yaml:"x"`
	Y       int32  `yaml:"y"`
	Z       int32  `yaml:"z"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			Listen:            "0.0.0.0:7777",
			MaxConnections:    2000,
			MaxFrameSize:      frame.MaxFrameSize,
			OutboundQueueSize: 256,
			HandshakeTimeout:  10 * time.Second,
			IdleTimeout:       5 * time.Minute,
			WriteTimeout:      10 * time.Second,
			ServerID:          1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     5 * time.Minute,
		},
		Workers: WorkersConfig{
			Size: 8,
		},
	}
}

// Load reads the YAML file at path over Default and validates the result.
//
// Returns:
//   - The configuration, or an error if the file cannot be read, parsed or
//     fails validation
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Network.Listen); err != nil {
		errs = append(errs, fmt.Errorf("network.listen: %w", err))
	}
	if c.Network.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("network.max_connections must be positive"))
	}
	if c.Network.MaxFrameSize < frame.MinFrameSize || c.Network.MaxFrameSize > frame.MaxFrameSize {
		errs = append(errs, fmt.Errorf("network.max_frame_size must be in [%d, %d]", frame.MinFrameSize, frame.MaxFrameSize))
	}
	if c.Network.OutboundQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("network.outbound_queue_size must be positive"))
	}
	if c.Network.HandshakeTimeout < 0 || c.Network.IdleTimeout < 0 || c.Network.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("network timeouts must not be negative"))
	}
	if c.Workers.Size <= 0 {
		errs = append(errs, fmt.Errorf("workers.size must be positive"))
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("cache.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of %s, %s", c.Cache.Backend, CacheMemory, CacheRedis))
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	errs = append(errs, c.Seed.validate()...)

	return errors.Join(errs...)
}

func (s SeedConfig) validate() []error {
	var errs []error

	accounts := make(map[string]bool, len(s.Accounts))
	names := make(map[string]bool)
	keyed := 0
	for i, a := range s.Accounts {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("seed.accounts[%d].name is required", i))
		} else if accounts[a.Name] {
			errs = append(errs, fmt.Errorf("seed.accounts[%d]: duplicate account %q", i, a.Name))
		}
		accounts[a.Name] = true

		if a.SessionKey != nil {
			keyed++
		}

		for j, ch := range a.Characters {
			field := fmt.Sprintf("seed.accounts[%d].characters[%d]", i, j)
			if ch.Name == "" {
				errs = append(errs, fmt.Errorf("%s.name is required", field))
			} else if names[ch.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate character %q", field, ch.Name))
			}
			names[ch.Name] = true

			if ch.Level < 0 || ch.Attack < 0 || ch.Defence < 0 {
				errs = append(errs, fmt.Errorf("%s: stats must not be negative", field))
			}
		}
	}

	if keyed != 0 && keyed != len(s.Accounts) {
		errs = append(errs, fmt.Errorf("seed: session_key must be set on every account or on none"))
	}

	return errs
}
