// Package config loads daemon configuration from YAML. Transport
// options are kept as free-form maps in the file and decoded into
// typed structs with mapstructure, so each transport can grow settings
// without the top-level schema knowing about them.
package config

import (
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hostlink/go-hostlink/packet"
)

type Config struct {
	Mode      string         `yaml:"mode"`      // "serve" or "connect"
	Transport string         `yaml:"transport"` // "tcp", "unix", "ws" or "quic"
	Address   string         `yaml:"address"`
	Log       Log            `yaml:"log"`
	Link      Link           `yaml:"link"`
	Forwards  []Forward      `yaml:"forwards"`
	Options   map[string]any `yaml:"options"` // transport-specific
}

type Log struct {
	Level string `yaml:"level"` // zap level name; empty means "info"
}

type Link struct {
	SendBuffer          int    `yaml:"send_buffer"`
	ReceiveBuffer       int    `yaml:"receive_buffer"`
	MaxPacketSize       int    `yaml:"max_packet_size"`
	MaintenanceInterval string `yaml:"maintenance_interval"` // time.ParseDuration syntax
	PacketBudget        int    `yaml:"packet_budget"`
	Version             uint16 `yaml:"version"`
}

// Interval parses the maintenance interval, returning zero when unset
// so callers fall back to the transport default.
func (l Link) Interval() (time.Duration, error) {
	if l.MaintenanceInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.MaintenanceInterval)
	if err != nil {
		return 0, errors.Wrap(err, "parse maintenance_interval")
	}
	return d, nil
}

// Forward maps one channel to a TCP endpoint: in serve mode the target
// dialed for inbound channel data, in connect mode the local address
// listened on.
type Forward struct {
	Channel packet.ChannelID `yaml:"channel"`
	Address string           `yaml:"address"`
}

// QUICOptions are the transport options understood when transport is
// "quic".
type QUICOptions struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	Insecure bool   `mapstructure:"insecure"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "serve", "connect":
	default:
		return errors.Errorf("config: unknown mode %q", c.Mode)
	}
	switch c.Transport {
	case "", "tcp", "unix", "ws", "quic":
	default:
		return errors.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.Address == "" {
		return errors.New("config: address is required")
	}
	if len(c.Forwards) == 0 {
		return errors.New("config: at least one forward is required")
	}
	seen := make(map[packet.ChannelID]bool)
	for _, f := range c.Forwards {
		if seen[f.Channel] {
			return errors.Errorf("config: duplicate forward for channel %d", f.Channel)
		}
		seen[f.Channel] = true
		if f.Address == "" {
			return errors.Errorf("config: forward for channel %d has no address", f.Channel)
		}
	}
	return nil
}

// QUIC decodes the transport options as QUIC settings.
func (c *Config) QUIC() (*QUICOptions, error) {
	var o QUICOptions
	if err := mapstructure.Decode(c.Options, &o); err != nil {
		return nil, errors.Wrap(err, "decode quic options")
	}
	return &o, nil
}
