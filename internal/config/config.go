// Package config provides the TOML configuration for ssr-local.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for a single ssr-local
// instance: one local SOCKS5 listener tunnelling to one remote SSR
// server.
type Config struct {
	ListenHost string `toml:"listen_host"`
	ListenPort int    `toml:"listen_port"`

	RemoteHost string `toml:"remote_host"`
	RemotePort int    `toml:"remote_port"`

	Password string `toml:"password"`
	Method   string `toml:"method"`

	Protocol      string `toml:"protocol"`
	ProtocolParam string `toml:"protocol_param"`
	Obfs          string `toml:"obfs"`
	ObfsParam     string `toml:"obfs_param"`

	IdleTimeout Duration `toml:"idle_timeout"`
	UDP         bool     `toml:"udp"`
}

// Duration wraps time.Duration for TOML string parsing, e.g. "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads and parses a TOML configuration file, applying defaults
// before overlaying the file's own values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		ListenHost:  "127.0.0.1",
		ListenPort:  1080,
		Method:      "aes-256-cfb",
		Protocol:    "origin",
		Obfs:        "plain",
		IdleTimeout: Duration{60 * time.Second},
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for obvious errors before a session ever
// tries to use it.
func (c *Config) Validate() error {
	if c.RemoteHost == "" {
		return fmt.Errorf("remote_host is required")
	}
	if c.RemotePort <= 0 || c.RemotePort > 65535 {
		return fmt.Errorf("remote_port must be between 1 and 65535")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 1 and 65535")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// WriteDefault writes a default config file to the given path.
func WriteDefault(path string) error {
	content := `# ssr-local configuration

listen_host = "127.0.0.1"
listen_port = 1080

remote_host = "203.0.113.1"
remote_port = 8388

password = ""
method = "aes-256-cfb"

protocol = "origin"
protocol_param = ""
obfs = "plain"
obfs_param = ""

idle_timeout = "60s"
udp = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
