// Package config loads TOML files for the darrayctl binaries. Keys that are
// absent keep the package defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/darrayctl/internal/client"
	"github.com/danmuck/darrayctl/internal/coordinator"
)

var ErrInvalidConfig = errors.New("config: invalid")

type clientFile struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Timeout       string `toml:"timeout"`
	TimeoutMS     int64  `toml:"timeout_ms"`
	MaxReplyBytes int    `toml:"max_reply_bytes"`
	Sender        string `toml:"sender"`
	Recipient     string `toml:"recipient"`
}

type coordinatorFile struct {
	ID           string   `toml:"id"`
	ListenAddr   string   `toml:"listen_addr"`
	AdminAddr    string   `toml:"admin_addr"`
	AdminToken   string   `toml:"admin_token"`
	CORSOrigins  []string `toml:"cors_origins"`
	Workers      int      `toml:"workers"`
	ReadTimeout  string   `toml:"read_timeout"`
	MaxLineBytes int      `toml:"max_line_bytes"`
}

// LoadClientConfig reads path over client.DefaultConfig. Host and port may be
// left out and supplied later on the command line.
func LoadClientConfig(path string) (client.Config, error) {
	cfg := client.DefaultConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return client.Config{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return client.Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("host") {
		cfg.Transport.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Transport.Port = raw.Port
	}
	if meta.IsDefined("timeout") && meta.IsDefined("timeout_ms") {
		return client.Config{}, fmt.Errorf("%w: set timeout or timeout_ms, not both", ErrInvalidConfig)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return client.Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Transport.Timeout = d
	}
	if meta.IsDefined("timeout_ms") {
		cfg.Transport.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("max_reply_bytes") {
		cfg.Transport.MaxReplyBytes = raw.MaxReplyBytes
	}
	if meta.IsDefined("sender") {
		if v := strings.TrimSpace(raw.Sender); v != "" {
			cfg.Sender = v
		}
	}
	if meta.IsDefined("recipient") {
		if v := strings.TrimSpace(raw.Recipient); v != "" {
			cfg.Recipient = v
		}
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return client.Config{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg client.Config) error {
	t := cfg.Transport
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, t.Port)
	}
	if t.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfig)
	}
	if t.MaxReplyBytes < 0 {
		return fmt.Errorf("%w: max_reply_bytes must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func LoadCoordinatorConfig(path string) (coordinator.Config, error) {
	cfg := coordinator.DefaultConfig()

	var raw coordinatorFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return coordinator.Config{}, fmt.Errorf("load coordinator config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return coordinator.Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return coordinator.Config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("max_line_bytes") {
		cfg.MaxLineBytes = raw.MaxLineBytes
	}

	if err := ValidateCoordinatorConfig(cfg); err != nil {
		return coordinator.Config{}, err
	}
	return cfg, nil
}

func ValidateCoordinatorConfig(cfg coordinator.Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1", ErrInvalidConfig)
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read_timeout must be > 0", ErrInvalidConfig)
	}
	if cfg.MaxLineBytes <= 0 {
		return fmt.Errorf("%w: max_line_bytes must be > 0", ErrInvalidConfig)
	}
	if admin := strings.TrimSpace(cfg.AdminAddr); admin != "" && admin == strings.TrimSpace(cfg.ListenAddr) {
		return fmt.Errorf("%w: admin_addr must differ from listen_addr", ErrInvalidConfig)
	}
	return nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
