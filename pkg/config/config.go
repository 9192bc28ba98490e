package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/netonboard/netonboard/pkg/bigip"
	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/state"
	"github.com/netonboard/netonboard/pkg/stores"
	"github.com/netonboard/netonboard/pkg/telemetry"
	"github.com/netonboard/netonboard/pkg/transports/ssh"
)

type (
	// Config is the netonboard configuration.
	Config struct {
		Device    bigip.Config     `yaml:"device" validate:"-"`
		Tunnel    TunnelConfig     `yaml:"tunnel"`
		Engine    EngineConfig     `yaml:"engine"`
		Store     StoreConfig      `yaml:"store"`
		State     state.Config     `yaml:"state"`
		Telemetry telemetry.Config `yaml:"telemetry"`
	}

	// EngineConfig tunes reconciliation passes.
	EngineConfig struct {
		// MaxParallel bounds concurrent steps within a stage. Zero means unbounded.
		MaxParallel int `yaml:"max_parallel" env:"NETONBOARD_MAX_PARALLEL" validate:"min=0"`

		// Partition is the declaration partition to reconcile.
		Partition string `yaml:"partition" env:"NETONBOARD_PARTITION" env-default:"Common" validate:"required"`

		// WaitReady polls the device until it reports ready before a pass.
		WaitReady bool `yaml:"wait_ready" env:"NETONBOARD_WAIT_READY"`

		// PolicyPaths are .rego or JSON policy files and directories.
		PolicyPaths []string `yaml:"policy_paths" env:"NETONBOARD_POLICY_PATHS" env-separator:","`

		// EnablePolicies turns on built-in policies by name.
		EnablePolicies []string `yaml:"enable_policies" env:"NETONBOARD_ENABLE_POLICIES" env-separator:","`

		// WatchPolicies reloads policy files when they change.
		WatchPolicies bool `yaml:"watch_policies"`
	}

	// StoreConfig configures the SQLite store.
	StoreConfig struct {
		// Enabled records pass history and allows the sqlite state provider.
		Enabled bool `yaml:"enabled" env:"NETONBOARD_STORE_ENABLED"`

		SQLite stores.Config `yaml:"sqlite"`
	}

	// TunnelConfig configures the optional SSH tunnel to the device.
	TunnelConfig struct {
		Enabled               bool          `yaml:"enabled" env:"NETONBOARD_TUNNEL_ENABLED"`
		Host                  string        `yaml:"host" env:"NETONBOARD_TUNNEL_HOST" validate:"required_if=Enabled true"`
		Port                  int           `yaml:"port" env-default:"22" validate:"min=1,max=65535"`
		User                  string        `yaml:"user" env:"NETONBOARD_TUNNEL_USER" validate:"required_if=Enabled true"`
		AuthMethod            string        `yaml:"auth_method" env-default:"key" validate:"oneof=key password"`
		Password              string        `yaml:"password" env:"NETONBOARD_TUNNEL_PASSWORD"`
		PrivateKeyPath        string        `yaml:"private_key_path" env:"NETONBOARD_TUNNEL_KEY"`
		PrivateKeyPassphrase  string        `yaml:"private_key_passphrase" env:"NETONBOARD_TUNNEL_KEY_PASSPHRASE"`
		KnownHostsPath        string        `yaml:"known_hosts_path"`
		StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" env-default:"true"`
		ConnectTimeout        time.Duration `yaml:"connect_timeout" env-default:"30s"`
		KeepAliveInterval     time.Duration `yaml:"keepalive_interval" env-default:"30s"`
		ProxyHost             string        `yaml:"proxy_host"`
		ProxyPort             int           `yaml:"proxy_port" env-default:"22"`
		ProxyUser             string        `yaml:"proxy_user"`
		ProxyAuthMethod       string        `yaml:"proxy_auth_method"`
		ProxyPassword         string        `yaml:"proxy_password"`
		ProxyPrivateKeyPath   string        `yaml:"proxy_private_key_path"`
	}
)

var validate = validator.New()

// Load reads the configuration from path, then from the environment. A .env
// file in the working directory is loaded first when present. An empty path
// uses environment variables and defaults only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Device: *bigip.DefaultConfig(""),
		Tunnel: TunnelConfig{
			Port:                  22,
			AuthMethod:            string(ssh.AuthMethodKey),
			KnownHostsPath:        filepath.Join(home, ".ssh", "known_hosts"),
			StrictHostKeyChecking: true,
			ConnectTimeout:        30 * time.Second,
			KeepAliveInterval:     30 * time.Second,
			ProxyPort:             22,
		},
		Engine: EngineConfig{
			Partition: engine.DefaultPartition,
		},
		Store: StoreConfig{
			SQLite: stores.Config{Path: "netonboard.db"},
		},
		State:     state.Config{Provider: state.KindNone},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	if c.State.Provider == state.KindSQLite && !c.Store.Enabled {
		return fmt.Errorf("state provider sqlite requires store.enabled")
	}
	if c.State.Provider == state.KindSFTP && !c.Tunnel.Enabled {
		return fmt.Errorf("state provider sftp requires tunnel.enabled")
	}
	if c.Tunnel.Enabled {
		if err := c.Tunnel.SSHConfig().Validate(); err != nil {
			return fmt.Errorf("invalid tunnel configuration: %w", err)
		}
	}
	return nil
}

// SSHConfig converts the tunnel section to a transport config.
func (t TunnelConfig) SSHConfig() *ssh.Config {
	cfg := &ssh.Config{
		Host:                  t.Host,
		Port:                  t.Port,
		User:                  t.User,
		AuthMethod:            ssh.AuthMethod(t.AuthMethod),
		Password:              t.Password,
		PrivateKeyPath:        t.PrivateKeyPath,
		PrivateKeyPassphrase:  t.PrivateKeyPassphrase,
		KnownHostsPath:        t.KnownHostsPath,
		StrictHostKeyChecking: t.StrictHostKeyChecking,
		ConnectionTimeout:     t.ConnectTimeout,
		KeepAliveInterval:     t.KeepAliveInterval,
		MaxKeepAliveRetries:   3,
		ProxyHost:             t.ProxyHost,
		ProxyPort:             t.ProxyPort,
		ProxyUser:             t.ProxyUser,
		ProxyAuthMethod:       ssh.AuthMethod(t.ProxyAuthMethod),
		ProxyPassword:         t.ProxyPassword,
		ProxyPrivateKeyPath:   t.ProxyPrivateKeyPath,
	}
	if cfg.ProxyAuthMethod == "" {
		cfg.ProxyAuthMethod = cfg.AuthMethod
	}
	return cfg
}
