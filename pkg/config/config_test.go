package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/state"
	"github.com/netonboard/netonboard/pkg/transports/ssh"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "netonboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Engine.Partition != engine.DefaultPartition {
		t.Errorf("Partition = %s", cfg.Engine.Partition)
	}
	if cfg.State.Provider != state.KindNone {
		t.Errorf("State.Provider = %s", cfg.State.Provider)
	}
	if cfg.Store.Enabled {
		t.Error("store should be disabled by default")
	}
	if cfg.Device.Port != 443 || cfg.Device.User != "admin" {
		t.Errorf("unexpected device defaults %+v", cfg.Device)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.0.2.10
  password: secret
  timeout: 10s
engine:
  max_parallel: 4
  partition: Common
  enable_policies: [keep-device-groups, keep-route-domains]
store:
  enabled: true
  sqlite:
    path: /tmp/netonboard-test.db
state:
  provider: sqlite
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Host != "192.0.2.10" || cfg.Device.Password != "secret" {
		t.Errorf("unexpected device %+v", cfg.Device)
	}
	if cfg.Device.Timeout != 10*time.Second {
		t.Errorf("Device.Timeout = %v", cfg.Device.Timeout)
	}
	if cfg.Device.Port != 443 {
		t.Errorf("Device.Port = %d, want default 443", cfg.Device.Port)
	}
	if cfg.Engine.MaxParallel != 4 {
		t.Errorf("MaxParallel = %d", cfg.Engine.MaxParallel)
	}
	if len(cfg.Engine.EnablePolicies) != 2 {
		t.Errorf("EnablePolicies = %v", cfg.Engine.EnablePolicies)
	}
	if !cfg.Store.Enabled || cfg.Store.SQLite.Path != "/tmp/netonboard-test.db" {
		t.Errorf("unexpected store %+v", cfg.Store)
	}
	if cfg.State.Provider != state.KindSQLite {
		t.Errorf("State.Provider = %s", cfg.State.Provider)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.0.2.10
engine:
  max_parallel: 4
`)
	t.Setenv("NETONBOARD_DEVICE_HOST", "198.51.100.7")
	t.Setenv("NETONBOARD_MAX_PARALLEL", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Host != "198.51.100.7" {
		t.Errorf("Device.Host = %s", cfg.Device.Host)
	}
	if cfg.Engine.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d", cfg.Engine.MaxParallel)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("NETONBOARD_STATE_PROVIDER", "file")
	t.Setenv("NETONBOARD_STATE_PATH", "/tmp/state.json")
	t.Setenv("NETONBOARD_POLICY_PATHS", "/etc/netonboard/policies,/opt/policies")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.State.Provider != state.KindFile || cfg.State.Path != "/tmp/state.json" {
		t.Errorf("unexpected state %+v", cfg.State)
	}
	if len(cfg.Engine.PolicyPaths) != 2 || cfg.Engine.PolicyPaths[1] != "/opt/policies" {
		t.Errorf("PolicyPaths = %v", cfg.Engine.PolicyPaths)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "engine: [")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid state provider", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "state:\n  provider: s3\n")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestValidate(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, []byte("key"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "negative max parallel",
			mutate:  func(c *Config) { c.Engine.MaxParallel = -1 },
			wantErr: "MaxParallel",
		},
		{
			name:    "file state without path",
			mutate:  func(c *Config) { c.State.Provider = state.KindFile },
			wantErr: "Path",
		},
		{
			name:    "sqlite state without store",
			mutate:  func(c *Config) { c.State.Provider = state.KindSQLite },
			wantErr: "requires store.enabled",
		},
		{
			name: "sftp state without tunnel",
			mutate: func(c *Config) {
				c.State.Provider = state.KindSFTP
				c.State.Path = "/var/tmp/state.json"
			},
			wantErr: "requires tunnel.enabled",
		},
		{
			name:    "tunnel without host",
			mutate:  func(c *Config) { c.Tunnel.Enabled = true },
			wantErr: "Host",
		},
		{
			name: "tunnel password auth without password",
			mutate: func(c *Config) {
				c.Tunnel.Enabled = true
				c.Tunnel.Host = "jump.example.com"
				c.Tunnel.User = "ops"
				c.Tunnel.AuthMethod = "password"
			},
			wantErr: "password is required",
		},
		{
			name: "valid tunnel",
			mutate: func(c *Config) {
				c.Tunnel.Enabled = true
				c.Tunnel.Host = "jump.example.com"
				c.Tunnel.User = "ops"
				c.Tunnel.PrivateKeyPath = keyPath
				c.State.Provider = state.KindSFTP
				c.State.Path = "/var/tmp/state.json"
			},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "loud" },
			wantErr: "telemetry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestTunnelConfig_SSHConfig(t *testing.T) {
	tunnel := Default().Tunnel
	tunnel.Host = "jump.example.com"
	tunnel.User = "ops"
	tunnel.ProxyHost = "bastion.example.com"
	tunnel.ProxyUser = "ops"

	cfg := tunnel.SSHConfig()

	if cfg.Host != "jump.example.com" || cfg.Port != 22 || cfg.User != "ops" {
		t.Errorf("unexpected endpoint %+v", cfg)
	}
	if cfg.AuthMethod != ssh.AuthMethodKey {
		t.Errorf("AuthMethod = %s", cfg.AuthMethod)
	}
	if cfg.ProxyAuthMethod != ssh.AuthMethodKey {
		t.Errorf("ProxyAuthMethod = %s, want inherited key", cfg.ProxyAuthMethod)
	}
	if cfg.ConnectionTimeout != 30*time.Second || cfg.KeepAliveInterval != 30*time.Second {
		t.Errorf("unexpected timeouts %v %v", cfg.ConnectionTimeout, cfg.KeepAliveInterval)
	}
}
