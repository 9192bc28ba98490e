package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// writeTestKey writes an ed25519 private key to dir/name, encrypted when
// passphrase is set, and returns its path and public key.
func writeTestKey(t *testing.T, dir, name, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to convert public key: %v", err)
	}
	return path, sshPub
}

// tunnelConfig is a password-authenticated tunnel to a device that accepts
// any host key.
func tunnelConfig() *Config {
	cfg := DefaultConfig("bigip1.example.com", "admin")
	cfg.AuthMethod = AuthMethodPassword
	cfg.Password = "secret"
	cfg.StrictHostKeyChecking = false
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig("bigip1.example.com", "admin")

	if cfg.Address() != "bigip1.example.com:22" {
		t.Errorf("Address() = %s", cfg.Address())
	}
	if cfg.AuthMethod != AuthMethodKey {
		t.Errorf("AuthMethod = %s, want key", cfg.AuthMethod)
	}
	if !cfg.StrictHostKeyChecking {
		t.Error("host keys should be checked by default")
	}
	if want := filepath.Join(home, ".ssh", "known_hosts"); cfg.KnownHostsPath != want {
		t.Errorf("KnownHostsPath = %s, want %s", cfg.KnownHostsPath, want)
	}
	if cfg.KeepAliveInterval != 0 || cfg.ProxyPort != 22 || cfg.ConnectionTimeout != 30*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.IsProxyEnabled() || cfg.ProxyAddress() != "" {
		t.Error("no jump host should be configured by default")
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	keyPath, _ := writeTestKey(t, dir, "device_key", "")

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "password tunnel",
			modify: func(c *Config) {},
		},
		{
			name: "key tunnel",
			modify: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = keyPath
			},
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Port = 70000 },
			wantErr: "invalid port: 70000",
		},
		{
			name:    "missing user",
			modify:  func(c *Config) { c.User = "" },
			wantErr: "user is required",
		},
		{
			name:    "unsupported auth method",
			modify:  func(c *Config) { c.AuthMethod = "certificate" },
			wantErr: "unsupported auth method: certificate",
		},
		{
			name:    "empty auth method",
			modify:  func(c *Config) { c.AuthMethod = "" },
			wantErr: "unsupported auth method",
		},
		{
			name:    "password auth without password",
			modify:  func(c *Config) { c.Password = "" },
			wantErr: "password is required",
		},
		{
			name: "key file missing",
			modify: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = filepath.Join(dir, "absent")
			},
			wantErr: "private key file not found",
		},
		{
			name:    "zero connect timeout",
			modify:  func(c *Config) { c.ConnectionTimeout = 0 },
			wantErr: "connection timeout must be positive",
		},
		{
			name: "strict checking needs known_hosts",
			modify: func(c *Config) {
				c.StrictHostKeyChecking = true
				c.KnownHostsPath = ""
			},
			wantErr: "known_hosts path is required",
		},
		{
			name:   "relaxed checking without known_hosts",
			modify: func(c *Config) { c.KnownHostsPath = "" },
		},
		{
			name: "jump host without user",
			modify: func(c *Config) {
				c.ProxyHost = "bastion.example.com"
			},
			wantErr: "proxy user is required",
		},
		{
			name: "jump host with bad port",
			modify: func(c *Config) {
				c.ProxyHost = "bastion.example.com"
				c.ProxyUser = "ops"
				c.ProxyPort = 0
			},
			wantErr: "invalid proxy port: 0",
		},
		{
			name: "jump host",
			modify: func(c *Config) {
				c.ProxyHost = "bastion.example.com"
				c.ProxyUser = "ops"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tunnelConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate_DefaultKeyDiscovery(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := tunnelConfig()
	cfg.AuthMethod = AuthMethodKey

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "no default key found") {
		t.Fatalf("Validate() error = %v, want missing default key", err)
	}

	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		t.Fatal(err)
	}
	keyPath, _ := writeTestKey(t, sshDir, "id_rsa", "")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.PrivateKeyPath != keyPath {
		t.Errorf("PrivateKeyPath = %s, want %s", cfg.PrivateKeyPath, keyPath)
	}
}

func TestBuildSSHClientConfig_Auth(t *testing.T) {
	dir := t.TempDir()
	plainKey, _ := writeTestKey(t, dir, "plain", "")
	lockedKey, _ := writeTestKey(t, dir, "locked", "s3cret")

	tests := []struct {
		name      string
		modify    func(*Config)
		wantAuths int
		wantErr   string
	}{
		{
			name:      "password answers keyboard-interactive prompts",
			modify:    func(c *Config) {},
			wantAuths: 2,
		},
		{
			name: "unencrypted key",
			modify: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = plainKey
			},
			wantAuths: 1,
		},
		{
			name: "encrypted key with passphrase",
			modify: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = lockedKey
				c.PrivateKeyPassphrase = "s3cret"
			},
			wantAuths: 1,
		},
		{
			name: "encrypted key with wrong passphrase",
			modify: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = lockedKey
				c.PrivateKeyPassphrase = "guess"
			},
			wantErr: "failed to parse private key",
		},
		{
			name: "unreadable key",
			modify: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = filepath.Join(dir, "absent")
			},
			wantErr: "failed to read private key",
		},
		{
			name:    "unsupported auth method",
			modify:  func(c *Config) { c.AuthMethod = "gssapi" },
			wantErr: "unsupported auth method: gssapi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tunnelConfig()
			tt.modify(cfg)

			clientConfig, err := cfg.BuildSSHClientConfig()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("BuildSSHClientConfig() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildSSHClientConfig() error = %v", err)
			}
			if len(clientConfig.Auth) != tt.wantAuths {
				t.Errorf("auth methods = %d, want %d", len(clientConfig.Auth), tt.wantAuths)
			}
			if clientConfig.User != "admin" || clientConfig.Timeout != 30*time.Second {
				t.Errorf("unexpected client config user=%s timeout=%v", clientConfig.User, clientConfig.Timeout)
			}
		})
	}
}

func TestBuildSSHClientConfig_HostKeys(t *testing.T) {
	dir := t.TempDir()
	_, deviceKey := writeTestKey(t, dir, "device_host", "")
	_, otherKey := writeTestKey(t, dir, "other_host", "")

	knownHosts := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{"bigip1.example.com:22"}, deviceKey) + "\n"
	if err := os.WriteFile(knownHosts, []byte(line), 0600); err != nil {
		t.Fatal(err)
	}
	remote := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}

	t.Run("strict accepts the recorded key", func(t *testing.T) {
		cfg := tunnelConfig()
		cfg.StrictHostKeyChecking = true
		cfg.KnownHostsPath = knownHosts

		clientConfig, err := cfg.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("BuildSSHClientConfig() error = %v", err)
		}
		if err := clientConfig.HostKeyCallback("bigip1.example.com:22", remote, deviceKey); err != nil {
			t.Errorf("recorded key rejected: %v", err)
		}
		if err := clientConfig.HostKeyCallback("bigip1.example.com:22", remote, otherKey); err == nil {
			t.Error("changed host key accepted")
		}
		if err := clientConfig.HostKeyCallback("bigip2.example.com:22", remote, deviceKey); err == nil {
			t.Error("unknown host accepted")
		}
	})

	t.Run("strict fails without the known_hosts file", func(t *testing.T) {
		cfg := tunnelConfig()
		cfg.StrictHostKeyChecking = true
		cfg.KnownHostsPath = filepath.Join(dir, "absent")

		if _, err := cfg.BuildSSHClientConfig(); err == nil || !strings.Contains(err.Error(), "failed to load known_hosts") {
			t.Errorf("BuildSSHClientConfig() error = %v", err)
		}
	})

	t.Run("relaxed accepts any key", func(t *testing.T) {
		cfg := tunnelConfig()
		cfg.KnownHostsPath = knownHosts

		clientConfig, err := cfg.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("BuildSSHClientConfig() error = %v", err)
		}
		if err := clientConfig.HostKeyCallback("bigip1.example.com:22", remote, otherKey); err != nil {
			t.Errorf("relaxed checking rejected a key: %v", err)
		}
	})
}

func TestProxyConfig(t *testing.T) {
	cfg := tunnelConfig()
	cfg.StrictHostKeyChecking = true
	cfg.KnownHostsPath = "/etc/netonboard/known_hosts"
	cfg.ConnectionTimeout = 10 * time.Second
	cfg.ProxyHost = "bastion.example.com"
	cfg.ProxyPort = 2222
	cfg.ProxyUser = "ops"
	cfg.ProxyAuthMethod = AuthMethodKey
	cfg.ProxyPrivateKeyPath = "/keys/bastion"
	cfg.ProxyPassword = "unused"

	if !cfg.IsProxyEnabled() || cfg.ProxyAddress() != "bastion.example.com:2222" {
		t.Fatalf("proxy address = %q", cfg.ProxyAddress())
	}

	proxy := cfg.proxyConfig()
	want := &Config{
		Host:                  "bastion.example.com",
		Port:                  2222,
		User:                  "ops",
		AuthMethod:            AuthMethodKey,
		Password:              "unused",
		PrivateKeyPath:        "/keys/bastion",
		ConnectionTimeout:     10 * time.Second,
		StrictHostKeyChecking: true,
		KnownHostsPath:        "/etc/netonboard/known_hosts",
	}
	if *proxy != *want {
		t.Errorf("proxyConfig() = %+v, want %+v", proxy, want)
	}
	if proxy.IsProxyEnabled() {
		t.Error("the jump host must not chain to another jump host")
	}
	if proxy.Address() != cfg.ProxyAddress() {
		t.Errorf("proxy Address() = %s", proxy.Address())
	}
}
