package bigip

import (
	"fmt"
	"time"
)

// Config holds the connection settings of a device's iControl REST API.
type Config struct {
	// Host is the management address of the device.
	Host string `yaml:"host" env:"NETONBOARD_DEVICE_HOST" validate:"required"`

	// Port is the HTTPS management port.
	Port int `yaml:"port" env:"NETONBOARD_DEVICE_PORT" env-default:"443" validate:"min=1,max=65535"`

	// User and Password are sent as HTTP basic auth.
	User     string `yaml:"user" env:"NETONBOARD_DEVICE_USER" env-default:"admin" validate:"required"`
	Password string `yaml:"password" env:"NETONBOARD_DEVICE_PASSWORD"`

	// InsecureSkipVerify accepts the device's self-signed certificate.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"NETONBOARD_DEVICE_INSECURE"`

	// Timeout bounds a single request.
	Timeout time.Duration `yaml:"timeout" env-default:"60s"`

	// RateLimit is the sustained number of requests per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" env-default:"20" validate:"min=0"`

	// RateBurst is the maximum burst of requests above RateLimit.
	RateBurst int `yaml:"rate_burst" env-default:"10" validate:"min=0"`

	// ReadyTimeout bounds WaitReady. Zero waits until the context is done.
	ReadyTimeout time.Duration `yaml:"ready_timeout" env-default:"5m"`
}

// DefaultConfig returns a Config for host with default settings.
func DefaultConfig(host string) *Config {
	return &Config{
		Host:         host,
		Port:         443,
		User:         "admin",
		Timeout:      60 * time.Second,
		RateLimit:    20,
		RateBurst:    10,
		ReadyTimeout: 5 * time.Minute,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("device host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid device port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("device user is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		return fmt.Errorf("rate burst must be positive when rate limiting is enabled")
	}
	return nil
}

// Address returns the formatted management address (host:port).
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
