package bigip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const readyPath = "/tm/sys/ready"

// readyStats is the shape of /mgmt/tm/sys/ready.
type readyStats struct {
	Entries map[string]struct {
		NestedStats struct {
			Entries map[string]struct {
				Description string `json:"description"`
			} `json:"entries"`
		} `json:"nestedStats"`
	} `json:"entries"`
}

// Ready reports whether config, license and provisioning are all ready.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	body, err := c.Get(ctx, readyPath)
	if err != nil {
		return false, err
	}

	var stats readyStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return false, fmt.Errorf("failed to decode readiness: %w", err)
	}

	for _, entry := range stats.Entries {
		fields := entry.NestedStats.Entries
		for _, key := range []string{"configReady", "licenseReady", "provisionReady"} {
			if fields[key].Description != "yes" {
				return false, nil
			}
		}
		return true, nil
	}
	return false, nil
}

// WaitReady polls the device with exponential backoff until it reports
// ready, ReadyTimeout elapses or ctx is done. Authentication failures stop
// the wait immediately.
func (c *Client) WaitReady(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 15 * time.Second
	policy.MaxElapsedTime = c.config.ReadyTimeout

	attempt := 0
	operation := func() error {
		attempt++
		ready, err := c.Ready(ctx)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok &&
				(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
				return backoff.Permanent(err)
			}
			return err
		}
		if !ready {
			return fmt.Errorf("device not ready")
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		c.logger.WithError(err).Debugf("device not ready (attempt %d), retrying in %s", attempt, next)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return fmt.Errorf("device %s did not become ready: %w", c.config.Host, err)
	}

	c.logger.Info("device ready")
	return nil
}
