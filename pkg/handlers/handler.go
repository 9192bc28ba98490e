// Package handlers applies the singleton settings of a declaration (system,
// GSLB and analytics globals) to a device.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/netonboard/netonboard/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Device is the part of the management API the handlers use.
type Device interface {
	// Get returns the raw body of the object at path.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Create posts body to the collection at path.
	Create(ctx context.Context, path string, body interface{}) error

	// Modify patches the object at path.
	Modify(ctx context.Context, path string, body interface{}) error

	// Replace puts body over the object at path.
	Replace(ctx context.Context, path string, body interface{}) error
}

// Handler applies one area of a declaration.
type Handler interface {
	// Name identifies the handler in logs and errors.
	Name() string

	// Process applies the handler's settings. A declaration without them is a no-op.
	Process(ctx context.Context) error
}

// Device paths.
const (
	PathNTP            = "/tm/sys/ntp"
	PathDNS            = "/tm/sys/dns"
	PathGlobalSettings = "/tm/sys/global-settings"
	PathDbVariables    = "/tm/sys/db"
	PathManagementDHCP = "/tm/sys/management-dhcp/sys-mgmt-dhcp-config"
	PathAnalytics      = "/tm/analytics/global-settings"
	PathGSLBGeneral    = "/tm/gtm/global-settings/general"
	PathUsers          = "/tm/auth/user"
	PathRootPassword   = "/shared/authn/root"
	PathLicense        = "/tm/sys/license"
	PathRegistration   = "/tm/shared/licensing/registration"
)

// Run processes handlers one after another and stops at the first failure.
func Run(ctx context.Context, logger *telemetry.Logger, handlers ...Handler) error {
	if logger == nil {
		logger = telemetry.NopLogger()
	}

	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}

		op := telemetry.StartOperation(ctx, logger, h.Name()+" declaration",
			attribute.String("handler", h.Name()))
		if err := op.End(h.Process(op.Ctx)); err != nil {
			return fmt.Errorf("%s: %w", h.Name(), err)
		}
	}
	return nil
}

// enabledDisabled renders a flag the way tmsh spells it.
func enabledDisabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// isNotFound reports whether err carries a 404 status.
func isNotFound(err error) bool {
	var status interface{ HTTPStatus() int }
	return errors.As(err, &status) && status.HTTPStatus() == http.StatusNotFound
}
