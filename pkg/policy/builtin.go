package policy

import (
	"time"
)

// Built-in policy names.
const (
	PolicyKeepDeviceGroups = "keep-device-groups"
	PolicyKeepRouteDomains = "keep-route-domains"
	PolicyKeepDefaultRoute = "keep-default-route"
	PolicyWarnAuth         = "warn-authentication"
)

// GetBuiltinPolicies returns all built-in policies. Only the warning policy
// is enabled by default; the others are opt-in.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		keepDeviceGroupsPolicy(),
		keepRouteDomainsPolicy(),
		keepDefaultRoutePolicy(),
		warnAuthenticationPolicy(),
	}
}

func keepDeviceGroupsPolicy() Policy {
	return Policy{
		Name:        PolicyKeepDeviceGroups,
		Description: "Never remove device groups, e.g. while a failover pair is being re-paired by hand",
		Severity:    SeverityError,
		Builtin:     true,
		CreatedAt:   time.Now(),
		Rego: `package netonboard.guards.devicegroups

import rego.v1

deny contains violation if {
	input.step.action == "device-group"
	violation := {
		"message": sprintf("device group %s is kept by policy", [input.step.instance]),
		"severity": "error",
	}
}
`,
	}
}

func keepRouteDomainsPolicy() Policy {
	return Policy{
		Name:        PolicyKeepRouteDomains,
		Description: "Never remove route domains",
		Severity:    SeverityError,
		Builtin:     true,
		CreatedAt:   time.Now(),
		Rego: `package netonboard.guards.routedomains

import rego.v1

deny contains violation if {
	input.step.class == "RouteDomain"
	violation := {
		"message": sprintf("route domain %s is kept by policy", [input.step.instance]),
		"severity": "error",
	}
}
`,
	}
}

func keepDefaultRoutePolicy() Policy {
	return Policy{
		Name:        PolicyKeepDefaultRoute,
		Description: "Never remove routes named default or default-inet6",
		Severity:    SeverityError,
		Builtin:     true,
		CreatedAt:   time.Now(),
		Rego: `package netonboard.guards.defaultroute

import rego.v1

default_routes := {"default", "default-inet6"}

deny contains violation if {
	input.step.class == "Route"
	default_routes[input.step.instance]
	violation := {
		"message": sprintf("route %s is kept by policy", [input.step.instance]),
		"severity": "error",
	}
}
`,
	}
}

func warnAuthenticationPolicy() Policy {
	return Policy{
		Name:        PolicyWarnAuth,
		Description: "Warns when remote authentication objects are removed",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		CreatedAt:   time.Now(),
		Rego: `package netonboard.guards.authentication

import rego.v1

# Authentication declarations plan one step per discovered object.
auth_classes := {
	"Authentication", "RemoteAuthRole",
	"radius", "tacacs", "ldap",
	"radius-server", "ssl-cert", "ssl-key",
}

deny contains msg if {
	auth_classes[input.step.class]
	msg := sprintf("removing %s %s changes how users log in", [input.step.class, input.step.instance])
}
`,
	}
}
