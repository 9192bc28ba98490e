// Package policy guards deletion plans with Rego policies evaluated by OPA.
//
// Each policy defines a "deny" set in its package. While a plan is built,
// every candidate step is passed as input:
//
//	{
//	  "step":    {"class": "Route", "instance": "r1", "partition": "Common",
//	              "path": "/tm/net/route/~Common~r1", "order": 70,
//	              "mode": "independent", "action": "delete"},
//	  "context": {"operation": "delete", "timestamp": "..."}
//	}
//
// A deny entry is either a message or an object with "message" and
// "severity". Entries of severity error or critical veto the step, which the
// plan then lists as skipped. Warnings are only logged.
//
// Example policy:
//
//	package netonboard.guards.vlans
//
//	import rego.v1
//
//	deny contains msg if {
//		input.step.class == "VLAN"
//		startswith(input.step.instance, "ha-")
//		msg := sprintf("HA VLAN %s must be removed by hand", [input.step.instance])
//	}
//
// Policies are loaded from .rego files (named after the file, severity
// error) or from JSON definitions carrying the fields of Policy. Engine.Watch
// reloads them when the files change.
package policy
