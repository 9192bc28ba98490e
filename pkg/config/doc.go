// Package config loads the netonboard configuration.
//
// Settings come from a YAML file, then from environment variables, which
// take precedence. A .env file in the working directory is read into the
// environment first when present. Fields left unset fall back to the values
// in Default.
//
// Example file:
//
//	device:
//	  host: 192.0.2.10
//	  user: admin
//	  insecure_skip_verify: true
//	engine:
//	  max_parallel: 8
//	  enable_policies: [keep-device-groups]
//	store:
//	  enabled: true
//	  sqlite:
//	    path: /var/lib/netonboard/netonboard.db
//	state:
//	  provider: sqlite
//
// The device section is checked when a client is built, so commands that
// never reach the device run without one.
package config
