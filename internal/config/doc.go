// Package config loads runtime configuration for the credential broker.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the authorization service
//	-d string   data directory for the encrypted vault
//	-f string   path of the external consumer's auth file
//	-r int      heartbeat lower interval bound (seconds)
//
// # JSON schema
//
// Durations can be either strings like "15s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://auth.atm-svc.net/api",
//	  "data_dir": "/var/lib/atm-client",
//	  "request_timeout": "15s",
//	  "heartbeat_min": "30s",
//	  "heartbeat_max": "90s"
//	}
//
// Note: this package does not read environment variables; use the JSON file
// or flags to configure values.
package config
