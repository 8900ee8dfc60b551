// Package config provides configuration loading and validation for warden.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (WARDEN_ prefix)
//  4. CLI flags that were explicitly set
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with WARDEN_ prefix:
//   - server.port → WARDEN_SERVER_PORT
//   - store.type → WARDEN_STORE_TYPE
//   - session.ttl → WARDEN_SESSION_TTL
//
// Durations accept Go duration strings such as "90s" or "1h".
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: listen address, connection limit, timeouts and request body limit
//   - Store: user store type (json, sqlite, postgres), file path, DSN and table
//   - Session: login session TTL and sweep interval
//   - Privilege: grant TTL and signing keys
//   - Auth: optional credential policy and bcrypt cost
//   - Content: image root, privilege requirement and file size limit
//   - Admin: admin API switch, port and CORS settings
//   - Log: logging level
//   - Env: dev or prod, selecting the log handler
package config
