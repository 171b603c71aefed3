// Package config loads, normalizes, and validates the TOML configuration that
// drives the songreel daemon and CLI.
package config
