// Package config loads, normalizes, and validates Plix configuration from
// TOML files with sensible defaults for every field.
package config
