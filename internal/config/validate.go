package config

import "fmt"

// Validate checks structural configuration constraints. Credentials are not
// required here; components that need them fail at construction time so
// read-only commands keep working on a bare config.
func (c *Config) Validate() error {
	switch c.TMDB.AuthMode {
	case "query", "bearer":
	default:
		return fmt.Errorf("tmdb.auth_mode: unsupported value %q (expected \"query\" or \"bearer\")", c.TMDB.AuthMode)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected \"console\" or \"json\")", c.Logging.Format)
	}
	return nil
}
