// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDBPath is where the database lives unless overridden via
// database.path in the config file or RAPPEN_DATABASE_PATH.
const DefaultDBPath = "$HOME/.local/share/rappen/rappen.db"

// DatabasePath resolves the configured database path, falling back to the
// default and expanding ~ and environment variables.
func DatabasePath(configured string) string {
	if configured == "" {
		configured = DefaultDBPath
	}
	return ExpandPath(configured)
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	// First expand tilde if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	// Then expand environment variables
	return os.ExpandEnv(path)
}
