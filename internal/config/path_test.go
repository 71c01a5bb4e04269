package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("RAPPEN_TEST_DIR", "/tmp/rappen")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "tilde prefix", input: "~/data/rappen.db", expected: filepath.Join(home, "data/rappen.db")},
		{name: "bare tilde", input: "~", expected: home},
		{name: "env var", input: "$RAPPEN_TEST_DIR/rappen.db", expected: "/tmp/rappen/rappen.db"},
		{name: "plain path", input: "/var/lib/rappen.db", expected: "/var/lib/rappen.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.input))
		})
	}
}

func TestDatabasePath_Default(t *testing.T) {
	t.Setenv("HOME", "/home/someone")

	assert.Equal(t, "/home/someone/.local/share/rappen/rappen.db", DatabasePath(""))
	assert.Equal(t, "/custom/rappen.db", DatabasePath("/custom/rappen.db"))
}
