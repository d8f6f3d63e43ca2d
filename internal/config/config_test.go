package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, filepath.Join(dir, "logs"), cfg.LogsPath)
	require.FileExists(t, filepath.Join(dir, "config.json"))

	// A second load reads the same file back.
	again, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadConfigDefaultsPort(t *testing.T) {
	dir := t.TempDir()

	data, err := json.Marshal(Config{DatabasePath: "/tmp/x.db"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, "/tmp/x.db", cfg.DatabasePath)
}
