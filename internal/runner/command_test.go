package runner

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"procpilot/internal/domain"
)

func TestBuildCommandNodeJS(t *testing.T) {
	cfg := domain.ServerConfig{
		Name: "web",
		Kind: domain.KindNodeJS,
		Path: "/srv/app/index.js",
	}

	argv, err := BuildCommand(cfg, "python")
	require.NoError(t, err)
	require.Equal(t, []string{"node", "/srv/app/index.js"}, argv)

	cfg.Command = "bun"
	cfg.Args = "--watch --inspect"
	argv, err = BuildCommand(cfg, "python")
	require.NoError(t, err)
	require.Equal(t, []string{"bun", "--watch", "--inspect", "/srv/app/index.js"}, argv)
}

func TestBuildCommandFlask(t *testing.T) {
	cfg := domain.ServerConfig{
		Name: "api",
		Kind: domain.KindFlask,
		Path: "/srv/api/app.py",
		Args: "--port 5001",
	}

	argv, err := BuildCommand(cfg, "python3")
	require.NoError(t, err)
	require.Equal(t, []string{"python3", "/srv/api/app.py", "--port", "5001"}, argv)

	cfg.Command = "pypy"
	argv, err = BuildCommand(cfg, "python3")
	require.NoError(t, err)
	require.Equal(t, "pypy", argv[0])
}

func TestBuildCommandScraperSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	entry := filepath.Join(dir, "src", "scraper.py")
	require.NoError(t, os.WriteFile(entry, []byte("print('hi')\n"), 0644))

	cfg := domain.ServerConfig{
		Name: "scraper",
		Kind: domain.KindScraperSource,
		Path: dir,
	}

	argv, err := BuildCommand(cfg, "python")
	require.NoError(t, err)
	require.Equal(t, []string{"python", entry}, argv)
}

func TestBuildCommandScraperSourceMissingEntry(t *testing.T) {
	cfg := domain.ServerConfig{
		Name: "scraper",
		Kind: domain.KindScraperSource,
		Path: t.TempDir(),
	}

	_, err := BuildCommand(cfg, "python")
	require.ErrorContains(t, err, "scraper entry script not found")
}

func TestBuildCommandScraperBinary(t *testing.T) {
	cfg := domain.ServerConfig{
		Name: "scraper",
		Kind: domain.KindScraperBinary,
		Path: "/opt/scraper/scraper",
		Args: "-v",
	}

	argv, err := BuildCommand(cfg, "python")
	require.NoError(t, err)
	require.Equal(t, []string{"/opt/scraper/scraper", "-v"}, argv)
}

func TestResolveInterpreterVenv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix virtualenv layout")
	}

	dir := t.TempDir()
	venv := filepath.Join(dir, "venv")
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0755))
	python := filepath.Join(venv, "bin", "python")
	require.NoError(t, os.WriteFile(python, []byte("#!/bin/sh\n"), 0755))

	cfg := domain.ServerConfig{
		Path:     filepath.Join(dir, "app.py"),
		VenvPath: venv,
	}
	require.Equal(t, python, resolveInterpreter(cfg, "python"))

	// Relative venvs are joined to the working directory.
	cfg.VenvPath = "venv"
	require.Equal(t, python, resolveInterpreter(cfg, "python"))

	// A venv without an interpreter falls back to the configured command.
	cfg.VenvPath = filepath.Join(dir, "missing")
	require.Equal(t, "python", resolveInterpreter(cfg, "python"))
}

func TestWorkingDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	require.Equal(t, dir, workingDir(dir))
	require.Equal(t, dir, workingDir(file))
}
