package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"procpilot/internal/domain"
)

// Entry script expected inside a scraper checkout when running from source.
const scraperEntryScript = "scraper.py"

// BuildCommand assembles the argv for a server based on its kind.
// defaultInterpreter is the settings-level python command used when the
// config carries no override.
func BuildCommand(cfg domain.ServerConfig, defaultInterpreter string) ([]string, error) {
	switch cfg.Kind {
	case domain.KindFlask:
		interp := resolveInterpreter(cfg, defaultInterpreter)
		argv := []string{interp, cfg.Path}
		return append(argv, splitArgs(cfg.Args)...), nil

	case domain.KindScraperSource:
		entry := filepath.Join(cfg.Path, "src", scraperEntryScript)
		if _, err := os.Stat(entry); err != nil {
			return nil, fmt.Errorf("scraper entry script not found: %s", entry)
		}
		interp := resolveInterpreter(cfg, defaultInterpreter)
		argv := []string{interp, entry}
		return append(argv, splitArgs(cfg.Args)...), nil

	case domain.KindScraperBinary:
		argv := []string{cfg.Path}
		return append(argv, splitArgs(cfg.Args)...), nil

	default: // nodejs
		launcher := cfg.Command
		if launcher == "" {
			launcher = "node"
		}
		argv := []string{launcher}
		argv = append(argv, splitArgs(cfg.Args)...)
		return append(argv, cfg.Path), nil
	}
}

// resolveInterpreter picks the python binary for flask/scraper-source
// servers: a virtualenv's interpreter when one is configured and exists on
// disk, otherwise the configured or default command.
func resolveInterpreter(cfg domain.ServerConfig, defaultInterpreter string) string {
	interp := cfg.Command
	if interp == "" {
		interp = defaultInterpreter
	}
	if interp == "" {
		interp = "python"
	}

	venv := cfg.VenvPath
	if venv == "" {
		return interp
	}
	if !filepath.IsAbs(venv) {
		venv = filepath.Join(workingDir(cfg.Path), venv)
	}

	var exe string
	if runtime.GOOS == "windows" {
		exe = filepath.Join(venv, "Scripts", "python.exe")
		if _, err := os.Stat(exe); err != nil {
			exe = filepath.Join(venv, "python.exe")
		}
	} else {
		exe = filepath.Join(venv, "bin", "python")
	}

	if _, err := os.Stat(exe); err == nil {
		return exe
	}
	return interp
}

// workingDir is where the child runs: the executable's directory, or the
// path itself when it already is a directory.
func workingDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func splitArgs(args string) []string {
	return strings.Fields(args)
}
