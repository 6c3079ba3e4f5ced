// Package dotdir locates the chatrelay state directory.
//
// A project can keep its own .chatrelay/ next to where chatrelay is run;
// otherwise ~/.chatrelay/ is shared by every invocation. The directory holds
// config.toml (upstream credentials and server settings), stats.db (the
// default SQLite visit and API call counters) and session.json (the
// conversation the interactive chat client resumes).
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const dirName = ".chatrelay"

// Manager resolves the state directory and the files kept in it. It holds no
// state; the zero value is ready to use.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute state directory, creating it if needed:
//  1. overrideDir, from --config-dir
//  2. ./.chatrelay/ if the working directory has one
//  3. ~/.chatrelay/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		var err error
		if dir, err = m.defaultDir(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chatrelay directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// File returns the path of name inside the resolved state directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// defaultDir prefers a project-local .chatrelay/ over the home directory,
// so a checkout can pin its own bot credentials and counters.
func (m *Manager) defaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	local := filepath.Join(cwd, dirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}
