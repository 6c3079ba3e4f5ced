// Package initcmder provides the init command for initializing a local
// .chatrelay directory in the current working directory.
package initcmder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

const (
	dirName    = ".chatrelay"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .chatrelay/ directory in the current working directory.

Creates a local .chatrelay/ directory that takes precedence over the default
~/.chatrelay/ directory for configuration, the stats database and the chat
session.

With --preset a config.toml is written as well. The preset is either a Coze
region (cn, global) or an http(s) URL serving a config.toml.

Examples:
  chatrelay init
  chatrelay init --preset global
  chatrelay init --preset https://example.com/chatrelay.toml`

const initShortDesc string = "Initialize a local .chatrelay/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(ctx context.Context, out io.Writer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .chatrelay directory: %w", err)
	}

	cfgPath := filepath.Join(dir, configFile)

	var data []byte
	switch {
	case preset == "":
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Fprintf(out, "Already initialized: %s\n", dir)
			return nil
		}
		data, err = encode(config.NewDefaultConfig())

	case strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://"):
		data, err = fetchRemote(ctx, preset)

	default:
		var cfg *config.Config
		cfg, err = config.PresetConfig(preset)
		if err == nil {
			data, err = encode(cfg)
		}
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(out, "Initialized .chatrelay directory: %s\n", dir)
	return nil
}

func encode(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// fetchRemote downloads a config.toml and checks that it parses.
func fetchRemote(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	if _, err := config.ParseConfigTOML(data); err != nil {
		return nil, err
	}

	return data, nil
}
