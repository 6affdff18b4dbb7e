// Package cli wires driver.Config, a Mode, an ExpectationStore, and the
// optional ambient adapters (classpath index, XML report printer,
// notifier, progress TUI) into a single `run` command, grounded on the
// teacher's cli/cmd.RunCommand: the same config-file-plus-flags
// precedence, the same fail-fast pre-execution validation, and the same
// cli.Exit-based exit code mapping.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// projectConfig represents an optional YAML config file (--config) that
// supplies project-level defaults for `actiondriver run`. Every field
// mirrors a CLI flag; CLI flags always take precedence when set.
// Grounded on the teacher's cli/config.Config: same "typed struct,
// KnownFields(true) decode" shape.
type projectConfig struct {
	Mode           string          `yaml:"mode"`
	WorkDir        string          `yaml:"work_dir"`
	GoBin          string          `yaml:"go_bin"`
	Classpath      []string        `yaml:"classpath"`
	Expectations   string          `yaml:"expectations"`
	ReportDir      string          `yaml:"report_dir"`
	NumRunnerThreads int           `yaml:"num_runner_threads"`
	Device         deviceConfig    `yaml:"device"`
	Notify         notifyConfig    `yaml:"notify"`
}

type deviceConfig struct {
	ToolchainWrapper string `yaml:"toolchain_wrapper"`
	S3Bucket         string `yaml:"s3_bucket"`
	S3Prefix         string `yaml:"s3_prefix"`
	S3Region         string `yaml:"s3_region"`
	S3Endpoint       string `yaml:"s3_endpoint"`
	S3PathStyle      bool   `yaml:"s3_path_style"`
}

type notifyConfig struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// loadProjectConfig reads and decodes a YAML config file, rejecting
// unknown keys so typos surface immediately rather than silently falling
// back to defaults.
func loadProjectConfig(path string) (*projectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg projectConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}
