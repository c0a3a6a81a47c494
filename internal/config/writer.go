package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/branchflow/branchflow/internal/errors"
	"github.com/branchflow/branchflow/internal/fileutil"
)

// fileHeader is written at the top of generated config files.
const fileHeader = "# branchflow configuration\n\n"

// Write serializes the configuration to path. The encoding follows the
// file extension: .toml writes TOML, everything else YAML. An existing
// file is never overwritten.
func Write(cfg *Config, path string) error {
	const op = "config.Write"

	if _, err := os.Stat(path); err == nil {
		return errors.Conflict(op, fmt.Sprintf("config file %s already exists", path))
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = encodeTOML(cfg)
	default:
		data, err = encodeYAML(cfg)
	}
	if err != nil {
		return errors.ConfigWrap(err, op, "failed to encode config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.IOWrap(err, op, "failed to create config directory")
		}
	}

	if err := fileutil.AtomicWriteFile(path, append([]byte(fileHeader), data...), 0644); err != nil {
		return errors.IOWrap(err, op, "failed to write config file")
	}
	return nil
}

func encodeYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTOML(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
