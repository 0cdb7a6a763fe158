package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sgflota/sgdeploy/internal/errors"
	"gopkg.in/yaml.v3"
)

const fileHeader = `# sgdeploy configuration
# Every field is optional; missing fields fall back to the defaults.
# Environment variables override file values, e.g. SGDEPLOY_HOST=...
`

// Render marshals cfg to YAML with a short header comment.
func Render(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.Bytes(), nil
}

// Write renders cfg to path. An existing file is only replaced when overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Config file already exists: %s", path),
			"Use --force to overwrite")
	}

	data, err := Render(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't render the config",
			"This shouldn't happen - please report this bug!")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", path),
			"Check directory permissions")
	}

	return nil
}
