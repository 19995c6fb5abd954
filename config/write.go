// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrExists = errors.New("config file already exists")

const fileHeader = `# plugcall configuration
# Environment variables override values here, e.g. PLUGCALL_OUTLET_URL.
# Durations use Go syntax: 5s, 1m30s, 24h.

`

// Marshal renders configuration as yaml with a short header
func Marshal(conf Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(conf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes configuration into path. Existing file is kept unless force is set.
func WriteFile(path string, conf Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, path)
	}

	data, err := Marshal(conf)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// May contain SIP password
	return os.WriteFile(path, data, 0o600)
}
