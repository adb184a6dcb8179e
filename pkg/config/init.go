package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultConfigPath is where WriteDefaultConfig puts the settings file when
// no path is given.
const DefaultConfigPath = ".vivu/settings.yaml"

// WriteDefaultConfig writes the effective settings to path so they can be
// edited. An existing file is kept unless overwrite is set; its values are
// part of the effective settings either way.
func WriteDefaultConfig(path string, overwrite bool) (string, error) {
	if path == "" {
		path = viper.ConfigFileUsed()
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil && !overwrite {
		return path, fmt.Errorf("config file %s already exists", path)
	}

	// Ensure config directory exists
	configDir := filepath.Dir(path)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return path, fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// The token stays in the environment, not on disk
	token := viper.GetString("api.token")
	viper.Set("api.token", "")
	defer viper.Set("api.token", token)

	if err := viper.WriteConfigAs(path); err != nil {
		return path, fmt.Errorf("error writing config: %w", err)
	}
	return path, nil
}
