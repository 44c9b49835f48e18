// Package config loads and saves toolchain configuration: the machine
// limits and trace/output defaults that the CLI wires into the compiler
// and VM.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/8Keep/pl0compiler/vm"
)

// Config holds the toolchain's tunable limits and default file names.
type Config struct {
	Machine struct {
		MaxCodeLength int `toml:"max_code_length"`
		StackSize     int `toml:"stack_size"`
	} `toml:"machine"`

	Trace struct {
		Enabled    bool   `toml:"enabled"`
		OutputFile string `toml:"output_file"`
	} `toml:"trace"`

	IO struct {
		InputFile  string `toml:"input_file"`
		OutputFile string `toml:"output_file"`
	} `toml:"io"`

	Symbols struct {
		Print bool `toml:"print"`
	} `toml:"symbols"`
}

// DefaultConfig returns a Config with the toolchain's built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Machine.MaxCodeLength = vm.DefaultMaxCodeLength
	cfg.Machine.StackSize = vm.DefaultStackSize

	cfg.Trace.Enabled = false
	cfg.Trace.OutputFile = ""

	cfg.IO.InputFile = ""
	cfg.IO.OutputFile = ""

	cfg.Symbols.Print = false

	return cfg
}

// GetConfigPath returns the platform-specific default config file path.
func GetConfigPath() string {
	var dir string

	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		dir = filepath.Join(dir, "pl0compiler")

	case "darwin", "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		dir = filepath.Join(home, ".config", "pl0compiler")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from path, returning defaults if the file
// does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves the configuration to path, creating parent directories as
// needed.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user-specified config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
