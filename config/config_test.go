package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/8Keep/pl0compiler/vm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Machine.MaxCodeLength != vm.DefaultMaxCodeLength {
		t.Errorf("MaxCodeLength = %d, want %d", cfg.Machine.MaxCodeLength, vm.DefaultMaxCodeLength)
	}
	if cfg.Machine.StackSize != vm.DefaultStackSize {
		t.Errorf("StackSize = %d, want %d", cfg.Machine.StackSize, vm.DefaultStackSize)
	}
	if cfg.Trace.Enabled {
		t.Error("expected Trace.Enabled = false by default")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Machine.StackSize = 4096
	cfg.Trace.Enabled = true
	cfg.Trace.OutputFile = "trace.log"

	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 4096, loaded.Machine.StackSize)
	require.True(t, loaded.Trace.Enabled)
	require.Equal(t, "trace.log", loaded.Trace.OutputFile)
}

func TestLoadNonExistentReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.toml")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom should not error on missing file: %v", err)
	}
	if cfg.Machine.StackSize != vm.DefaultStackSize {
		t.Error("expected default config for missing file")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("machine.stack_size = \"not a number\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error loading invalid TOML")
	}
}
