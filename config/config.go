// Package config loads engine configuration from YAML, matching spec
// §6's external configuration surface.
//
// Grounded on _examples/cuemby-warren and _examples/johnjansen-torua's use
// of gopkg.in/yaml.v3 for their own config structs; restyled after the
// teacher's btree.Config/DefaultConfig constructor pair.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables spec §6 names.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	BlockSize       int    `yaml:"block_size"`
	NumBuffers      int    `yaml:"num_buffers"`
	LockMaxWaitMS   int    `yaml:"lock_max_wait_ms"`
	BufferPinWaitMS int    `yaml:"buffer_pin_wait_ms"`
	Format          bool   `yaml:"format"`
}

// Default returns spec §6's documented defaults for a database rooted at
// dataDir.
func Default(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		BlockSize:       4096,
		NumBuffers:      8,
		LockMaxWaitMS:   10000,
		BufferPinWaitMS: 5000,
		Format:          false,
	}
}

// LockMaxWait returns LockMaxWaitMS as a time.Duration.
func (c Config) LockMaxWait() time.Duration {
	return time.Duration(c.LockMaxWaitMS) * time.Millisecond
}

// BufferPinWait returns BufferPinWaitMS as a time.Duration.
func (c Config) BufferPinWait() time.Duration {
	return time.Duration(c.BufferPinWaitMS) * time.Millisecond
}

// Load reads a YAML config file at path, filling in spec §6 defaults
// (relative to dataDir) for anything the file omits.
func Load(path string, dataDir string) (Config, error) {
	cfg := Default(dataDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
