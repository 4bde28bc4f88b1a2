// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted when no --config
// flag is given.
const EnvVar = "YAI_CONFIG"

// Environment selects which override section applies.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the runtime configuration shared by every binary.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths   PathsConfig   `yaml:"paths"`
	Kernel  KernelConfig  `yaml:"kernel"`
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace. Zero
// values leave the base value untouched.
type Overrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Kernel  *KernelConfig  `yaml:"kernel,omitempty"`
	Engine  *EngineConfig  `yaml:"engine,omitempty"`
	Storage *StorageConfig `yaml:"storage,omitempty"`
}

// PathsConfig locates the runtime's files.
type PathsConfig struct {
	// Root is the base directory for YAI state. Default: ~/.yai
	Root string `yaml:"root"`

	// RunDir holds the control sockets, per-workspace audit logs and
	// the boot manifest. Default: ${YAI_ROOT}/run
	RunDir string `yaml:"run_dir"`

	// VaultDir holds the shared-memory segments. Default: /dev/shm
	VaultDir string `yaml:"vault_dir"`

	// Contracts is the JSONC agent contract file. A missing file means
	// no agent holds any capability.
	Contracts string `yaml:"contracts"`
}

// KernelConfig configures yai-kernel.
type KernelConfig struct {
	// CommandTimeout bounds a vault round trip on the producer path.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// ServerVersion is reported in handshake acks.
	ServerVersion uint32 `yaml:"server_version"`
}

// EngineConfig configures yai-engine and the quota yai-boot writes.
type EngineConfig struct {
	// PollInterval is how often the engine checks its mailbox.
	PollInterval time.Duration `yaml:"poll_interval"`

	// EnergyQuota is written into every plane at boot.
	EnergyQuota uint64 `yaml:"energy_quota"`

	// InternalCost and ExternalCost are charged per command class.
	InternalCost uint64 `yaml:"internal_cost"`
	ExternalCost uint64 `yaml:"external_cost"`

	// PayloadCapacity is the receive buffer for one RPC frame.
	PayloadCapacity int `yaml:"payload_capacity"`
}

// StorageConfig configures the storage collaborator.
type StorageConfig struct {
	// Database is the SQLite file backing STORAGE_RPC.
	Database string `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
}

// Default returns the development configuration used when no file is
// given.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".yai")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:      root,
			RunDir:    filepath.Join(root, "run"),
			VaultDir:  "/dev/shm",
			Contracts: filepath.Join(root, "contracts.jsonc"),
		},
		Kernel: KernelConfig{
			CommandTimeout: 5 * time.Second,
			ServerVersion:  1,
		},
		Engine: EngineConfig{
			PollInterval:    50 * time.Millisecond,
			EnergyQuota:     1000,
			InternalCost:    1,
			ExternalCost:    10,
			PayloadCapacity: 64 * 1024,
		},
		Storage: StorageConfig{
			Database: filepath.Join(root, "data", "storage.db"),
			PoolSize: 4,
		},
	}
}

// Load resolves the configuration source: path if non-empty, then
// $YAI_CONFIG, then [Default].
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads the file at path over the defaults, applies the
// matching environment section and expands path variables.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if p := overrides.Paths; p != nil {
		setString(&c.Paths.Root, p.Root)
		setString(&c.Paths.RunDir, p.RunDir)
		setString(&c.Paths.VaultDir, p.VaultDir)
		setString(&c.Paths.Contracts, p.Contracts)
	}
	if k := overrides.Kernel; k != nil {
		if k.CommandTimeout != 0 {
			c.Kernel.CommandTimeout = k.CommandTimeout
		}
		if k.ServerVersion != 0 {
			c.Kernel.ServerVersion = k.ServerVersion
		}
	}
	if e := overrides.Engine; e != nil {
		if e.PollInterval != 0 {
			c.Engine.PollInterval = e.PollInterval
		}
		if e.EnergyQuota != 0 {
			c.Engine.EnergyQuota = e.EnergyQuota
		}
		if e.InternalCost != 0 {
			c.Engine.InternalCost = e.InternalCost
		}
		if e.ExternalCost != 0 {
			c.Engine.ExternalCost = e.ExternalCost
		}
		if e.PayloadCapacity != 0 {
			c.Engine.PayloadCapacity = e.PayloadCapacity
		}
	}
	if s := overrides.Storage; s != nil {
		setString(&c.Storage.Database, s.Database)
		if s.PoolSize != 0 {
			c.Storage.PoolSize = s.PoolSize
		}
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["YAI_ROOT"] = c.Paths.Root

	c.Paths.RunDir = expandVars(c.Paths.RunDir, vars)
	c.Paths.VaultDir = expandVars(c.Paths.VaultDir, vars)
	c.Paths.Contracts = expandVars(c.Paths.Contracts, vars)
	c.Storage.Database = expandVars(c.Storage.Database, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${NAME} and ${NAME:-default}. Names resolve
// against vars first, then the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Paths.RunDir == "" {
		errs = append(errs, errors.New("paths.run_dir is required"))
	}
	if c.Paths.VaultDir == "" {
		errs = append(errs, errors.New("paths.vault_dir is required"))
	}
	if c.Kernel.CommandTimeout <= 0 {
		errs = append(errs, errors.New("kernel.command_timeout must be positive"))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, errors.New("engine.poll_interval must be positive"))
	}
	if c.Engine.EnergyQuota == 0 {
		errs = append(errs, errors.New("engine.energy_quota must be positive"))
	}
	if c.Engine.PayloadCapacity <= 0 || c.Engine.PayloadCapacity > 64*1024 {
		errs = append(errs, fmt.Errorf("engine.payload_capacity must be in 1..65536, got %d", c.Engine.PayloadCapacity))
	}
	if c.Storage.PoolSize < 1 {
		errs = append(errs, errors.New("storage.pool_size must be at least 1"))
	}

	return errors.Join(errs...)
}
