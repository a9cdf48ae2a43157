// Package config loads the matregd TOML configuration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"xdao.co/matreg/logging"
	"xdao.co/matreg/registry"
)

const (
	SettlementLedger = "ledger"
	SettlementRecord = "record"

	JournalMemory = "memory"
	JournalSQLite = "sqlite"
)

// Config is the daemon configuration file.
type Config struct {
	Registry   RegistryConfig   `toml:"registry"`
	Settlement SettlementConfig `toml:"settlement"`
	Journal    JournalConfig    `toml:"journal"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

type RegistryConfig struct {
	MaxMaterials    uint64 `toml:"max_materials"`
	RegistrationFee uint64 `toml:"registration_fee"`
	// Authority, when set, is installed at startup if no authority exists yet.
	Authority string `toml:"authority"`
}

type SettlementConfig struct {
	// Mode is "ledger" (balances enforced) or "record" (instructions only).
	Mode     string            `toml:"mode"`
	Balances map[string]uint64 `toml:"balances"`
}

type JournalConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type ServerConfig struct {
	Listen        string `toml:"listen"`
	MetricsListen string `toml:"metrics_listen"`
	MaxMsgBytes   int    `toml:"max_msg_bytes"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used for keys a file leaves out. With
// no archive backends configured the in-memory backend is used.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			MaxMaterials:    registry.DefaultMaxMaterials,
			RegistrationFee: registry.DefaultRegistrationFee,
		},
		Settlement: SettlementConfig{Mode: SettlementRecord},
		Journal:    JournalConfig{Driver: JournalMemory},
		Archive:    ArchiveConfig{WritePolicy: WriteFirst},
		Server:     ServerConfig{Listen: "127.0.0.1:7070"},
		Log:        LogConfig{Level: "info", Format: logging.FormatConsole},
	}
}

// Parse decodes TOML over Default and validates the result. Unknown keys are errors.
func Parse(data string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return finish(cfg, meta)
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config: empty config path")
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return finish(cfg, meta)
}

func finish(cfg Config, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if len(cfg.Archive.Backends) == 0 {
		cfg.Archive.Backends = []BackendConfig{{Name: "memory"}}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Registry.MaxMaterials == 0 {
		return errors.New("config: registry.max_materials must be positive")
	}
	if p := registry.Principal(c.Registry.Authority); p == registry.BurnPrincipal {
		return errors.New("config: registry.authority cannot be the burn principal")
	}
	switch c.Settlement.Mode {
	case SettlementLedger, SettlementRecord:
	default:
		return fmt.Errorf("config: invalid settlement.mode %q", c.Settlement.Mode)
	}
	switch c.Journal.Driver {
	case JournalMemory:
	case JournalSQLite:
		if strings.TrimSpace(c.Journal.Path) == "" {
			return errors.New("config: journal.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: invalid journal.driver %q", c.Journal.Driver)
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("config: server.listen is required")
	}
	if c.Server.MaxMsgBytes < 0 {
		return errors.New("config: server.max_msg_bytes must not be negative")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("config: invalid log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("config: invalid log.format %q", c.Log.Format)
	}
	return c.Archive.Validate()
}

// RegistryOptions returns the initial registry configuration.
func (c Config) RegistryOptions() *registry.Config {
	return &registry.Config{
		MaxMaterials:    c.Registry.MaxMaterials,
		RegistrationFee: c.Registry.RegistrationFee,
	}
}

// Balances returns the initial settlement balances keyed by principal.
func (c Config) Balances() map[registry.Principal]uint64 {
	out := make(map[registry.Principal]uint64, len(c.Settlement.Balances))
	for p, amt := range c.Settlement.Balances {
		out[registry.Principal(p)] = amt
	}
	return out
}

// Logging returns the logging configuration for profile with file values
// applied first and environment overrides last.
func (c Config) Logging(profile logging.Profile) logging.Config {
	cfg := logging.DefaultConfig(profile)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		cfg.Level = lvl
	}
	if c.Log.Format != "" {
		cfg.Format = c.Log.Format
	}
	logging.ApplyEnv(&cfg)
	return cfg
}
