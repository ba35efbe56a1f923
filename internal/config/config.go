// Package config loads engine settings from defaults, an optional YAML file,
// a .env file and AISHIELD_ environment variables, in increasing order of
// precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".aishield"
	DefaultConfigFile = "config.yaml"
	DefaultLogFile    = "audit.jsonl"
	DefaultPinsFile   = "pins.yaml"

	// EnvPrefix namespaces environment overrides. A double underscore
	// separates levels: AISHIELD_CACHE__MAX_SIZE sets cache.max_size.
	EnvPrefix = "AISHIELD_"
)

// ErrUnknownKey is returned when a config file contains an unrecognized key.
var ErrUnknownKey = errors.New("config: unknown key")

type Config struct {
	Preset    string          `koanf:"preset" yaml:"preset"`
	PacksDir  string          `koanf:"packs_dir" yaml:"packs_dir"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Scanners  ScannersConfig  `koanf:"scanners" yaml:"scanners"`
	Injection InjectionConfig `koanf:"injection" yaml:"injection"`
	PII       PIIConfig       `koanf:"pii" yaml:"pii"`
	Tools     ToolsConfig     `koanf:"tools" yaml:"tools"`
	Chain     ChainConfig     `koanf:"chain" yaml:"chain"`
	Cache     CacheConfig     `koanf:"cache" yaml:"cache"`
	Audit     AuditConfig     `koanf:"audit" yaml:"audit"`
	Cost      CostConfig      `koanf:"cost" yaml:"cost"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// ScannersConfig enables individual scanners.
type ScannersConfig struct {
	Injection bool `koanf:"injection" yaml:"injection"`
	PII       bool `koanf:"pii" yaml:"pii"`
	Tools     bool `koanf:"tools" yaml:"tools"`
}

// InjectionConfig overrides the preset threshold when set. Threshold wins
// over Strictness.
type InjectionConfig struct {
	Strictness string  `koanf:"strictness" yaml:"strictness"`
	Threshold  float64 `koanf:"threshold" yaml:"threshold"`
}

// PIIConfig overrides the preset's PII actions when set.
type PIIConfig struct {
	Action  string            `koanf:"action" yaml:"action"`
	Actions map[string]string `koanf:"actions" yaml:"actions"`
	Exclude []string          `koanf:"exclude" yaml:"exclude"`
}

type ToolPolicyConfig struct {
	Allowed []string `koanf:"allowed" yaml:"allowed"`
	Denied  []string `koanf:"denied" yaml:"denied"`
}

type ToolsConfig struct {
	Policies    map[string]ToolPolicyConfig `koanf:"policies" yaml:"policies"`
	DefaultDeny bool                        `koanf:"default_deny" yaml:"default_deny"`
	PinsFile    string                      `koanf:"pins_file" yaml:"pins_file"`
}

type ChainConfig struct {
	EarlyExit bool `koanf:"early_exit" yaml:"early_exit"`
}

type CacheConfig struct {
	Enabled bool          `koanf:"enabled" yaml:"enabled"`
	MaxSize int           `koanf:"max_size" yaml:"max_size"`
	TTL     time.Duration `koanf:"ttl" yaml:"ttl"`
}

type AuditConfig struct {
	Enabled       bool          `koanf:"enabled" yaml:"enabled"`
	BatchSize     int           `koanf:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval" yaml:"flush_interval"`
	File          string        `koanf:"file" yaml:"file"`
	PostgresDSN   string        `koanf:"postgres_dsn" yaml:"postgres_dsn"`
}

// BudgetConfig amounts are USD.
type BudgetConfig struct {
	SoftLimit float64 `koanf:"soft_limit" yaml:"soft_limit"`
	HardLimit float64 `koanf:"hard_limit" yaml:"hard_limit"`
	Period    string  `koanf:"period" yaml:"period"`
}

type CostConfig struct {
	Budgets          map[string]BudgetConfig `koanf:"budgets" yaml:"budgets"`
	PostgresDSN      string                  `koanf:"postgres_dsn" yaml:"postgres_dsn"`
	AnomalyThreshold float64                 `koanf:"anomaly_threshold" yaml:"anomaly_threshold"`
	Serialize        bool                    `koanf:"serialize" yaml:"serialize"`
}

func defaults() map[string]any {
	return map[string]any{
		"preset":                 "internal_support",
		"log.level":              "info",
		"log.format":             "json",
		"scanners.injection":     true,
		"scanners.pii":           true,
		"scanners.tools":         true,
		"chain.early_exit":       true,
		"cache.enabled":          true,
		"cache.max_size":         1000,
		"cache.ttl":              "5m",
		"audit.enabled":          false,
		"audit.batch_size":       100,
		"audit.flush_interval":   "5s",
		"cost.anomaly_threshold": 2.5,
	}
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	cfg, err := load(nil, false)
	if err != nil {
		panic(err)
	}
	return cfg
}

// DefaultDir returns ~/.aishield.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// Load reads configuration. Missing files in paths are skipped; a file that
// exists but contains unknown keys fails with ErrUnknownKey. A .env file in
// the working directory, if present, is loaded into the environment first.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return load(paths, true)
}

func load(paths []string, useEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := validateKeys(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if useEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// envKey maps AISHIELD_AUDIT__BATCH_SIZE to audit.batch_size.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// validateKeys decodes the document strictly so typos surface as errors
// instead of being ignored.
func validateKeys(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrUnknownKey, err)
	}
	return nil
}
