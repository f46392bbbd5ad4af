package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ajroetker/ndgen/ndtype"
	"github.com/ajroetker/ndgen/target"
	"github.com/ajroetker/ndgen/vector"
)

// defaultConfigFile is looked up in the working directory when --config
// is not given.
const defaultConfigFile = "ndgen.yaml"

// envPrefix prefixes environment overrides, e.g. NDGEN_VECTOR_SIZE.
const envPrefix = "NDGEN_"

// Config holds the generator settings.
type Config struct {
	Target       string `koanf:"target"`
	VectorSize   int    `koanf:"vector_size"`
	ElemType     string `koanf:"elem_type"`
	Layout       string `koanf:"layout"`
	ManglePrefix string `koanf:"mangle_prefix"`
	FuncPrefix   string `koanf:"func_prefix"`
	Verbose      bool   `koanf:"verbose"`
	Jobs         int    `koanf:"jobs"`
}

func defaults() map[string]any {
	return map[string]any{
		"target":        "host",
		"vector_size":   0,
		"elem_type":     "float64",
		"layout":        "flat",
		"mangle_prefix": "__ndgen_",
		"func_prefix":   "ndgen",
		"verbose":       false,
		"jobs":          runtime.NumCPU(),
	}
}

// loadConfig loads configuration from defaults, the config file,
// environment variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func loadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := cfgFile
	if used == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			used = defaultConfigFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment variables: NDGEN_VECTOR_SIZE -> vector_size
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return &cfg, used, nil
}

func (c *Config) validate() error {
	if _, err := ndtype.ParseScalar(c.ElemType); err != nil {
		return fmt.Errorf("elem_type: %w", err)
	}
	if _, err := c.layout(); err != nil {
		return err
	}
	if _, err := c.resolveTarget(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if c.VectorSize < 0 {
		return fmt.Errorf("vector_size must be >= 0, got %d", c.VectorSize)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", c.Jobs)
	}
	return nil
}

func (c *Config) layout() (vector.Layout, error) {
	switch c.Layout {
	case "flat":
		return vector.FlatLayout, nil
	case "memview":
		return vector.MemviewLayout, nil
	default:
		return vector.Layout{}, fmt.Errorf("unknown layout: %s (valid: flat, memview)", c.Layout)
	}
}

// resolveTarget maps "host" to the detected target.
func (c *Config) resolveTarget() (target.Target, error) {
	if c.Target == "host" {
		return target.Host(), nil
	}
	return target.GetTarget(c.Target)
}

// vectorSize is the configured loop tile, or the target's lane count for
// the element type when unset.
func (c *Config) vectorSize(t target.Target) int {
	if c.VectorSize > 0 {
		return c.VectorSize
	}
	return t.VectorSize(c.ElemType)
}
