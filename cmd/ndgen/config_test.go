package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/ndgen/vector"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ndgen", pflag.ContinueOnError)
	fs.String("target", "", "")
	fs.Int("vector-size", 0, "")
	fs.String("elem-type", "", "")
	fs.String("layout", "", "")
	fs.String("mangle-prefix", "", "")
	fs.String("func-prefix", "", "")
	fs.Bool("verbose", false, "")
	fs.Int("jobs", 0, "")
	return fs
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, used, err := loadConfig("", testFlags())
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, "host", cfg.Target)
	assert.Equal(t, "float64", cfg.ElemType)
	assert.Equal(t, "flat", cfg.Layout)
	assert.Equal(t, "__ndgen_", cfg.ManglePrefix)
	assert.Equal(t, "ndgen", cfg.FuncPrefix)
	assert.Zero(t, cfg.VectorSize)
	assert.GreaterOrEqual(t, cfg.Jobs, 1)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ndgen.yaml")
	yaml := "target: neon\nvector_size: 2\nelem_type: float32\nfunc_prefix: file\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("NDGEN_VECTOR_SIZE", "4")
	t.Setenv("NDGEN_FUNC_PREFIX", "env")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--func-prefix", "flag"}))

	cfg, used, err := loadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "neon", cfg.Target, "file overrides default")
	assert.Equal(t, "float32", cfg.ElemType, "file overrides default")
	assert.Equal(t, 4, cfg.VectorSize, "env overrides file")
	assert.Equal(t, "flag", cfg.FuncPrefix, "flag overrides env")
	assert.Equal(t, "flat", cfg.Layout, "unset flags keep lower layers")
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"elem type", []string{"--elem-type", "complex64"}},
		{"layout", []string{"--layout", "tiled"}},
		{"target", []string{"--target", "sse2"}},
		{"vector size", []string{"--vector-size", "-1"}},
		{"jobs", []string{"--jobs", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testFlags()
			require.NoError(t, fs.Parse(tt.args))
			_, _, err := loadConfig("", fs)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestConfigLayout(t *testing.T) {
	c := &Config{Layout: "memview"}
	l, err := c.layout()
	require.NoError(t, err)
	assert.Equal(t, vector.MemviewLayout, l)

	c.Layout = "flat"
	l, err = c.layout()
	require.NoError(t, err)
	assert.Equal(t, vector.FlatLayout, l)
}

func TestConfigVectorSize(t *testing.T) {
	c := &Config{Target: "avx2", ElemType: "float32"}
	tgt, err := c.resolveTarget()
	require.NoError(t, err)
	assert.Equal(t, 8, c.vectorSize(tgt), "derived from the target")

	c.VectorSize = 3
	assert.Equal(t, 3, c.vectorSize(tgt), "explicit size wins")

	c = &Config{Target: "fallback", ElemType: "float64"}
	tgt, err = c.resolveTarget()
	require.NoError(t, err)
	assert.Zero(t, c.vectorSize(tgt))
}
