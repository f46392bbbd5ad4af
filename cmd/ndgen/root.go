package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

// configKey and loggerKey store the loaded config and logger in the
// command context.
type (
	configKey struct{}
	loggerKey struct{}
)

// Version is set at build time.
var Version = "0.1.0"

func newRootCmd() *cobra.Command {
	var cfgFile string
	rootCmd := &cobra.Command{
		Use:   "ndgen",
		Short: "ndgen - C loop nest generator for elementwise array expressions",
		Long: `ndgen compiles elementwise and broadcast array expressions into C loop
nests over strided N-dimensional buffers, with runtime error propagation
out of nested loops.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, used, err := loadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			if used != "" {
				logger.Debug("using config file", "path", used)
			}
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./ndgen.yaml)")
	flags.StringP("target", "t", "", "SIMD target (host, avx2, avx512, neon, fallback)")
	flags.Int("vector-size", 0, "innermost loop tile (0 derives it from the target)")
	flags.String("elem-type", "", "default element type (float32, float64, int32, ...)")
	flags.String("layout", "", "operand layout (flat|memview)")
	flags.String("mangle-prefix", "", "prefix for generated identifiers")
	flags.String("func-prefix", "", "prefix for kernel names")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.IntP("jobs", "j", 0, "number of kernels generated in parallel")

	_ = rootCmd.RegisterFlagCompletionFunc("target", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"host", "avx2", "avx512", "neon", "fallback"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("layout", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"flat", "memview"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newGenCmd())
	rootCmd.AddCommand(newTargetCmd())
	return rootCmd
}

// configFrom retrieves the config from the command context.
func configFrom(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg := &Config{}
	d := defaults()
	cfg.Target = d["target"].(string)
	cfg.ElemType = d["elem_type"].(string)
	cfg.Layout = d["layout"].(string)
	cfg.ManglePrefix = d["mangle_prefix"].(string)
	cfg.FuncPrefix = d["func_prefix"].(string)
	cfg.Jobs = d["jobs"].(int)
	return cfg
}

// loggerFrom retrieves the logger from the command context.
func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
