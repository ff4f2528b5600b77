package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"garnet-sweep/internal/config"
	"garnet-sweep/internal/logging"
)

// EnvPrefix prefixes every runtime option read from the environment.
const EnvPrefix = "GARNET_SWEEP"

var rootCmd = &cobra.Command{
	Use:   "garnet-sweep",
	Short: "Parameter sweep driver for long-running simulations",
	Long: "garnet-sweep enumerates a parameter space, runs one simulation per point " +
		"under a worker limit and collects the metrics each run reports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := bindFlags(viper.GetViper(), cmd); err != nil {
			return err
		}
		log, closeLog, err := openLogger(viper.GetViper(), nil)
		if err != nil {
			return err
		}
		logCloser = closeLog
		cmd.SetContext(logging.NewContext(cmd.Context(), log))
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

var logCloser io.Closer

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	setDefaults(viper.GetViper())

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text or json)")
	pf.String("log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(presetsCmd)
}

func setDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("max-workers", 4)
	v.SetDefault("interval", "250ms")
	v.SetDefault("greptimedb.database", "public")

	_ = v.BindEnv("greptimedb.endpoint", "GREPTIMEDB_ENDPOINT")
	_ = v.BindEnv("greptimedb.database", "GREPTIMEDB_DATABASE")
	_ = v.BindEnv("greptimedb.table", "GREPTIMEDB_TABLE")
}

// bindFlags makes the flags of the executing command visible to v.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}
	return v.BindPFlags(cmd.Flags())
}

// openLogger builds the process logger. When fallback is non-nil and no
// log file is configured, records go there instead of stderr.
func openLogger(v *viper.Viper, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	level, format := v.GetString("log-level"), v.GetString("log-format")
	if path := v.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return logging.New(level, format, f), f, nil
	}
	if fallback != nil {
		return logging.New(level, format, fallback), nil, nil
	}
	return logging.New(level, format, os.Stderr), nil, nil
}

// definitionFlags registers the flags selecting a sweep definition.
func definitionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Path to a sweep definition YAML")
	cmd.Flags().StringP("preset", "p", "", "Name of an embedded sweep definition")
	cmd.Flags().StringArray("var", nil, "Override a definition variable (key=value), repeatable")
}

// loadDefinition resolves --config or --preset and applies --var
// overrides. It returns nil without error when neither is set and
// optional is true.
func loadDefinition(cmd *cobra.Command, optional bool) (*config.SweepConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	preset, _ := cmd.Flags().GetString("preset")
	overrides, _ := cmd.Flags().GetStringArray("var")

	var cfg *config.SweepConfig
	var err error
	switch {
	case path != "" && preset != "":
		return nil, fmt.Errorf("--config and --preset are mutually exclusive")
	case path != "":
		cfg, err = config.Load(path)
	case preset != "":
		cfg, err = config.LoadPreset(preset)
	case optional:
		if len(overrides) > 0 {
			return nil, fmt.Errorf("--var requires --config or --preset")
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("one of --config or --preset is required")
	}
	if err != nil {
		return nil, err
	}
	if err := applyVars(cfg, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyVars(cfg *config.SweepConfig, overrides []string) error {
	for _, kv := range overrides {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("--var %q: expected key=value", kv)
		}
		if cfg.Vars == nil {
			cfg.Vars = make(map[string]string)
		}
		cfg.Vars[k] = val
	}
	return nil
}

// workDir returns --workdir or the process working directory.
func workDir(v *viper.Viper) (string, error) {
	if dir := v.GetString("workdir"); dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
