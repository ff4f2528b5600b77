package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"garnet-sweep/internal/driver"
	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/progress"
	"garnet-sweep/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run every job of a sweep and collect its metrics",
	Long: "sweep runs one simulation per parameter combination under --root, " +
		"shows live progress and writes the results archive when done or interrupted.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v := viper.GetViper()
		cfg, err := loadDefinition(cmd, false)
		if err != nil {
			return err
		}
		opts, err := runOptions(v)
		if err != nil {
			return err
		}

		useTUI := !v.GetBool("no-tui") && progress.IsTerminal(os.Stdout)
		ctx := cmd.Context()
		if useTUI && v.GetString("log-file") == "" {
			rl := newRootLog(opts.Root)
			defer rl.Close()
			log, _, err := openLogger(v, rl)
			if err != nil {
				return err
			}
			ctx = logging.NewContext(ctx, log)
		}
		opts.Display = func(title string, schema sweep.Schema) progress.Sink {
			if useTUI {
				return progress.NewTUISink(title, schema)
			}
			return progress.NewTextSink(cmd.OutOrStdout())
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := driver.RunSweep(ctx, cfg, opts)
		if res != nil {
			fmt.Fprintln(cmd.OutOrStdout(), progress.Summary(res.View))
			fmt.Fprintf(cmd.OutOrStdout(), "results: %s\n", res.Archive)
		}
		if errors.Is(err, sweep.ErrInterrupted) {
			return fmt.Errorf("%w; rerun into a new --root or use 'report --root %s'", err, opts.Root)
		}
		return err
	},
}

func init() {
	f := sweepCmd.Flags()
	definitionFlags(sweepCmd)
	f.StringP("root", "o", "", "Output root; must not exist yet")
	f.String("workdir", "", "Directory the simulator runs in (default: current directory)")
	f.IntP("max-workers", "j", 4, "Maximum number of concurrent simulations")
	f.Float64("launch-rate", 0, "Maximum process launches per second (0 = unlimited)")
	f.StringSlice("only", nil, "Run only jobs whose output path matches these doublestar patterns")
	f.StringSlice("skip", nil, "Skip jobs whose output path matches these doublestar patterns")
	f.Duration("checkpoint", 0, "Rewrite the results archive at this interval while running (0 = off)")
	f.Duration("interval", progress.DefaultInterval, "Progress refresh interval")
	f.String("status-addr", "", "Serve progress over HTTP on this address (e.g. :8080)")
	f.String("sqlite", "", "Also record results in this SQLite database")
	f.Bool("no-tui", false, "Print plain progress lines instead of the full-screen view")
}

// runOptions maps bound settings onto driver options.
func runOptions(v *viper.Viper) (driver.Options, error) {
	wd, err := workDir(v)
	if err != nil {
		return driver.Options{}, err
	}
	root := v.GetString("root")
	if root == "" {
		return driver.Options{}, fmt.Errorf("--root (or %s_ROOT) is required", EnvPrefix)
	}
	workers := v.GetInt("max-workers")
	if workers < 1 {
		return driver.Options{}, fmt.Errorf("--max-workers must be at least 1, got %d", workers)
	}
	return driver.Options{
		Root:       root,
		WorkDir:    wd,
		Workers:    workers,
		LaunchRate: v.GetFloat64("launch-rate"),
		Only:       v.GetStringSlice("only"),
		Skip:       v.GetStringSlice("skip"),
		Checkpoint: v.GetDuration("checkpoint"),
		Interval:   v.GetDuration("interval"),
		StatusAddr: v.GetString("status-addr"),
		Writers:    newWriters(sinkSettingsFrom(v)),
	}, nil
}
