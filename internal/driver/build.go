package driver

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"garnet-sweep/internal/config"
	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/sweep"
)

// Build runs the definition's build commands in order inside workDir and
// stops at the first failure. Commands see .cwd and .vars.
func Build(ctx context.Context, cfg *config.SweepConfig, workDir string, stdout, stderr io.Writer) error {
	log := logging.FromContext(ctx)
	if len(cfg.Build) == 0 {
		return fmt.Errorf("sweep %q defines no build steps", cfg.Name)
	}
	data := map[string]any{"cwd": workDir, "vars": cfg.Vars}
	for i, src := range cfg.Build {
		tpl, err := sweep.ParseTemplate(fmt.Sprintf("build[%d]", i), src)
		if err != nil {
			return err
		}
		var b strings.Builder
		if err := tpl.Execute(&b, data); err != nil {
			return fmt.Errorf("build step %d: %w", i+1, err)
		}
		line := strings.TrimSpace(b.String())
		log.Info("build step", "step", i+1, "of", len(cfg.Build), "cmd", line)

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", line)
		cmd.Dir = workDir
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("build step %d (%s): %w", i+1, line, err)
		}
	}
	return nil
}
