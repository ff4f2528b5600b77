package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"garnet-sweep/internal/driver"
	"garnet-sweep/internal/progress"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise an existing output root without running jobs",
	Long: "report loads the results archive of --root, or rescans every job's stats " +
		"file when the archive is missing or --reextract is set, and prints a summary. " +
		"Without --config or --preset the definition recorded in the root is used.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v := viper.GetViper()
		cfg, err := loadDefinition(cmd, true)
		if err != nil {
			return err
		}
		root := v.GetString("root")
		if root == "" {
			return fmt.Errorf("--root (or %s_ROOT) is required", EnvPrefix)
		}
		res, err := driver.ReportOnly(cmd.Context(), cfg, driver.Options{
			Root:      root,
			WorkDir:   v.GetString("workdir"),
			Only:      v.GetStringSlice("only"),
			Skip:      v.GetStringSlice("skip"),
			Reextract: v.GetBool("reextract"),
			Writers:   newWriters(sinkSettingsFrom(v)),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), progress.Summary(res.View))
		return nil
	},
}

func init() {
	f := reportCmd.Flags()
	definitionFlags(reportCmd)
	f.StringP("root", "o", "", "Output root of a previous sweep")
	f.String("workdir", "", "Directory the simulator ran in (default: recorded in the root)")
	f.StringSlice("only", nil, "Rescan only jobs whose output path matches these doublestar patterns")
	f.StringSlice("skip", nil, "Do not rescan jobs whose output path matches these doublestar patterns")
	f.Bool("reextract", false, "Rescan stats files even when an archive exists")
	f.String("sqlite", "", "Also record results in this SQLite database")
}
