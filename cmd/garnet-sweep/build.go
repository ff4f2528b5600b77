package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"garnet-sweep/internal/driver"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the build steps of a sweep definition",
	Long:  "build runs the definition's build commands in order inside --workdir and stops at the first failing step.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadDefinition(cmd, false)
		if err != nil {
			return err
		}
		wd, err := workDir(viper.GetViper())
		if err != nil {
			return err
		}
		return driver.Build(cmd.Context(), cfg, wd, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	definitionFlags(buildCmd)
	buildCmd.Flags().String("workdir", "", "Directory to build in (default: current directory)")
}
