package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"garnet-sweep/internal/config"
)

var presetsCmd = &cobra.Command{
	Use:   "presets [name]",
	Short: "List embedded sweep definitions or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, name := range config.Presets() {
				cfg, err := config.LoadPreset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-12s %s\n", name, cfg.Title)
			}
			return nil
		}
		cfg, err := config.LoadPreset(args[0])
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}
