package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "sitewatch",
		Short: "Running-hours maintenance scheduling for industrial equipment",
		Long: "SiteWatch tracks equipment running hours from MQTT sensors or manual entry,\n" +
			"classifies maintenance schedules by urgency, and dispatches throttled alerts\n" +
			"when maintenance comes due.",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")

	root.AddCommand(serveCommand(&configPath))
	return root
}
