package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "relaycored",
	Short: "Live broadcast stream multiplexer daemon",
	Long: "relaycored supervises per-channel encoder processes, fans out MPEG-TS " +
		"bytes to connected viewers, and manages on-the-fly recording with a " +
		"parallel PSI/SI archive.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
