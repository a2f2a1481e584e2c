package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "analytics-cli",
	Short: "Ask restaurant sales questions from the terminal",
	Long: `analytics-cli runs the analytics question-answering core outside the
workflow engine. It uses the same configuration as the worker manager
(configs/config.yaml plus config.<env>.yaml, or --config).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a single config file (defaults to configs/config.yaml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
