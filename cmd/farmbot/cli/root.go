package cli

import (
	"github.com/spf13/cobra"

	"github.com/revo-market/contracts/internal/config"
	"github.com/revo-market/contracts/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "farmbot",
	Short:         "Auto-compounding farm vault with its compounder bot",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return err
		}
		logger.Initialize(logger.Options{
			Level: config.LogLevel,
			JSON:  config.LogJSON,
			File:  config.LogFile,
		})
		return nil
	},
}

// Execute registers every command and runs the one named on the command line.
func Execute() error {
	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(SimulateCmd())
	rootCmd.AddCommand(ResetDBCmd())
	return rootCmd.Execute()
}
