package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Live trading desk dashboard core",
		Long: `dashboard keeps a reconciled view of account, positions, orders and
data-stream status from the trading backend (push + poll) and serves it over HTTP.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/dashboard.yaml or $CONFIG_FILE)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(strategyCmd())
	rootCmd.AddCommand(backtestCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dashboard version %s\n", version)
		},
	}
}
