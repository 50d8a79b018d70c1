package main

import (
	"os"

	"github.com/spf13/cobra"
)

// configPath --config 全局参数
var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "trendcast",
		Short: "Time-series forecasting dashboard",
		Long: `trendcast fits a trend + seasonality + holidays forecasting model to an
uploaded time series, cross-validates it and exports the forecast.

Run "trendcast serve" for the browser dashboard or "trendcast forecast <file>"
for a batch run.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config.toml 路径（默认为可执行文件同目录）")

	rootCmd.AddCommand(newServeCmd(), newForecastCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
