// Package cli implements the invoice-ocr command line.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	configFile  string
	credentials string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "invoice-ocr",
	Short: "Recognize VAT invoices in bulk and collect them into an Excel report",
	Long: `invoice-ocr sends every PDF and image invoice in a folder to the Baidu
VAT invoice recognition API and writes one spreadsheet row per file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&credentials, "credentials", "",
		"Baidu credentials as APP_ID,API_KEY,SECRET_KEY (overrides the environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
