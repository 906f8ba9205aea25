// Package cmd holds the creditlens CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "creditlens",
	Short: "Statement ingestion and alternative-data credit scoring",
	Long: `Creditlens ingests Kenyan financial statements (bank, M-PESA, SACCO),
normalizes and categorizes their transactions, and computes alternative-data
credit scores.

Examples:
  creditlens serve
  creditlens work
  creditlens parse statement.txt --type BANK_STATEMENT --customer cust-1
  creditlens score --customer cust-1`,
	SilenceUsage: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, CREDITLENS_* env vars always apply)")
}
