package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"abgeltungsteuer-engine/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "taxengine",
	Short: "German capital-gains tax engine",
	Long:  `Computes Abgeltungsteuer, Vorabpauschale, allowance optimisation, and net-payout plans over a portfolio transaction history.`,
}

func init() {
	config.BindFlags(rootCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(guiCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
