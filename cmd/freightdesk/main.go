package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "freightdesk",
	Short: "Freight inquiry and quotation marketplace",
	Long: `freightdesk connects shippers with freight forwarders.

Shippers send inquiries to connected forwarders, forwarders answer with
quotations, and the shipper awards one of them.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, schedulerCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
