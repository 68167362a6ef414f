package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "newtdata",
	Short: "Newtdata - bulk Telegram account cleanup",
	Long: `Newtdata wipes a Telegram account clean in one pass: it leaves every
group and channel, deletes private chat histories, removes all contacts
and archives whatever remains, writing a CSV and JSON report of every
action taken.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(serveCmd)
}
