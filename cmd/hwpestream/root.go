package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "hwpestream",
	Short: "hwpestream simulates streaming fabric blocks such as address " +
		"generators, realigners, and streamers.",
	Long: `hwpestream simulates streaming fabric blocks such as address ` +
		`generators, realigners, and streamers. The run subcommand moves a ` +
		`block of memory through a source streamer, a FIFO, and a sink ` +
		`streamer, with protocol monitors attached to every channel.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
