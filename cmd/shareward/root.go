package main

import (
	"github.com/spf13/cobra"

	"github.com/shareward/shareward/internal/log"
)

const appName = "shareward"
const appVersion = "0.1.0"

// rootCmd is the entry point for the node binary. It performs no
// action itself; serve is the only subcommand that matters today, but
// the command hierarchy leaves room for operator subcommands (status,
// snapshot inspection) without reshaping main.
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: appName + " — a proactive secret-sharing cluster node",
}

func init() {
	rootCmd.AddCommand(newServeCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.FatalF("%s: startup failed: %s", appName, err.Error())
	}
}
