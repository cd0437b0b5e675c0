// Package main implements the autoforge CLI.
// It reorders independent statements inside Python functions while keeping
// every data dependency intact.
package main

import (
	"os"

	"github.com/reschivon/autoforge/cmd/autoforge/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`autoforge version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
