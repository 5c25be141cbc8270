// Package main is the entry point for the jobcore CLI.
// The CLI is the developer terminal tool for interacting with the jobcore API.
package main

import (
	"jobcore/cmd/cli/cmd"
	"os"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
