// Package main provides the entry point for the semfit CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/semfit/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands silence cobra's own printing; surface the error once here
		fmt.Fprintln(os.Stderr, "semfit:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
