// Command dirstore stores typed values in a directory, one key per file pair.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dirstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
