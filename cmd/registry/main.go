// Command registry keeps the correspondence register: it numbers, lists,
// soft-deletes and archives registrations, and serves them over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/registry/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
