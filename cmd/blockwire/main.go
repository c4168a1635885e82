// Command blockwire runs Block Protocol docks and blocks and inspects their
// message traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/blockwire/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
