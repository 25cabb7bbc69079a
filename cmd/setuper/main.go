// Command setuper runs declarative project setups.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/setuper/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
