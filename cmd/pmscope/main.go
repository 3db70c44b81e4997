// Command pmscope resolves the sending frame and document of captured
// cross-document messages.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pmscope/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
