package main

import (
	"fmt"
	"os"

	"github.com/semmidev/phylaxctl/internal/cli"
)

var (
	version = "0.1.0-dev"
	commit  = "main"
)

func main() {
	if err := cli.Execute(cli.VersionInfo{Version: version, Commit: commit}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
