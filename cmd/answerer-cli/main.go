package main

import (
	"fmt"
	"os"

	"istechat/answerer/internal/cli"
)

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cli.SetVersionInfo(version, commit)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "answerer-cli: %v\n", err)
		os.Exit(1)
	}
}
