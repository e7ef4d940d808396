// Package main is the entry point for the log-manager binary.
package main

import (
	"os"

	cli "log-manager/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
