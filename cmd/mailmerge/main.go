/*
Package main provides the CLI entry point for mailmerge.
*/
package main

import (
	"os"

	"github.com/lattiq/mailmerge/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
