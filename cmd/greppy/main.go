// Package main provides the entry point for the greppy CLI.
package main

import (
	"os"

	"github.com/greppy/greppy/cmd/greppy/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
