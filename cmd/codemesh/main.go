// Package main provides the entry point for the codemesh CLI.
package main

import (
	"os"

	"github.com/nsethi/codemesh/cmd/codemesh/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
