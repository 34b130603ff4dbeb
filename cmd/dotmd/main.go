// Package main provides the entry point for the dotmd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/inventivepotter/dotmd/cmd/dotmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
