// Package main is the entry point for the triage application.
// It serves the HTTP API, runs the interactive task review and manages
// database migrations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
