// Package main is the entry point for the orchestration service.
package main

import (
	"fmt"
	"os"

	"github.com/paklog/orchestration/cmd/orchestrator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
