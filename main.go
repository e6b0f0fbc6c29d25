// The main package for the enrichment-worker executable.
package main

import (
	"github.com/nodeinsights/enrichment-worker/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
