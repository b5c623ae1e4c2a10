// main is the entry point for the prism CLI.
package main

import (
	"github.com/shipmetrics/prism/cmd"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/internal/iocache"
)

func main() {
	err := cmd.Execute()

	// Close durable stores before any fatal exit skips the defers.
	iocache.CloseStores()

	if err != nil {
		contract.LogFatal("Command execution", err)
	}
}
