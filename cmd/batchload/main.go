// Package main implements the batchload command, which loads a list of work
// items, fetches each one with bounded concurrency, timeouts and retries, and
// runs a final initialization step once every item has settled.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
