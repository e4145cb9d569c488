// Package main implements the sentinel command: the HTTP API with its push
// channel, standalone workers, database migrations and credential helpers.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
