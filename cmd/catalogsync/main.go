// Package main is the entry point for the catalog sync function and CLI.
package main

import (
	"os"

	"github.com/erp/catalogsync/cmd/catalogsync/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
