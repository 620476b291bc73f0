package main

import (
	"os"

	"gawulo-platform/services/gawuloctl/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
