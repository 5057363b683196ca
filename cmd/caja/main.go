// Package main provides the caja CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/caja/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
