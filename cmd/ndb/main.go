// Package main provides the ndb CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/ndb/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
