// Command drover drives a coding agent through one or more prompts until each
// step finishes, blocks, or fails.
package main

import (
	"os"

	"github.com/AbdelazizMoustafa10m/drover/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
