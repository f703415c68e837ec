package main

import (
	"os"

	"github.com/clipforge/clipforge/internal/cli"
)

func main() {
	command := cli.NewCmdRoot()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
