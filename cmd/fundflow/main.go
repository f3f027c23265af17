package main

import (
	"os"

	"github.com/fundflow-dev/fundflow/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
