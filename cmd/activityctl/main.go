package main

import (
	"os"

	"github.com/boddenberg/wallet-activity-bfa/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
