package main

import (
	"os"

	"github.com/halcyonvr/resonance/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
